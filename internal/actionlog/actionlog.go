// Package actionlog provides an append-only record of light transitions.
// Entries are written by the controller on every accepted transition and
// read back by the history endpoint. The daemon never mutates or deletes
// rows; pruning is reserved for the lampctl administration tool.
package actionlog

import (
	"database/sql"
	"fmt"
	"time"
)

// Actor identifies what triggered a transition
type Actor string

const (
	ActorManual Actor = "MANUAL"
	ActorMotion Actor = "MOTION"
	ActorTimer  Actor = "TIMER"
)

// Action is the resulting light action
type Action string

const (
	ActionOn  Action = "ON"
	ActionOff Action = "OFF"
)

// Entry represents a single logged transition
type Entry struct {
	ID         int64
	Actor      Actor
	Action     Action
	OccurredAt time.Time
	UserID     *int64 // Set for manual transitions only
	Username   string
	Detail     string // Free-form, e.g. "timer_set_30s"
}

// Log provides append-only transition logging backed by SQLite
type Log struct {
	db *sql.DB
}

// New creates a new Log using the provided database connection
func New(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append adds a new entry. Storage failures are returned to the caller and
// never retried here: losing an audit entry must be visible to the operator.
func (l *Log) Append(e Entry) error {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	var userID any
	if e.UserID != nil {
		userID = *e.UserID
	}

	_, err := l.db.Exec(`
		INSERT INTO action_log (actor_type, action, occurred_at, user_id, username, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(e.Actor), string(e.Action), occurred.UTC().Unix(), userID, e.Username, e.Detail)
	if err != nil {
		return fmt.Errorf("append action log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(`
		SELECT id, actor_type, action, occurred_at, user_id, username, detail
		FROM action_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ByActor returns up to limit entries for one actor type, newest first
func (l *Log) ByActor(actor Actor, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(`
		SELECT id, actor_type, action, occurred_at, user_id, username, detail
		FROM action_log
		WHERE actor_type = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, string(actor), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// All returns every entry, newest first.
func (l *Log) All() ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, actor_type, action, occurred_at, user_id, username, detail
		FROM action_log
		ORDER BY occurred_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the total number of entries.
func (l *Log) Count() (int64, error) {
	var n int64
	err := l.db.QueryRow(`SELECT COUNT(*) FROM action_log`).Scan(&n)
	return n, err
}

// Clear deletes every entry and returns the number deleted. Administrative
// use only; the daemon has no path to it.
func (l *Log) Clear() (int64, error) {
	res, err := l.db.Exec(`DELETE FROM action_log`)
	if err != nil {
		return 0, fmt.Errorf("clear action log: %w", err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var occurred int64
		var userID sql.NullInt64
		var username, detail sql.NullString

		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &occurred, &userID, &username, &detail); err != nil {
			return nil, err
		}

		e.OccurredAt = time.Unix(occurred, 0).UTC()
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		if username.Valid {
			e.Username = username.String
		}
		if detail.Valid {
			e.Detail = detail.String
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
