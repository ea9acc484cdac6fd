// Package db provides a centralized database connection and schema for lampd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Registered users
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
	`)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	// Action log - append-only history of light transitions.
	// Never updated or deleted by the application.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS action_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor_type TEXT NOT NULL,
			action TEXT NOT NULL,
			occurred_at INTEGER NOT NULL,
			user_id INTEGER,
			username TEXT,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_action_log_occurred ON action_log(occurred_at DESC);
		CREATE INDEX IF NOT EXISTS idx_action_log_actor ON action_log(actor_type, occurred_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create action_log table: %w", err)
	}

	// Revoked JWT IDs - consulted on every token verification
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS revoked_tokens (
			jti TEXT PRIMARY KEY,
			revoked_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create revoked_tokens table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
