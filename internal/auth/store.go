package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a registered account
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Store persists users and revoked token IDs in SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a Store using the provided database connection
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new user. Returns ErrUserExists when the username or
// email is already taken.
func (s *Store) CreateUser(username, email, passwordHash string) (*User, error) {
	now := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, username, email, passwordHash, now.Unix())
	if err != nil {
		// sqlite reports both unique indexes through the same error class
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// UserByName looks a user up by username. Returns ErrUserNotFound when absent.
func (s *Store) UserByName(username string) (*User, error) {
	var u User
	var created int64
	err := s.db.QueryRow(`
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, email, password_hash, created_at
		FROM users ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var created int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(created, 0).UTC()
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user by username. Returns ErrUserNotFound when absent.
func (s *Store) DeleteUser(username string) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetPassword replaces a user's password hash. Returns ErrUserNotFound when
// absent.
func (s *Store) SetPassword(username, passwordHash string) error {
	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE username = ?`, passwordHash, username)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteAllUsers removes every user and returns the number deleted.
func (s *Store) DeleteAllUsers() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM users`)
	if err != nil {
		return 0, fmt.Errorf("delete users: %w", err)
	}
	return res.RowsAffected()
}

// ClearRevokedTokens drops all revoked token IDs and returns the number
// deleted.
func (s *Store) ClearRevokedTokens() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM revoked_tokens`)
	if err != nil {
		return 0, fmt.Errorf("clear revoked tokens: %w", err)
	}
	return res.RowsAffected()
}

// RevokeJTI records a token ID as revoked. Idempotent.
func (s *Store) RevokeJTI(jti string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO revoked_tokens (jti, revoked_at) VALUES (?, ?)
	`, jti, time.Now().UTC().Unix())
	return err
}

// IsRevoked reports whether a token ID has been revoked
func (s *Store) IsRevoked(jti string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM revoked_tokens WHERE jti = ?`, jti).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
