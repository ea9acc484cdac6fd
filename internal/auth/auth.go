// Package auth implements user registration and bearer-token authentication:
// bcrypt password hashes, HS256 JWTs with per-token IDs, and logout by jti
// revocation.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username or email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrWeakPassword       = errors.New("password too short")
)

// HashPassword produces a bcrypt hash suitable for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Identity is the authenticated principal extracted from a verified token
type Identity struct {
	UserID   int64
	Username string
	JTI      string
}

// Manager issues and verifies access tokens
type Manager struct {
	store       *Store
	secret      []byte
	ttl         time.Duration
	minPassword int
}

// NewManager creates a Manager. The secret signs HS256 tokens; ttl bounds
// token lifetime.
func NewManager(store *Store, secret string, ttl time.Duration, minPassword int) *Manager {
	if minPassword <= 0 {
		minPassword = 8
	}
	return &Manager{
		store:       store,
		secret:      []byte(secret),
		ttl:         ttl,
		minPassword: minPassword,
	}
}

// Register creates a new user and returns it together with a fresh token.
func (m *Manager) Register(username, email, password string) (*User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, "", ErrInvalidCredentials
	}
	if len(password) < m.minPassword {
		return nil, "", ErrWeakPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user, err := m.store.CreateUser(username, email, hash)
	if err != nil {
		return nil, "", err
	}

	token, err := m.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
// Returns ErrInvalidCredentials for both unknown users and bad passwords.
func (m *Manager) Login(username, password string) (*User, string, error) {
	user, err := m.store.UserByName(strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := m.issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Verify parses a token, checks its signature and expiry, and rejects
// revoked token IDs.
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	userID, ok := claims["user_id"].(float64)
	if sub == "" || jti == "" || !ok {
		return nil, ErrInvalidToken
	}

	revoked, err := m.store.IsRevoked(jti)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &Identity{
		UserID:   int64(userID),
		Username: sub,
		JTI:      jti,
	}, nil
}

// Revoke invalidates a token for the remainder of its lifetime (logout).
func (m *Manager) Revoke(tokenString string) error {
	id, err := m.Verify(tokenString)
	if err != nil {
		return err
	}
	return m.store.RevokeJTI(id.JTI)
}

func (m *Manager) issue(user *User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     user.Username,
		"user_id": user.ID,
		"jti":     uuid.NewString(),
		"iat":     now.Unix(),
		"exp":     now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
