package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account, identified by email.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// EnsureUser returns the user with email, creating it on first sight.
func (db *DB) EnsureUser(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("ensure user: empty email")
	}
	_, err := db.ExecContext(ctx,
		"INSERT INTO users (id, email, created_at) VALUES (?, ?, ?) ON CONFLICT(email) DO NOTHING",
		uuid.NewString(), email, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return db.GetUserByEmail(ctx, email)
}

// GetUserByEmail 按邮箱查询用户
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}
