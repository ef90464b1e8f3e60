// api/store/user_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"sitepulse/api/models"
)

// UserStore persists dashboard accounts in the users table of the embedded
// SQLite database.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a new UserStore instance.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// CreateUser inserts a new user into the database.
func (s *UserStore) CreateUser(ctx context.Context, email string, hashedPassword []byte) (*models.User, error) {
	now := time.Now().UTC().Truncate(time.Second)
	query := `
		INSERT INTO users (email, hashed_password, created_at, updated_at)
		VALUES (?, ?, ?, ?);
	`
	res, err := s.db.ExecContext(ctx, query, email, hashedPassword, now.Unix(), now.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return nil, fmt.Errorf("user with email '%s' already exists", email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new user id: %w", err)
	}

	user := &models.User{
		ID:        int(id),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	log.Printf("User created in DB: ID=%d, Email=%s", user.ID, user.Email)
	return user, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, hashed_password, created_at, updated_at
		FROM users
		WHERE email = ?;
	`
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user with email '%s' not found", email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return user, nil
}
