package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RishiVykunta/e-commerce/internal/models"
)

const userColumns = "id, email, password, name, role, created_at"

// CreateUser inserts a user. A taken email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO users (email, password, name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.Name, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
		return err
	}
	return nil
}

// GetUserByEmail retrieves a user, including the password hash, by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
