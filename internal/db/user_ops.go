package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chesed/internal/models"
)

const userColumns = `id, email, password_hash, display_name, is_anonymous, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Anonymous, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts an account. A taken email is reported as ErrConflict.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.Email.Valid {
		u.Email.String = strings.ToLower(strings.TrimSpace(u.Email.String))
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Anonymous, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", u.Email.String, models.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up a registered account.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, notFoundOr(err, "user "+email)
	}
	return u, nil
}

// GetUserByID reads one account.
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "user "+id)
	}
	return u, nil
}

// IsAdmin reports whether an admin marker exists for the user.
func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin %s: %w", userID, err)
	}
	return exists, nil
}

// GrantAdmin creates the admin marker for a user. Granting twice is a no-op.
func (s *Store) GrantAdmin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO admins (user_id, created_at) VALUES ($1, $2)
        ON CONFLICT (user_id) DO NOTHING`, userID, at)
	if err != nil {
		return fmt.Errorf("grant admin %s: %w", userID, err)
	}
	return nil
}

// RevokeAdmin removes the admin marker.
func (s *Store) RevokeAdmin(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("revoke admin %s: %w", userID, err)
	}
	return nil
}
