package db

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
)

// UpsertUser registers a user on first contact and refreshes the handle and
// display name on every later one. Users are never deleted.
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = excluded.updated_at`,
		u.ID, u.Username, u.FirstName, now, now,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert user")
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, first_name, created_at, updated_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Username, &u.FirstName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch user")
	}
	return &u, nil
}

// CountUsers returns the total number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count users")
	}
	return n, nil
}
