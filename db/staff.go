package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
)

// ErrStaffNotFound is returned when no staff record exists for an id.
var ErrStaffNotFound = errors.New("staff record not found")

// GetStaff fetches the staff record for an id, if any.
func (s *Store) GetStaff(ctx context.Context, id int64) (*models.StaffRecord, error) {
	var rec models.StaffRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, display_name, role, added_by, added_at FROM staff WHERE id = ?", id,
	).Scan(&rec.ID, &rec.Name, &rec.DisplayName, &rec.Role, &rec.AddedBy, &rec.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch staff record")
	}
	return &rec, nil
}

// ListStaff returns every staff record, admins first.
func (s *Store) ListStaff(ctx context.Context) ([]models.StaffRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, display_name, role, added_by, added_at FROM staff ORDER BY role, added_at")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list staff")
	}
	defer rows.Close()

	var out []models.StaffRecord
	for rows.Next() {
		var rec models.StaffRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.DisplayName, &rec.Role, &rec.AddedBy, &rec.AddedAt); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertStaff inserts or replaces a staff record. Used both by the admin
// commands and by super-admin seeding at boot, which makes seeding
// idempotent.
func (s *Store) UpsertStaff(ctx context.Context, rec *models.StaffRecord) error {
	if rec.AddedAt.IsZero() {
		rec.AddedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (id, name, display_name, role, added_by, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			display_name = excluded.display_name,
			role = excluded.role`,
		rec.ID, rec.Name, rec.DisplayName, rec.Role, rec.AddedBy, rec.AddedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert staff record")
	}
	return nil
}

// DeleteStaff removes a staff record. Protecting super admins is the
// caller's responsibility; the store just deletes.
func (s *Store) DeleteStaff(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM staff WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "failed to delete staff record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaffNotFound
	}
	return nil
}
