package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"beacon/pkg/models"
)

// LatestControl returns the most recent system control record. The table is
// append-only; the newest row wins. ErrNotFound means no record has ever been
// written and callers should fall back to defaults.
func (s *Store) LatestControl(ctx context.Context) (*models.ControlState, error) {
	query := `SELECT id, mode, settings, set_by, reason, set_at
		FROM system_control ORDER BY set_at DESC, id DESC LIMIT 1`
	var c models.ControlState
	var reason sql.NullString
	err := s.db.QueryRowContext(ctx, query).Scan(&c.ID, &c.Mode, &c.Settings, &c.SetBy, &reason, &c.SetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Reason = reason.String
	return &c, nil
}

// AppendControl inserts a new control record. Existing rows are never updated.
func (s *Store) AppendControl(ctx context.Context, c *models.ControlState) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `INSERT INTO system_control (id, mode, settings, set_by, reason, set_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING set_at`
	return s.db.QueryRowContext(ctx, query,
		c.ID, c.Mode, c.Settings, c.SetBy, nullString(c.Reason),
	).Scan(&c.SetAt)
}
