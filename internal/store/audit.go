package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"beacon/pkg/models"
)

// InsertAudit appends an audit entry. The log is append-only.
func (s *Store) InsertAudit(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	query := `INSERT INTO audit_log (id, action, performed_by, entity_type, entity_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	return s.db.QueryRowContext(ctx, query,
		e.ID, e.Action, e.PerformedBy, e.EntityType, e.EntityID, e.Details,
	).Scan(&e.CreatedAt)
}

// AuditFilter narrows ListAudit.
type AuditFilter struct {
	EntityType string
	EntityID   string
	Limit      int
}

// ListAudit returns audit entries newest first.
func (s *Store) ListAudit(ctx context.Context, f AuditFilter) ([]*models.AuditEntry, error) {
	query := `SELECT id, action, performed_by, entity_type, entity_id, details, created_at FROM audit_log WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.EntityType != "" {
		query += fmt.Sprintf(" AND entity_type = $%d", idx)
		args = append(args, f.EntityType)
		idx++
	}
	if f.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", idx)
		args = append(args, f.EntityID)
		idx++
	}
	query += " ORDER BY created_at DESC"
	if f.Limit <= 0 {
		f.Limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", idx)
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.PerformedBy, &e.EntityType, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
