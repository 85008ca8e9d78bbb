// Package audit appends operational events to the audit log. Recording is
// best-effort: an audit failure is logged and never propagated to the caller,
// so a flaky log table cannot block approvals or publishes.
package audit

import (
	"context"

	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type entryStore interface {
	InsertAudit(ctx context.Context, e *models.AuditEntry) error
}

type Recorder struct {
	store  entryStore
	logger logging.Logger
}

func NewRecorder(store entryStore, logger logging.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record appends one audit entry.
func (r *Recorder) Record(ctx context.Context, action, performedBy, entityType, entityID string, details models.JSONB) {
	entry := &models.AuditEntry{
		Action:      action,
		PerformedBy: performedBy,
		EntityType:  entityType,
		EntityID:    entityID,
		Details:     details,
	}
	if err := r.store.InsertAudit(ctx, entry); err != nil {
		r.logger.WithError(err).WithFields(logging.Fields{
			"action":    action,
			"entity_id": entityID,
		}).Error("Failed to write audit entry")
	}
}
