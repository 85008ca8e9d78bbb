package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"beacon/pkg/models"
)

const contentColumns = `id, brand_id, platform, status, generation_status, generation_error,
	body, version, history, prompt, reasoning, image_prompt, image_error,
	approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	scheduled_for, posted_at, post_url, created_at, updated_at`

func scanContentItem(row interface{ Scan(...interface{}) error }) (*models.ContentItem, error) {
	var it models.ContentItem
	var genErr, prompt, reasoning, imagePrompt, imageError sql.NullString
	var approvedBy, rejectedBy, rejectionReason, postURL sql.NullString
	var approvedAt, rejectedAt, scheduledFor, postedAt sql.NullTime
	err := row.Scan(
		&it.ID, &it.BrandID, &it.Platform, &it.Status, &it.GenerationStatus, &genErr,
		&it.Body, &it.Version, &it.History, &prompt, &reasoning, &imagePrompt, &imageError,
		&approvedBy, &approvedAt, &rejectedBy, &rejectedAt, &rejectionReason,
		&scheduledFor, &postedAt, &postURL, &it.CreatedAt, &it.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.GenerationError = genErr.String
	it.Prompt = prompt.String
	it.Reasoning = reasoning.String
	it.ImagePrompt = imagePrompt.String
	it.ImageError = imageError.String
	it.ApprovedBy = approvedBy.String
	it.RejectedBy = rejectedBy.String
	it.RejectionReason = rejectionReason.String
	it.PostURL = postURL.String
	if approvedAt.Valid {
		it.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		it.RejectedAt = &rejectedAt.Time
	}
	if scheduledFor.Valid {
		it.ScheduledFor = &scheduledFor.Time
	}
	if postedAt.Valid {
		it.PostedAt = &postedAt.Time
	}
	return &it, nil
}

// CreateContentItem inserts a freshly requested item and assigns its ID.
func (s *Store) CreateContentItem(ctx context.Context, it *models.ContentItem) error {
	if it.ID == "" {
		it.ID = uuid.New().String()
	}
	if it.Version == 0 {
		it.Version = 1
	}
	query := `
		INSERT INTO content_items (id, brand_id, platform, status, generation_status, body, version, history, prompt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		it.ID, it.BrandID, it.Platform, it.Status, it.GenerationStatus,
		it.Body, it.Version, it.History, nullString(it.Prompt),
	).Scan(&it.CreatedAt, &it.UpdatedAt)
}

// GetContentItem retrieves a content item by ID.
func (s *Store) GetContentItem(ctx context.Context, id string) (*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1`
	return scanContentItem(s.db.QueryRowContext(ctx, query, id))
}

// UpdateContentItem replaces every mutable column of an item. The state
// machine in internal/content decides what the new values are; the store only
// persists them.
func (s *Store) UpdateContentItem(ctx context.Context, it *models.ContentItem) error {
	query := `
		UPDATE content_items
		SET platform = $2, status = $3, generation_status = $4, generation_error = $5,
		    body = $6, version = $7, history = $8, reasoning = $9,
		    image_prompt = $10, image_error = $11,
		    approved_by = $12, approved_at = $13, rejected_by = $14, rejected_at = $15,
		    rejection_reason = $16, scheduled_for = $17, posted_at = $18, post_url = $19,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		it.ID, it.Platform, it.Status, it.GenerationStatus, nullString(it.GenerationError),
		it.Body, it.Version, it.History, nullString(it.Reasoning),
		nullString(it.ImagePrompt), nullString(it.ImageError),
		nullString(it.ApprovedBy), nullTime(it.ApprovedAt),
		nullString(it.RejectedBy), nullTime(it.RejectedAt),
		nullString(it.RejectionReason), nullTime(it.ScheduledFor),
		nullTime(it.PostedAt), nullString(it.PostURL),
	).Scan(&it.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ContentFilter narrows ListContentItems.
type ContentFilter struct {
	BrandID  string
	Platform models.Platform
	Status   models.ContentStatus
	Limit    int
}

// ListContentItems returns items matching the filter, newest first.
func (s *Store) ListContentItems(ctx context.Context, f ContentFilter) ([]*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.BrandID != "" {
		query += fmt.Sprintf(" AND brand_id = $%d", idx)
		args = append(args, f.BrandID)
		idx++
	}
	if f.Platform != "" {
		query += fmt.Sprintf(" AND platform = $%d", idx)
		args = append(args, f.Platform)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		it, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// DueForPosting returns approved and scheduled items whose scheduled time has
// passed, oldest scheduled first, so backlogs drain in order.
func (s *Store) DueForPosting(ctx context.Context, now time.Time) ([]*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items
		WHERE status IN ('approved', 'scheduled') AND scheduled_for IS NOT NULL AND scheduled_for <= $1
		ORDER BY scheduled_for ASC`
	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		it, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RecentCompletedTexts returns the text of the brand's most recent completed
// drafts for a platform, newest first, capped at limit. The generator uses
// them as negative examples to avoid repetition.
func (s *Store) RecentCompletedTexts(ctx context.Context, brandID string, platform models.Platform, limit int) ([]string, error) {
	query := `SELECT body->>'text' FROM content_items
		WHERE brand_id = $1 AND platform = $2 AND generation_status = 'completed'
		ORDER BY created_at DESC LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, brandID, platform, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text sql.NullString
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		if text.String != "" {
			texts = append(texts, text.String)
		}
	}
	return texts, rows.Err()
}

// CountPostedSince counts items posted for a brand since the given instant.
func (s *Store) CountPostedSince(ctx context.Context, brandID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_items WHERE brand_id = $1 AND status = 'posted' AND posted_at >= $2`,
		brandID, since,
	).Scan(&count)
	return count, err
}

// StatusPlatformCount is one row of the posting stats breakdown.
type StatusPlatformCount struct {
	Status   models.ContentStatus `json:"status"`
	Platform models.Platform      `json:"platform"`
	Count    int                  `json:"count"`
}

// PostingStats returns item counts grouped by status and platform for items
// created since the given instant.
func (s *Store) PostingStats(ctx context.Context, since time.Time) ([]StatusPlatformCount, error) {
	query := `SELECT status, platform, COUNT(*) FROM content_items
		WHERE created_at >= $1
		GROUP BY status, platform
		ORDER BY status, platform`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StatusPlatformCount
	for rows.Next() {
		var c StatusPlatformCount
		if err := rows.Scan(&c.Status, &c.Platform, &c.Count); err != nil {
			return nil, err
		}
		stats = append(stats, c)
	}
	return stats, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
