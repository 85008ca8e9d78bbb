package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"beacon/pkg/models"
)

const brandColumns = `id, name, description, tone, target_audience, topics, banned_phrases, schedule, approvers, is_active, created_at, updated_at`

func scanBrand(row interface{ Scan(...interface{}) error }) (*models.Brand, error) {
	var b models.Brand
	var topics, banned, approvers pq.StringArray
	err := row.Scan(
		&b.ID, &b.Name, &b.Description, &b.Tone, &b.TargetAudience,
		&topics, &banned, &b.Schedule, &approvers,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Topics = topics
	b.BannedPhrases = banned
	b.Approvers = approvers
	return &b, nil
}

// CreateBrand inserts a new brand and assigns its ID.
func (s *Store) CreateBrand(ctx context.Context, b *models.Brand) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO brands (id, name, description, tone, target_audience, topics, banned_phrases, schedule, approvers, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		b.ID, b.Name, b.Description, b.Tone, b.TargetAudience,
		pq.StringArray(b.Topics), pq.StringArray(b.BannedPhrases),
		b.Schedule, pq.StringArray(b.Approvers), b.IsActive,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// GetBrand retrieves a brand by ID.
func (s *Store) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	query := `SELECT ` + brandColumns + ` FROM brands WHERE id = $1`
	return scanBrand(s.db.QueryRowContext(ctx, query, id))
}

// ListBrands returns all brands, optionally only active ones, newest first.
func (s *Store) ListBrands(ctx context.Context, activeOnly bool) ([]*models.Brand, error) {
	query := `SELECT ` + brandColumns + ` FROM brands`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []*models.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// UpdateBrand replaces the mutable fields of a brand.
func (s *Store) UpdateBrand(ctx context.Context, b *models.Brand) error {
	query := `
		UPDATE brands
		SET name = $2, description = $3, tone = $4, target_audience = $5,
		    topics = $6, banned_phrases = $7, schedule = $8, approvers = $9,
		    is_active = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		b.ID, b.Name, b.Description, b.Tone, b.TargetAudience,
		pq.StringArray(b.Topics), pq.StringArray(b.BannedPhrases),
		b.Schedule, pq.StringArray(b.Approvers), b.IsActive,
	).Scan(&b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// UpdateBrandSchedule replaces only the generation schedule.
func (s *Store) UpdateBrandSchedule(ctx context.Context, brandID string, schedule models.GenerationSchedule) (time.Time, error) {
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`UPDATE brands SET schedule = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		brandID, schedule,
	).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return updatedAt, err
}
