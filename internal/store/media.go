package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"beacon/pkg/models"
)

// CreateMedia registers an already-hosted asset.
func (s *Store) CreateMedia(ctx context.Context, m *models.Media) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `INSERT INTO media_uploads (id, brand_id, url, content_type, description, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	return s.db.QueryRowContext(ctx, query,
		m.ID, m.BrandID, m.URL, nullString(m.ContentType), nullString(m.Description), nullString(m.UploadedBy),
	).Scan(&m.CreatedAt)
}

// GetMedia retrieves a media record by ID.
func (s *Store) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	query := `SELECT id, brand_id, url, content_type, description, uploaded_by, created_at
		FROM media_uploads WHERE id = $1`
	var m models.Media
	var contentType, description, uploadedBy sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.BrandID, &m.URL, &contentType, &description, &uploadedBy, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.ContentType = contentType.String
	m.Description = description.String
	m.UploadedBy = uploadedBy.String
	return &m, nil
}

// ListMedia returns a brand's media records, newest first.
func (s *Store) ListMedia(ctx context.Context, brandID string) ([]*models.Media, error) {
	query := `SELECT id, brand_id, url, content_type, description, uploaded_by, created_at
		FROM media_uploads WHERE brand_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []*models.Media
	for rows.Next() {
		var m models.Media
		var contentType, description, uploadedBy sql.NullString
		if err := rows.Scan(&m.ID, &m.BrandID, &m.URL, &contentType, &description, &uploadedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ContentType = contentType.String
		m.Description = description.String
		m.UploadedBy = uploadedBy.String
		media = append(media, &m)
	}
	return media, rows.Err()
}
