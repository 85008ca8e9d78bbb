package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"beacon/pkg/models"
)

// GetCredentials returns the access token and account identity for a
// brand/platform pair. ErrNotFound means the platform is not connected.
func (s *Store) GetCredentials(ctx context.Context, brandID string, platform models.Platform) (*models.PlatformCredentials, error) {
	query := `SELECT id, brand_id, platform, access_token, account_id, page_id, created_at, updated_at
		FROM platform_credentials WHERE brand_id = $1 AND platform = $2`
	var c models.PlatformCredentials
	var pageID sql.NullString
	err := s.db.QueryRowContext(ctx, query, brandID, platform).Scan(
		&c.ID, &c.BrandID, &c.Platform, &c.AccessToken, &c.AccountID, &pageID, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.PageID = pageID.String
	return &c, nil
}

// UpsertCredentials saves or replaces the credentials for a brand/platform pair.
func (s *Store) UpsertCredentials(ctx context.Context, c *models.PlatformCredentials) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO platform_credentials (id, brand_id, platform, access_token, account_id, page_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (brand_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			account_id = EXCLUDED.account_id,
			page_id = EXCLUDED.page_id,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return s.db.QueryRowContext(ctx, query,
		c.ID, c.BrandID, c.Platform, c.AccessToken, c.AccountID, nullString(c.PageID),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}
