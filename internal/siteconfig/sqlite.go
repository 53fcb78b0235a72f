package siteconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// SQLStore implements Store on database/sql. Put is a single upsert, so the
// four-field publish swap lands in one statement.
type SQLStore struct {
	db *sql.DB
}

const siteConfigSchema = `
CREATE TABLE IF NOT EXISTS site_configs (
	tenant_id        TEXT PRIMARY KEY,
	draft            BLOB,
	draft_updated_at TIMESTAMP,
	published        BLOB,
	published_at     TIMESTAMP
);
`

// NewSQLStore wraps an open database handle and ensures the schema exists.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if _, err := db.Exec(siteConfigSchema); err != nil {
		return nil, fmt.Errorf("create site_configs schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, tenantID string) (*models.SiteConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, draft, draft_updated_at, published, published_at
		FROM site_configs WHERE tenant_id = ?`, tenantID)

	var cfg models.SiteConfig
	var draft, published []byte
	var draftAt, publishedAt sql.NullTime
	err := row.Scan(&cfg.TenantID, &draft, &draftAt, &published, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get site config: %w", err)
	}
	if len(draft) > 0 {
		cfg.Draft = json.RawMessage(draft)
	}
	if draftAt.Valid {
		t := draftAt.Time
		cfg.DraftUpdatedAt = &t
	}
	if len(published) > 0 {
		cfg.Published = json.RawMessage(published)
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		cfg.PublishedAt = &t
	}
	return &cfg, nil
}

func (s *SQLStore) Put(ctx context.Context, cfg *models.SiteConfig) error {
	if cfg == nil || cfg.TenantID == "" {
		return fmt.Errorf("site config with tenant id is required")
	}
	var draftAt, publishedAt any
	if cfg.DraftUpdatedAt != nil {
		draftAt = *cfg.DraftUpdatedAt
	}
	if cfg.PublishedAt != nil {
		publishedAt = *cfg.PublishedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_configs (tenant_id, draft, draft_updated_at, published, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			draft = excluded.draft,
			draft_updated_at = excluded.draft_updated_at,
			published = excluded.published,
			published_at = excluded.published_at`,
		cfg.TenantID, []byte(cfg.Draft), draftAt, []byte(cfg.Published), publishedAt,
	)
	if err != nil {
		return fmt.Errorf("put site config: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, tenantID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM site_configs WHERE tenant_id = ?`, tenantID); err != nil {
		return fmt.Errorf("delete site config: %w", err)
	}
	return nil
}
