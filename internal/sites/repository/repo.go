package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

const (
	pqUniqueViolation   = "23505"
	pqInvalidTextFormat = "22P02"
)

const siteColumns = `id, user_id, template_slug, name, editor_data, business_info, seo_settings, ` +
	`status, published_html, published_at, subdomain, created_at, updated_at`

// SiteRepository persists sites in Postgres through database/sql and lib/pq.
type SiteRepository struct {
	db *sql.DB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *sql.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*domain.Site, error) {
	var (
		s             domain.Site
		editorData    []byte
		businessInfo  []byte
		seoSettings   []byte
		publishedHTML sql.NullString
		publishedAt   sql.NullTime
		subdomain     sql.NullString
	)
	err := row.Scan(&s.ID, &s.UserID, &s.TemplateSlug, &s.Name, &editorData, &businessInfo, &seoSettings,
		&s.Status, &publishedHTML, &publishedAt, &subdomain, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(editorData) > 0 {
		s.EditorData = json.RawMessage(editorData)
	}
	if len(businessInfo) > 0 {
		if err := json.Unmarshal(businessInfo, &s.BusinessInfo); err != nil {
			return nil, fmt.Errorf("decode business_info: %w", err)
		}
	}
	if len(seoSettings) > 0 {
		if err := json.Unmarshal(seoSettings, &s.SeoSettings); err != nil {
			return nil, fmt.Errorf("decode seo_settings: %w", err)
		}
	}
	if publishedHTML.Valid {
		s.PublishedHTML = &publishedHTML.String
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		s.PublishedAt = &t
	}
	if subdomain.Valid {
		s.Subdomain = &subdomain.String
	}
	return &s, nil
}

func mapQueryErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrSiteNotFound
	}
	// a malformed uuid can never match a row
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == pqInvalidTextFormat {
		return domain.ErrSiteNotFound
	}
	return err
}

func jsonParam(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func rawParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// Create inserts a draft site.
func (r *SiteRepository) Create(ctx context.Context, s *domain.Site) (*domain.Site, error) {
	if s.UserID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if s.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	biz, err := jsonParam(s.BusinessInfo)
	if err != nil {
		return nil, err
	}
	seo, err := jsonParam(s.SeoSettings)
	if err != nil {
		return nil, err
	}

	q := `
INSERT INTO sites (id, user_id, template_slug, name, editor_data, business_info, seo_settings, status)
VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8)
RETURNING ` + siteColumns + `;
`
	created, err := scanSite(r.db.QueryRowContext(ctx, q, s.ID, s.UserID, s.TemplateSlug, s.Name,
		rawParam(s.EditorData), biz, seo, domain.StatusDraft))
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID loads a site regardless of owner.
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	q := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1;`
	s, err := scanSite(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapQueryErr(err)
	}
	return s, nil
}

// GetForUser loads a site owned by userID.
func (r *SiteRepository) GetForUser(ctx context.Context, userID, id string) (*domain.Site, error) {
	q := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1 AND user_id = $2;`
	s, err := scanSite(r.db.QueryRowContext(ctx, q, id, userID))
	if err != nil {
		return nil, mapQueryErr(err)
	}
	return s, nil
}

// ListByUser returns the user's sites, most recently edited first.
func (r *SiteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Site, error) {
	q := `SELECT ` + siteColumns + ` FROM sites WHERE user_id = $1 ORDER BY updated_at DESC;`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Site, 0, 16)
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindBySubdomain returns the site holding name.
func (r *SiteRepository) FindBySubdomain(ctx context.Context, name string) (*domain.Site, error) {
	q := `SELECT ` + siteColumns + ` FROM sites WHERE subdomain = $1 LIMIT 1;`
	s, err := scanSite(r.db.QueryRowContext(ctx, q, name))
	if err != nil {
		return nil, mapQueryErr(err)
	}
	return s, nil
}

// SaveContent applies an editor save. Nil request fields keep their stored value.
func (r *SiteRepository) SaveContent(ctx context.Context, userID, id string, req domain.SaveSiteRequest) (*domain.Site, error) {
	var biz, seo any
	var err error
	if req.BusinessInfo != nil {
		if biz, err = jsonParam(req.BusinessInfo); err != nil {
			return nil, err
		}
	}
	if req.SeoSettings != nil {
		if seo, err = jsonParam(req.SeoSettings); err != nil {
			return nil, err
		}
	}

	q := `
UPDATE sites
SET editor_data   = COALESCE($3::jsonb, editor_data),
    business_info = COALESCE($4::jsonb, business_info),
    seo_settings  = COALESCE($5::jsonb, seo_settings),
    updated_at    = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + siteColumns + `;
`
	s, err := scanSite(r.db.QueryRowContext(ctx, q, id, userID, rawParam(req.EditorData), biz, seo))
	if err != nil {
		return nil, mapQueryErr(err)
	}
	return s, nil
}

// Rename updates the site's display name.
func (r *SiteRepository) Rename(ctx context.Context, userID, id, name string) (*domain.Site, error) {
	q := `
UPDATE sites
SET name = $3, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + siteColumns + `;
`
	s, err := scanSite(r.db.QueryRowContext(ctx, q, id, userID, name))
	if err != nil {
		return nil, mapQueryErr(err)
	}
	return s, nil
}

// Delete removes the site row. It reports false when nothing matched.
func (r *SiteRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	const q = `DELETE FROM sites WHERE id = $1 AND user_id = $2;`
	result, err := r.db.ExecContext(ctx, q, id, userID)
	if err != nil {
		if errors.Is(mapQueryErr(err), domain.ErrSiteNotFound) {
			return false, nil
		}
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkPublished records a claim. The unique index on subdomain rejects a name held by
// another site.
func (r *SiteRepository) MarkPublished(ctx context.Context, id, name, html string, at time.Time) error {
	const q = `
UPDATE sites
SET subdomain = $2, published_html = $3, published_at = $4, status = 'published', updated_at = $4
WHERE id = $1;
`
	result, err := r.db.ExecContext(ctx, q, id, name, html, at)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pqUniqueViolation {
			return domain.ErrSubdomainTaken
		}
		return mapQueryErr(err)
	}
	return requireRow(result)
}

// MarkUnpublished releases the site's name. The last published_html is kept.
func (r *SiteRepository) MarkUnpublished(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE sites
SET subdomain = NULL, status = 'unpublished', updated_at = $2
WHERE id = $1;
`
	result, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return mapQueryErr(err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSiteNotFound
	}
	return nil
}
