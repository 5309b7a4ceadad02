package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sitecraft/sitecraft-backend/internal/editor"
	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/placeholders"
	"github.com/sitecraft/sitecraft-backend/internal/publishing"
	"github.com/sitecraft/sitecraft-backend/internal/sitegen"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
	"github.com/sitecraft/sitecraft-backend/internal/subdomain"
)

const copySuffix = " (Copy)"

// Repository is the site record store as the lifecycle operations see it.
type Repository interface {
	Create(ctx context.Context, s *domain.Site) (*domain.Site, error)
	GetForUser(ctx context.Context, userID, id string) (*domain.Site, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Site, error)
	FindBySubdomain(ctx context.Context, name string) (*domain.Site, error)
	SaveContent(ctx context.Context, userID, id string, req domain.SaveSiteRequest) (*domain.Site, error)
	Rename(ctx context.Context, userID, id, name string) (*domain.Site, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// Publisher claims and releases subdomains.
type Publisher interface {
	Publish(ctx context.Context, siteID, name, html string) (*publishing.Result, error)
	Unpublish(ctx context.Context, siteID string) error
}

// SiteService handles site lifecycle business logic
type SiteService struct {
	repo      Repository
	publisher Publisher
	gen       *sitegen.Generator
	registry  *subdomain.Registry
	metrics   metrics.Recorder
	log       *zap.Logger
}

// NewSiteService creates a new site service
func NewSiteService(repo Repository, publisher Publisher, gen *sitegen.Generator, log *zap.Logger) *SiteService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SiteService{
		repo:      repo,
		publisher: publisher,
		gen:       gen,
		registry:  subdomain.NewRegistry(repo),
		metrics:   metrics.NoopRecorder{},
		log:       log.Named("sites"),
	}
}

func (s *SiteService) WithRecorder(r metrics.Recorder) *SiteService {
	if r != nil {
		s.metrics = r
	}
	return s
}

// Create stores a new draft. When both a template document and business info are given
// the placeholders are filled before the first save.
func (s *SiteService) Create(ctx context.Context, req domain.CreateSiteRequest) (*domain.Site, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidSiteName
	}

	site := &domain.Site{
		UserID:       req.UserID,
		TemplateSlug: strings.TrimSpace(req.TemplateSlug),
		Name:         name,
	}
	if req.BusinessInfo != nil {
		site.BusinessInfo = *req.BusinessInfo
	}

	if len(req.EditorData) > 0 {
		site.EditorData = req.EditorData
		if req.BusinessInfo != nil {
			_, data, err := applyInfo(req.EditorData, *req.BusinessInfo)
			if err != nil {
				return nil, err
			}
			if data != nil {
				site.EditorData = data
			}
		} else if _, err := parseDocument(req.EditorData); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.Create(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	s.log.Info("site created", zap.String("site_id", created.ID), zap.String("template", created.TemplateSlug))
	return created, nil
}

// Get returns one of the user's sites
func (s *SiteService) Get(ctx context.Context, userID, id string) (*domain.Site, error) {
	return s.repo.GetForUser(ctx, userID, id)
}

// List returns all sites for a user, most recently updated first
func (s *SiteService) List(ctx context.Context, userID string) ([]domain.Site, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Save persists an editor save. Editor data must decode as a document.
func (s *SiteService) Save(ctx context.Context, userID, id string, req domain.SaveSiteRequest) (*domain.Site, error) {
	if req.EditorData != nil {
		if _, err := parseDocument(req.EditorData); err != nil {
			return nil, err
		}
	}
	return s.repo.SaveContent(ctx, userID, id, req)
}

// Rename updates a site's display name
func (s *SiteService) Rename(ctx context.Context, userID, id, name string) (*domain.Site, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidSiteName
	}
	return s.repo.Rename(ctx, userID, id, name)
}

// Duplicate copies content and settings into a new draft. The copy holds no subdomain.
func (s *SiteService) Duplicate(ctx context.Context, userID, id string) (*domain.Site, error) {
	src, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	dup, err := s.repo.Create(ctx, &domain.Site{
		UserID:       userID,
		TemplateSlug: src.TemplateSlug,
		Name:         src.Name + copySuffix,
		EditorData:   src.EditorData,
		BusinessInfo: src.BusinessInfo,
		SeoSettings:  src.SeoSettings,
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate site: %w", err)
	}
	return dup, nil
}

// Delete removes a site. A published site is unpublished first so its page disappears.
func (s *SiteService) Delete(ctx context.Context, userID, id string) error {
	site, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return err
	}

	if site.CurrentSubdomain() != "" {
		if err := s.publisher.Unpublish(ctx, id); err != nil {
			return fmt.Errorf("unpublish before delete: %w", err)
		}
	}

	ok, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSiteNotFound
	}
	s.log.Info("site deleted", zap.String("site_id", id))
	return nil
}

// ApplyBusinessInfo fills the placeholders of the stored document and saves the result
// together with info. It returns the number of tokens still unresolved.
func (s *SiteService) ApplyBusinessInfo(ctx context.Context, userID, id string, info domain.BusinessInfo) (*domain.Site, int, error) {
	site, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, 0, err
	}

	doc, data, err := applyInfo(site.EditorData, info)
	if err != nil {
		return nil, 0, err
	}

	// Nil editor data leaves the stored document as it is.
	saved, err := s.repo.SaveContent(ctx, userID, id, domain.SaveSiteRequest{
		EditorData:   data,
		BusinessInfo: &info,
	})
	if err != nil {
		return nil, 0, err
	}
	return saved, placeholders.CountRemaining(doc.HTML()), nil
}

// Generate renders the site as a standalone page, as it would be published now.
func (s *SiteService) Generate(ctx context.Context, userID, id string) (string, *domain.Site, error) {
	site, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return "", nil, err
	}
	page, err := s.render(site, site.CurrentSubdomain())
	if err != nil {
		return "", nil, err
	}
	return page, site, nil
}

// Publish renders the site and publishes it under name.
func (s *SiteService) Publish(ctx context.Context, userID, id, name string) (*publishing.Result, error) {
	name = strings.TrimSpace(name)

	site, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	page, err := s.render(site, name)
	if err != nil {
		return nil, err
	}
	return s.publisher.Publish(ctx, id, name, page)
}

// Unpublish takes the site offline and releases its name.
func (s *SiteService) Unpublish(ctx context.Context, userID, id string) error {
	if _, err := s.repo.GetForUser(ctx, userID, id); err != nil {
		return err
	}
	return s.publisher.Unpublish(ctx, id)
}

// CheckSubdomain reports whether name can be claimed by siteID (which may be empty).
func (s *SiteService) CheckSubdomain(ctx context.Context, name, siteID string) subdomain.CheckResult {
	res := s.registry.Check(ctx, strings.TrimSpace(name), siteID)
	s.metrics.IncSubdomainCheck(string(res.Reason))
	return res
}

// PublishedPage returns the recorded page of the site holding name.
func (s *SiteService) PublishedPage(ctx context.Context, name string) (string, error) {
	site, err := s.repo.FindBySubdomain(ctx, name)
	if err != nil {
		return "", err
	}
	if site == nil || site.PublishedHTML == nil {
		return "", domain.ErrSiteNotFound
	}
	return *site.PublishedHTML, nil
}

func (s *SiteService) render(site *domain.Site, name string) (string, error) {
	doc, err := parseDocument(site.EditorData)
	if err != nil {
		return "", err
	}
	return s.gen.Generate(sitegen.Input{
		HTML:      doc.HTML(),
		CSS:       doc.CSS(),
		Business:  site.BusinessInfo,
		SEO:       site.SeoSettings,
		SiteID:    site.ID,
		Subdomain: name,
	}), nil
}

// applyInfo fills placeholders in raw. The encoded document is nil when nothing changed.
func applyInfo(raw []byte, info domain.BusinessInfo) (*editor.Project, []byte, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, nil, err
	}
	before, err := doc.Marshal()
	if err != nil {
		return nil, nil, fmt.Errorf("encode editor data: %w", err)
	}
	placeholders.Apply(doc, info)
	after, err := doc.Marshal()
	if err != nil {
		return nil, nil, fmt.Errorf("encode editor data: %w", err)
	}
	if bytes.Equal(before, after) {
		return doc, nil, nil
	}
	return doc, after, nil
}

func parseDocument(data []byte) (*editor.Project, error) {
	doc, err := editor.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEditorData, err)
	}
	return doc, nil
}
