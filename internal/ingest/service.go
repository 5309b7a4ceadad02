package ingest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

const (
	maxPathLength     = 2048
	maxFormFields     = 50
	maxFieldLength    = 5000
	defaultFormName   = "contact"
	defaultPageSize   = 50
	maxPageSize       = 200
	defaultDailyRange = 30
	maxDailyRange     = 365
	day               = 24 * time.Hour
)

// Sites resolves the site a beacon or form post belongs to.
type Sites interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	FindBySubdomain(ctx context.Context, name string) (*domain.Site, error)
}

// Store persists visits and submissions.
type Store interface {
	InsertVisit(ctx context.Context, v Visit) error
	InsertSubmission(ctx context.Context, s Submission) error
	VisitCounts(ctx context.Context, siteID string, today, week, month time.Time) (SiteStats, error)
	VisitsByDay(ctx context.Context, siteID string, since time.Time) (map[string]int64, error)
	SubmissionCounts(ctx context.Context, siteID string, today, week time.Time) (FormStats, error)
	ListSubmissions(ctx context.Context, siteID string, limit, offset int) ([]Submission, int64, error)
	DeleteSubmission(ctx context.Context, siteID, id string) (bool, error)
}

type Service struct {
	sites   Sites
	store   Store
	log     *zap.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

func NewService(sites Sites, store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sites:   sites,
		store:   store,
		log:     log.Named("ingest"),
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
}

func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.metrics = r
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TrackVisit records a page view for the site currently published under subdomain.
func (s *Service) TrackVisit(ctx context.Context, subdomain, path, referrer, userAgent string) error {
	site, err := s.sites.FindBySubdomain(ctx, strings.ToLower(strings.TrimSpace(subdomain)))
	if err != nil {
		s.metrics.IncIngest("visit", metrics.ResultInvalid)
		return err
	}

	v := Visit{
		ID:        uuid.NewString(),
		SiteID:    site.ID,
		Path:      truncate(firstNonEmpty(path, "/"), maxPathLength),
		Referrer:  truncate(referrer, maxPathLength),
		UserAgent: truncate(userAgent, 512),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertVisit(ctx, v); err != nil {
		s.metrics.IncIngest("visit", metrics.ResultFailed)
		return fmt.Errorf("insert visit: %w", err)
	}
	s.metrics.IncIngest("visit", metrics.ResultSuccess)
	return nil
}

// SubmitForm stores a submission for a published site. Non-string values are formatted.
func (s *Service) SubmitForm(ctx context.Context, siteID, formName string, data map[string]any) (*Submission, error) {
	if strings.TrimSpace(siteID) == "" {
		s.metrics.IncIngest("form", metrics.ResultInvalid)
		return nil, fmt.Errorf("%w: site id required", ErrInvalidSubmission)
	}
	if len(data) == 0 || len(data) > maxFormFields {
		s.metrics.IncIngest("form", metrics.ResultInvalid)
		return nil, fmt.Errorf("%w: expected 1 to %d fields", ErrInvalidSubmission, maxFormFields)
	}

	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		s.metrics.IncIngest("form", metrics.ResultInvalid)
		return nil, err
	}
	if site.Status != domain.StatusPublished {
		s.metrics.IncIngest("form", metrics.ResultInvalid)
		return nil, domain.ErrSiteNotPublished
	}

	fields := make(map[string]string, len(data))
	for k, v := range data {
		key := truncate(strings.TrimSpace(k), 200)
		if key == "" {
			continue
		}
		var val string
		switch t := v.(type) {
		case nil:
		case string:
			val = t
		default:
			val = fmt.Sprint(t)
		}
		fields[key] = truncate(val, maxFieldLength)
	}

	sub := Submission{
		ID:        uuid.NewString(),
		SiteID:    site.ID,
		FormName:  truncate(firstNonEmpty(strings.TrimSpace(formName), defaultFormName), 100),
		FormData:  fields,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		s.metrics.IncIngest("form", metrics.ResultFailed)
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	s.metrics.IncIngest("form", metrics.ResultSuccess)
	s.log.Info("form submission stored", zap.String("site_id", site.ID), zap.String("form", sub.FormName))
	return &sub, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Stats returns view counts for today (UTC), the last 7 days and the last 30 days.
func (s *Service) Stats(ctx context.Context, siteID string) (SiteStats, error) {
	now := s.now().UTC()
	return s.store.VisitCounts(ctx, siteID, startOfDay(now), now.Add(-7*day), now.Add(-30*day))
}

// DailyVisits returns one entry per day for the last days days, oldest first, zero-filled.
func (s *Service) DailyVisits(ctx context.Context, siteID string, days int) ([]DailyVisit, error) {
	if days <= 0 {
		days = defaultDailyRange
	}
	if days > maxDailyRange {
		days = maxDailyRange
	}

	start := startOfDay(s.now()).Add(-time.Duration(days-1) * day)
	counts, err := s.store.VisitsByDay(ctx, siteID, start)
	if err != nil {
		return nil, err
	}

	out := make([]DailyVisit, 0, days)
	for i := 0; i < days; i++ {
		date := start.Add(time.Duration(i) * day).Format(time.DateOnly)
		out = append(out, DailyVisit{Date: date, Views: counts[date]})
	}
	return out, nil
}

func (s *Service) FormStats(ctx context.Context, siteID string) (FormStats, error) {
	now := s.now().UTC()
	return s.store.SubmissionCounts(ctx, siteID, startOfDay(now), now.Add(-7*day))
}

// Submissions pages through a site's submissions, newest first.
func (s *Service) Submissions(ctx context.Context, siteID string, limit, offset int) (SubmissionPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, count, err := s.store.ListSubmissions(ctx, siteID, limit, offset)
	if err != nil {
		return SubmissionPage{}, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return SubmissionPage{Items: items, Count: count}, nil
}

func (s *Service) DeleteSubmission(ctx context.Context, siteID, id string) error {
	ok, err := s.store.DeleteSubmission(ctx, siteID, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// never split a rune
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
