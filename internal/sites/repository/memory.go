package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

// MemoryStore is an in-process site store with the same uniqueness rule on subdomain as
// the sites table. It backs local development without a database and the tests.
type MemoryStore struct {
	mu    sync.Mutex
	sites map[string]*domain.Site
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sites: make(map[string]*domain.Site), now: time.Now}
}

// WithClock overrides the timestamp source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func cloneSite(s *domain.Site) *domain.Site {
	c := *s
	if s.EditorData != nil {
		c.EditorData = append(json.RawMessage(nil), s.EditorData...)
	}
	if s.PublishedHTML != nil {
		v := *s.PublishedHTML
		c.PublishedHTML = &v
	}
	if s.PublishedAt != nil {
		v := *s.PublishedAt
		c.PublishedAt = &v
	}
	if s.Subdomain != nil {
		v := *s.Subdomain
		c.Subdomain = &v
	}
	return &c
}

func (m *MemoryStore) Create(_ context.Context, s *domain.Site) (*domain.Site, error) {
	if s.UserID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if s.Name == "" {
		return nil, fmt.Errorf("name required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := cloneSite(s)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := m.now().UTC()
	c.Status = domain.StatusDraft
	c.Subdomain, c.PublishedHTML, c.PublishedAt = nil, nil, nil
	c.CreatedAt, c.UpdatedAt = now, now
	m.sites[c.ID] = c
	return cloneSite(c), nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, domain.ErrSiteNotFound
	}
	return cloneSite(s), nil
}

func (m *MemoryStore) GetForUser(_ context.Context, userID, id string) (*domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sites[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrSiteNotFound
	}
	return cloneSite(s), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		if s.UserID == userID {
			out = append(out, *cloneSite(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryStore) FindBySubdomain(_ context.Context, name string) (*domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.holder(name); s != nil {
		return cloneSite(s), nil
	}
	return nil, domain.ErrSiteNotFound
}

func (m *MemoryStore) holder(name string) *domain.Site {
	for _, s := range m.sites {
		if s.Subdomain != nil && *s.Subdomain == name {
			return s
		}
	}
	return nil
}

func (m *MemoryStore) SaveContent(_ context.Context, userID, id string, req domain.SaveSiteRequest) (*domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrSiteNotFound
	}
	if req.EditorData != nil {
		s.EditorData = append(json.RawMessage(nil), req.EditorData...)
	}
	if req.BusinessInfo != nil {
		s.BusinessInfo = *req.BusinessInfo
	}
	if req.SeoSettings != nil {
		s.SeoSettings = *req.SeoSettings
	}
	s.UpdatedAt = m.now().UTC()
	return cloneSite(s), nil
}

func (m *MemoryStore) Rename(_ context.Context, userID, id, name string) (*domain.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrSiteNotFound
	}
	s.Name = name
	s.UpdatedAt = m.now().UTC()
	return cloneSite(s), nil
}

func (m *MemoryStore) Delete(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[id]
	if !ok || s.UserID != userID {
		return false, nil
	}
	delete(m.sites, id)
	return true, nil
}

func (m *MemoryStore) MarkPublished(_ context.Context, id, name, html string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[id]
	if !ok {
		return domain.ErrSiteNotFound
	}
	if h := m.holder(name); h != nil && h.ID != id {
		return domain.ErrSubdomainTaken
	}
	s.Subdomain = &name
	s.PublishedHTML = &html
	s.PublishedAt = &at
	s.Status = domain.StatusPublished
	s.UpdatedAt = at
	return nil
}

func (m *MemoryStore) MarkUnpublished(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sites[id]
	if !ok {
		return domain.ErrSiteNotFound
	}
	s.Subdomain = nil
	s.Status = domain.StatusUnpublished
	s.UpdatedAt = at
	return nil
}
