package ingest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps events in process for local development and tests.
type MemoryStore struct {
	mu          sync.Mutex
	visits      []Visit
	submissions []Submission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertVisit(_ context.Context, v Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, v)
	return nil
}

func (m *MemoryStore) InsertSubmission(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, s)
	return nil
}

func (m *MemoryStore) VisitCounts(_ context.Context, siteID string, today, week, month time.Time) (SiteStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st SiteStats
	for _, v := range m.visits {
		if v.SiteID != siteID {
			continue
		}
		st.TotalViews++
		if !v.CreatedAt.Before(today) {
			st.Today++
		}
		if !v.CreatedAt.Before(week) {
			st.Last7Days++
		}
		if !v.CreatedAt.Before(month) {
			st.Last30Days++
		}
	}
	return st, nil
}

func (m *MemoryStore) VisitsByDay(_ context.Context, siteID string, since time.Time) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64)
	for _, v := range m.visits {
		if v.SiteID == siteID && !v.CreatedAt.Before(since) {
			out[v.CreatedAt.UTC().Format(time.DateOnly)]++
		}
	}
	return out, nil
}

func (m *MemoryStore) SubmissionCounts(_ context.Context, siteID string, today, week time.Time) (FormStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st FormStats
	for _, s := range m.submissions {
		if s.SiteID != siteID {
			continue
		}
		st.Total++
		if !s.CreatedAt.Before(today) {
			st.Today++
		}
		if !s.CreatedAt.Before(week) {
			st.ThisWeek++
		}
	}
	return st, nil
}

func (m *MemoryStore) ListSubmissions(_ context.Context, siteID string, limit, offset int) ([]Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]Submission, 0)
	for _, s := range m.submissions {
		if s.SiteID == siteID {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	count := int64(len(matched))
	if offset >= len(matched) {
		return []Submission{}, count, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], count, nil
}

func (m *MemoryStore) DeleteSubmission(_ context.Context, siteID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.submissions {
		if s.ID == id && s.SiteID == siteID {
			m.submissions = append(m.submissions[:i], m.submissions[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
