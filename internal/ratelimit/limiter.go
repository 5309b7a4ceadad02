// Package ratelimit throttles the unauthenticated ingestion endpoints per client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter admits at most limit events per window for each key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
	Close() error
}

const maxMemoryKeys = 10000

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is a per-process token bucket per key. Buckets refill at limit/window
// with a burst of limit, so it smooths traffic rather than resetting on window edges.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{entries: map[string]*memoryEntry{}, now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}

	now := m.now()

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		if len(m.entries) >= maxMemoryKeys {
			m.evictIdle(now, window)
		}
		e = &memoryEntry{lim: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		m.entries[key] = e
	}
	e.lastSeen = now
	m.mu.Unlock()

	allowed := e.lim.AllowN(now, 1)
	remaining := int(e.lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window / time.Duration(limit)),
	}
}

// evictIdle drops buckets untouched for a full window. Caller holds mu.
func (m *MemoryLimiter) evictIdle(now time.Time, window time.Duration) {
	for k, e := range m.entries {
		if now.Sub(e.lastSeen) > window {
			delete(m.entries, k)
		}
	}
}

func (m *MemoryLimiter) Close() error { return nil }
