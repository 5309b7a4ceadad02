package blob

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	cache       string
	updated     time.Time
}

// MemoryStore keeps blobs in process. Used in development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string
	now     func() time.Time
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memObject),
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (m *MemoryStore) Upload(_ context.Context, path string, data []byte, opts UploadOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[path]; exists && !opts.Overwrite {
		return ErrAlreadyExists
	}
	m.objects[path] = memObject{
		data:        append([]byte(nil), data...),
		contentType: opts.ContentType,
		cache:       opts.CacheControl,
		updated:     m.now(),
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Object, 0)
	for path, o := range m.objects {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		out = append(out, Object{
			Name:        relativeName(prefix, path),
			Path:        path,
			Size:        int64(len(o.data)),
			ContentType: o.contentType,
			Updated:     o.updated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) PublicURL(path string) string {
	return joinURL(m.baseURL, path)
}

// Get returns a copy of the stored bytes.
func (m *MemoryStore) Get(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// ServeHTTP serves a stored blob keyed by the request path without its leading slash.
func (m *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	o, ok := m.objects[strings.TrimPrefix(r.URL.Path, "/")]
	m.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if o.contentType != "" {
		w.Header().Set("Content-Type", o.contentType)
	}
	if o.cache != "" {
		w.Header().Set("Cache-Control", o.cache)
	}
	_, _ = w.Write(o.data)
}

// CacheControl returns the cache header a blob was stored with.
func (m *MemoryStore) CacheControl(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[path].cache
}

// WithClock overrides the timestamp recorded on upload.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}
