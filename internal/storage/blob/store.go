// Package blob stores published pages and uploaded assets in an object store.
package blob

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrAlreadyExists is returned by Upload when Overwrite is false and the path is taken.
var ErrAlreadyExists = errors.New("blob already exists")

// UploadOptions control a single write.
type UploadOptions struct {
	ContentType  string
	CacheControl string
	Overwrite    bool
}

// Object describes a stored blob. Name is relative to the listed prefix.
type Object struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Updated     time.Time `json:"updated_at"`
}

// Store is the narrow object-store contract used by publishing and assets.
// Delete of a missing path is not an error.
type Store interface {
	Upload(ctx context.Context, path string, data []byte, opts UploadOptions) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	PublicURL(path string) string
}

func relativeName(prefix, path string) string {
	if prefix == "" {
		return path
	}
	return strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
