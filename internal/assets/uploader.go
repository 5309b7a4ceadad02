// Package assets validates and stores images users upload for their sites.
package assets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
	"github.com/sitecraft/sitecraft-backend/internal/storage/blob"
)

// MaxFileSize is the largest accepted upload (5 MiB).
const MaxFileSize = 5 * 1024 * 1024

const (
	assetCacheControl = "public, max-age=31536000"
	maxNameLength     = 60
	maxListed         = 100
	fallbackType      = "image/jpeg"
)

// AcceptedTypes lists the MIME types users may upload.
var AcceptedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml"}

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrForeignPath     = errors.New("asset does not belong to this site")
)

// File is one upload candidate.
type File struct {
	Name string
	Type string
	Size int64
	Data []byte
}

type Uploader struct {
	store   blob.Store
	log     *zap.Logger
	metrics metrics.Recorder
	now     func() time.Time
	suffix  func() string
}

func NewUploader(store blob.Store, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{
		store:   store,
		log:     log.Named("assets"),
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
		suffix:  randomSuffix,
	}
}

func (u *Uploader) WithRecorder(r metrics.Recorder) *Uploader {
	if r != nil {
		u.metrics = r
	}
	return u
}

// Validate checks size first, then type.
func Validate(f File) error {
	if f.Size > MaxFileSize {
		return fmt.Errorf("%w (%.1f MB). Maximum is 5 MB", ErrFileTooLarge, float64(f.Size)/(1024*1024))
	}
	for _, t := range AcceptedTypes {
		if f.Type == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %s. Use JPEG, PNG, GIF, WebP, or SVG", ErrUnsupportedType, f.Type)
}

// Prefix is the folder holding a site's assets.
func Prefix(userID, projectID string) string {
	return userID + "/" + projectID + "/"
}

// Upload validates f and stores it under a fresh name. Existing blobs are never replaced.
func (u *Uploader) Upload(ctx context.Context, f File, userID, projectID string) (*domain.UploadedAsset, error) {
	if err := Validate(f); err != nil {
		u.metrics.IncAssetUpload(metrics.ResultInvalid)
		return nil, err
	}

	path := Prefix(userID, projectID) + u.filename(f.Name)
	err := u.store.Upload(ctx, path, f.Data, blob.UploadOptions{
		ContentType:  f.Type,
		CacheControl: assetCacheControl,
	})
	if err != nil {
		u.metrics.IncAssetUpload(metrics.ResultFailed)
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	u.metrics.IncAssetUpload(metrics.ResultSuccess)
	return &domain.UploadedAsset{
		URL:  u.store.PublicURL(path),
		Path: path,
		Name: f.Name,
		Size: f.Size,
		Type: f.Type,
	}, nil
}

// UploadMany starts every upload at once and returns the successes in input order.
// Individual failures are logged and skipped.
func (u *Uploader) UploadMany(ctx context.Context, files []File, userID, projectID string) []domain.UploadedAsset {
	results := make([]*domain.UploadedAsset, len(files))

	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			asset, err := u.Upload(ctx, f, userID, projectID)
			if err != nil {
				u.log.Warn("asset upload failed", zap.String("file", f.Name), zap.String("project_id", projectID), zap.Error(err))
				return nil
			}
			results[i] = asset
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.UploadedAsset, 0, len(files))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// List returns up to 100 of the site's assets, newest first. Dot files are skipped.
func (u *Uploader) List(ctx context.Context, userID, projectID string) ([]domain.UploadedAsset, error) {
	prefix := Prefix(userID, projectID)
	objs, err := u.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(objs, func(i, j int) bool { return objs[i].Updated.After(objs[j].Updated) })

	out := make([]domain.UploadedAsset, 0, len(objs))
	for _, o := range objs {
		if strings.HasPrefix(o.Name, ".") || strings.Contains(o.Name, "/") {
			continue
		}
		typ := o.ContentType
		if typ == "" {
			typ = fallbackType
		}
		out = append(out, domain.UploadedAsset{
			URL:  u.store.PublicURL(o.Path),
			Path: o.Path,
			Name: o.Name,
			Size: o.Size,
			Type: typ,
		})
		if len(out) == maxListed {
			break
		}
	}
	return out, nil
}

// Delete removes one asset of the given site.
func (u *Uploader) Delete(ctx context.Context, userID, projectID, path string) error {
	if !strings.HasPrefix(path, Prefix(userID, projectID)) || strings.Contains(path, "..") {
		return ErrForeignPath
	}
	return u.store.Delete(ctx, path)
}

func (u *Uploader) filename(original string) string {
	return strconv.FormatInt(u.now().UnixMilli(), 10) + "-" + u.suffix() + "-" + sanitizeName(original)
}

func sanitizeName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	s := b.String()
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
	}
	return s
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}
