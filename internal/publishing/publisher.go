// Package publishing claims a public name for a site and keeps the blob store and the
// site record in step while doing so.
package publishing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
	"github.com/sitecraft/sitecraft-backend/internal/storage/blob"
	"github.com/sitecraft/sitecraft-backend/internal/subdomain"
)

const (
	pageContentType  = "text/html; charset=utf-8"
	pageCacheControl = "public, max-age=300"
)

// Compensation outcomes, used as metric labels.
const (
	actionDelete        = "delete"
	actionDeleteFailed  = "delete_failed"
	actionRestore       = "restore"
	actionRestoreFailed = "restore_failed"
	actionSkipped       = "skipped"
)

// SiteStore is the record side of a publication. MarkPublished must return
// domain.ErrSubdomainTaken when another site already holds name, and both Mark methods
// return domain.ErrSiteNotFound for an unknown id. FindBySubdomain returns
// domain.ErrSiteNotFound when the name is free.
type SiteStore interface {
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	FindBySubdomain(ctx context.Context, name string) (*domain.Site, error)
	MarkPublished(ctx context.Context, id, name, html string, at time.Time) error
	MarkUnpublished(ctx context.Context, id string, at time.Time) error
}

// Result describes a successful publication.
type Result struct {
	Subdomain   string    `json:"subdomain"`
	URL         string    `json:"url"`
	BlobURL     string    `json:"blob_url"`
	PublishedAt time.Time `json:"published_at"`
}

type Publisher struct {
	sites   SiteStore
	blobs   blob.Store
	origin  string
	log     *zap.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// New creates a Publisher. origin is the public base the host layer serves /site/{name} from.
func New(sites SiteStore, blobs blob.Store, origin string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		sites:   sites,
		blobs:   blobs,
		origin:  origin,
		log:     log.Named("publishing"),
		metrics: metrics.NoopRecorder{},
		now:     time.Now,
	}
}

func (p *Publisher) WithRecorder(r metrics.Recorder) *Publisher {
	if r != nil {
		p.metrics = r
	}
	return p
}

func (p *Publisher) WithClock(now func() time.Time) *Publisher {
	p.now = now
	return p
}

// BlobPath is where a published page lives in the blob store.
func BlobPath(name string) string {
	return name + "/index.html"
}

// Publish uploads html under name and records the claim on the site. Name validation and
// the reserved check happen before any I/O. If the record update fails the blob is put
// back to whatever the record store says lives at name.
func (p *Publisher) Publish(ctx context.Context, siteID, name, html string) (*Result, error) {
	if !subdomain.IsValid(name) {
		p.metrics.IncPublish(metrics.ResultInvalid)
		return nil, domain.ErrInvalidSubdomain
	}
	if subdomain.IsReserved(name) {
		p.metrics.IncPublish(metrics.ResultInvalid)
		return nil, domain.ErrSubdomainReserved
	}

	start := time.Now()
	defer func() { p.metrics.ObservePublishDuration(time.Since(start)) }()

	site, err := p.sites.GetByID(ctx, siteID)
	if err != nil {
		p.metrics.IncPublish(metrics.ResultFailed)
		return nil, err
	}
	previous := site.CurrentSubdomain()

	// advisory: the unique index on the record store is what actually arbitrates
	holder, err := p.sites.FindBySubdomain(ctx, name)
	switch {
	case errors.Is(err, domain.ErrSiteNotFound):
	case err != nil:
		p.metrics.IncPublish(metrics.ResultFailed)
		return nil, fmt.Errorf("lookup subdomain: %w", err)
	case holder != nil && holder.ID != siteID:
		p.metrics.IncPublish(metrics.ResultConflict)
		return nil, domain.ErrSubdomainTaken
	}

	path := BlobPath(name)
	if err := p.blobs.Upload(ctx, path, []byte(html), blob.UploadOptions{
		ContentType:  pageContentType,
		CacheControl: pageCacheControl,
		Overwrite:    true,
	}); err != nil {
		p.metrics.IncPublish(metrics.ResultFailed)
		p.log.Error("upload published page", zap.String("site_id", siteID), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrBlobUpload, err)
	}

	at := p.now().UTC()
	if err := p.sites.MarkPublished(ctx, siteID, name, html, at); err != nil {
		p.compensate(ctx, siteID, name)
		if errors.Is(err, domain.ErrSubdomainTaken) {
			p.metrics.IncPublish(metrics.ResultConflict)
			return nil, err
		}
		p.metrics.IncPublish(metrics.ResultFailed)
		return nil, fmt.Errorf("record publication: %w", err)
	}

	if previous != "" && previous != name {
		if err := p.blobs.Delete(ctx, BlobPath(previous)); err != nil {
			p.log.Warn("remove previous published page", zap.String("site_id", siteID), zap.String("subdomain", previous), zap.Error(err))
		}
	}

	p.metrics.IncPublish(metrics.ResultSuccess)
	p.log.Info("site published", zap.String("site_id", siteID), zap.String("subdomain", name))
	return &Result{
		Subdomain:   name,
		URL:         subdomain.PublishedURL(p.origin, name),
		BlobURL:     p.blobs.PublicURL(path),
		PublishedAt: at,
	}, nil
}

// compensate restores the blob at name to match the record store after a failed update.
func (p *Publisher) compensate(ctx context.Context, siteID, name string) {
	log := p.log.With(zap.String("site_id", siteID))
	p.metrics.IncCompensation(p.restore(context.WithoutCancel(ctx), name, log))
}

// restore makes the blob at name agree with the record store and reports what it did.
// A name with a holder gets the holder's recorded page back, a free name loses the blob,
// and an unreadable record store leaves the blob alone.
func (p *Publisher) restore(ctx context.Context, name string, log *zap.Logger) string {
	path := BlobPath(name)
	log = log.With(zap.String("path", path))

	holder, err := p.sites.FindBySubdomain(ctx, name)
	if err == nil && holder == nil {
		err = domain.ErrSiteNotFound
	}
	switch {
	case errors.Is(err, domain.ErrSiteNotFound):
		if err := p.blobs.Delete(ctx, path); err != nil {
			log.Warn("restore: delete orphaned page", zap.Error(err))
			return actionDeleteFailed
		}
		return actionDelete
	case err != nil:
		log.Warn("restore: holder lookup failed, leaving page", zap.Error(err))
		return actionSkipped
	case holder.PublishedHTML == nil:
		log.Warn("restore: holder has no recorded page", zap.String("holder_id", holder.ID))
		return actionSkipped
	default:
		if err := p.blobs.Upload(ctx, path, []byte(*holder.PublishedHTML), blob.UploadOptions{
			ContentType:  pageContentType,
			CacheControl: pageCacheControl,
			Overwrite:    true,
		}); err != nil {
			log.Error("restore: upload holder page", zap.String("holder_id", holder.ID), zap.Error(err))
			return actionRestoreFailed
		}
		return actionRestore
	}
}

// Unpublish removes the page and releases the name. Blob removal is best effort; the
// record update is authoritative.
func (p *Publisher) Unpublish(ctx context.Context, siteID string) error {
	site, err := p.sites.GetByID(ctx, siteID)
	if err != nil {
		p.metrics.IncUnpublish(metrics.ResultFailed)
		return err
	}

	name := site.CurrentSubdomain()
	if name == "" && site.Status != domain.StatusPublished {
		p.metrics.IncUnpublish(metrics.ResultInvalid)
		return domain.ErrSiteNotPublished
	}

	if name != "" {
		if err := p.blobs.Delete(ctx, BlobPath(name)); err != nil {
			p.log.Warn("remove published page", zap.String("site_id", siteID), zap.String("subdomain", name), zap.Error(err))
		}
	}

	if err := p.sites.MarkUnpublished(ctx, siteID, p.now().UTC()); err != nil {
		p.metrics.IncUnpublish(metrics.ResultFailed)
		return fmt.Errorf("record unpublish: %w", err)
	}

	p.metrics.IncUnpublish(metrics.ResultSuccess)
	p.log.Info("site unpublished", zap.String("site_id", siteID), zap.String("subdomain", name))
	return nil
}
