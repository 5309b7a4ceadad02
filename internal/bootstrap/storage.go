package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sitecraft/sitecraft-backend/config"
	"github.com/sitecraft/sitecraft-backend/internal/storage/blob"
)

// BlobStores are the two buckets the API writes to.
type BlobStores struct {
	Sites  blob.Store
	Assets blob.Store
}

// DevFiles maps URL prefixes to in-process stores so their public URLs resolve.
// Empty for bucket-backed providers.
func (b BlobStores) DevFiles() map[string]http.Handler {
	out := map[string]http.Handler{}
	if m, ok := b.Sites.(*blob.MemoryStore); ok {
		out["/blobs/sites"] = m
	}
	if m, ok := b.Assets.(*blob.MemoryStore); ok {
		out["/blobs/assets"] = m
	}
	return out
}

// OpenBlobStores selects the storage provider. The gcs provider needs app.
func OpenBlobStores(ctx context.Context, cfg config.StorageConfig, app *firebase.App, publicOrigin string) (BlobStores, error) {
	switch cfg.Provider {
	case config.StorageGCS:
		if app == nil {
			return BlobStores{}, fmt.Errorf("gcs storage requires a Firebase app")
		}
		sites, err := blob.NewGCSStore(ctx, app, cfg.SitesBucket, cfg.BaseURL)
		if err != nil {
			return BlobStores{}, fmt.Errorf("open sites bucket: %w", err)
		}
		assets, err := blob.NewGCSStore(ctx, app, cfg.AssetsBucket, cfg.BaseURL)
		if err != nil {
			return BlobStores{}, fmt.Errorf("open assets bucket: %w", err)
		}
		return BlobStores{Sites: sites, Assets: assets}, nil

	case config.StorageS3:
		open := func(bucket string) (*blob.S3Store, error) {
			return blob.NewS3Store(ctx, blob.S3Config{
				Bucket:       bucket,
				Region:       cfg.S3Region,
				Endpoint:     cfg.S3Endpoint,
				UsePathStyle: cfg.S3PathStyle,
				BaseURL:      cfg.BaseURL,
			})
		}
		sites, err := open(cfg.SitesBucket)
		if err != nil {
			return BlobStores{}, fmt.Errorf("open sites bucket: %w", err)
		}
		assets, err := open(cfg.AssetsBucket)
		if err != nil {
			return BlobStores{}, fmt.Errorf("open assets bucket: %w", err)
		}
		return BlobStores{Sites: sites, Assets: assets}, nil

	default:
		base := publicOrigin + "/blobs"
		return BlobStores{
			Sites:  blob.NewMemoryStore(base + "/sites"),
			Assets: blob.NewMemoryStore(base + "/assets"),
		}, nil
	}
}

// RedisPinger adapts a go-redis client to the health handler.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
