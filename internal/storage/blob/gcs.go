package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GCSStore writes to the Firebase default (or named) Cloud Storage bucket.
type GCSStore struct {
	bucket  *storage.BucketHandle
	baseURL string
}

// NewGCSStore opens bucketName through the Firebase app. An empty name selects the
// bucket configured on the app. baseURL defaults to the public googleapis endpoint.
func NewGCSStore(ctx context.Context, app *firebase.App, bucketName, baseURL string) (*GCSStore, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage: %w", err)
	}

	var bucket *storage.BucketHandle
	if bucketName == "" {
		bucket, err = client.DefaultBucket()
	} else {
		bucket, err = client.Bucket(bucketName)
	}
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}

	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket.BucketName()
	}
	return &GCSStore{bucket: bucket, baseURL: baseURL}, nil
}

func (s *GCSStore) Upload(ctx context.Context, path string, data []byte, opts UploadOptions) error {
	obj := s.bucket.Object(path)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.CacheControl = opts.CacheControl

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		if isGCSPreconditionFailed(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})

	out := make([]Object, 0, 16)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		out = append(out, Object{
			Name:        relativeName(prefix, attrs.Name),
			Path:        attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Updated:     attrs.Updated,
		})
	}
	return out, nil
}

func (s *GCSStore) PublicURL(path string) string {
	return joinURL(s.baseURL, path)
}

func isGCSPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}
