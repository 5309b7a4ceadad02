package publishing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
	"github.com/sitecraft/sitecraft-backend/internal/sites/repository"
	"github.com/sitecraft/sitecraft-backend/internal/storage/blob"
)

var publishTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// flakySites lets a test fail the record side of a publication.
type flakySites struct {
	*repository.MemoryStore
	markErr      error
	unmarkErr    error
	findErr      error
	findErrAfter int32
	finds        atomic.Int32
	calls        atomic.Int32
}

func (f *flakySites) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	f.calls.Add(1)
	return f.MemoryStore.GetByID(ctx, id)
}

func (f *flakySites) FindBySubdomain(ctx context.Context, name string) (*domain.Site, error) {
	f.calls.Add(1)
	if n := f.finds.Add(1); f.findErr != nil && n > f.findErrAfter {
		return nil, f.findErr
	}
	return f.MemoryStore.FindBySubdomain(ctx, name)
}

func (f *flakySites) MarkPublished(ctx context.Context, id, name, html string, at time.Time) error {
	f.calls.Add(1)
	if f.markErr != nil {
		return f.markErr
	}
	return f.MemoryStore.MarkPublished(ctx, id, name, html, at)
}

func (f *flakySites) MarkUnpublished(ctx context.Context, id string, at time.Time) error {
	f.calls.Add(1)
	if f.unmarkErr != nil {
		return f.unmarkErr
	}
	return f.MemoryStore.MarkUnpublished(ctx, id, at)
}

// flakyBlobs lets a test fail the blob side of a publication.
type flakyBlobs struct {
	*blob.MemoryStore
	uploadErr error
	deleteErr error
}

func (f *flakyBlobs) Upload(ctx context.Context, path string, data []byte, opts blob.UploadOptions) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	return f.MemoryStore.Upload(ctx, path, data, opts)
}

func (f *flakyBlobs) Delete(ctx context.Context, path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryStore.Delete(ctx, path)
}

type fixture struct {
	sites *flakySites
	blobs *flakyBlobs
	pub   *Publisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sites := &flakySites{MemoryStore: repository.NewMemoryStore()}
	blobs := &flakyBlobs{MemoryStore: blob.NewMemoryStore("https://blobs.example.com")}
	pub := New(sites, blobs, "https://sitecraft.app", zap.NewNop()).
		WithClock(func() time.Time { return publishTime })
	return &fixture{sites: sites, blobs: blobs, pub: pub}
}

func (f *fixture) createSite(t *testing.T, name string) *domain.Site {
	t.Helper()
	s, err := f.sites.Create(context.Background(), &domain.Site{UserID: "user-1", Name: name})
	require.NoError(t, err)
	return s
}

func (f *fixture) page(t *testing.T, name string) (string, bool) {
	t.Helper()
	data, ok := f.blobs.Get(BlobPath(name))
	return string(data), ok
}

func TestBlobPath(t *testing.T) {
	assert.Equal(t, "luna/index.html", BlobPath("luna"))
}

func TestPublish_Success(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")

	res, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")

	require.NoError(t, err)
	assert.Equal(t, "luna", res.Subdomain)
	assert.Equal(t, "https://sitecraft.app/site/luna", res.URL)
	assert.Equal(t, "https://blobs.example.com/luna/index.html", res.BlobURL)
	assert.Equal(t, publishTime, res.PublishedAt)

	page, ok := f.page(t, "luna")
	require.True(t, ok)
	assert.Equal(t, "<html>v1</html>", page)
	assert.Equal(t, "public, max-age=300", f.blobs.CacheControl("luna/index.html"))

	got, err := f.sites.GetByID(context.Background(), site.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.Equal(t, "luna", got.CurrentSubdomain())
	require.NotNil(t, got.PublishedHTML)
	assert.Equal(t, "<html>v1</html>", *got.PublishedHTML)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, publishTime, *got.PublishedAt)
}

func TestPublish_ValidationHappensBeforeIO(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")

	_, err := f.pub.Publish(context.Background(), site.ID, "-bad-", "<html>")
	assert.ErrorIs(t, err, domain.ErrInvalidSubdomain)

	_, err = f.pub.Publish(context.Background(), site.ID, "admin", "<html>")
	assert.ErrorIs(t, err, domain.ErrSubdomainReserved)

	assert.Zero(t, f.sites.calls.Load())
	objs, _ := f.blobs.List(context.Background(), "")
	assert.Empty(t, objs)
}

func TestPublish_UnknownSite(t *testing.T) {
	f := newFixture(t)

	_, err := f.pub.Publish(context.Background(), "missing", "luna", "<html>")

	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
	_, ok := f.page(t, "luna")
	assert.False(t, ok)
}

func TestPublish_NameHeldByAnotherSite(t *testing.T) {
	f := newFixture(t)
	owner := f.createSite(t, "Owner")
	other := f.createSite(t, "Other")
	_, err := f.pub.Publish(context.Background(), owner.ID, "luna", "<html>owner</html>")
	require.NoError(t, err)

	_, err = f.pub.Publish(context.Background(), other.ID, "luna", "<html>other</html>")

	assert.ErrorIs(t, err, domain.ErrSubdomainTaken)
	page, _ := f.page(t, "luna")
	assert.Equal(t, "<html>owner</html>", page)
}

func TestPublish_UploadFailureLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	f.blobs.uploadErr = errors.New("bucket unavailable")

	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>")

	assert.ErrorIs(t, err, domain.ErrBlobUpload)
	got, _ := f.sites.GetByID(context.Background(), site.ID)
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.Nil(t, got.Subdomain)
}

func TestPublish_RecordFailureDeletesOrphanedPage(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	f.sites.markErr = errors.New("connection reset")

	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>")

	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSubdomainTaken)
	_, ok := f.page(t, "luna")
	assert.False(t, ok, "orphaned page must be removed")

	got, _ := f.sites.GetByID(context.Background(), site.ID)
	assert.Equal(t, domain.StatusDraft, got.Status)
	assert.Nil(t, got.Subdomain)
}

func TestPublish_RecordFailureOnRepublishRestoresLivePage(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")
	require.NoError(t, err)

	f.sites.markErr = errors.New("connection reset")
	_, err = f.pub.Publish(context.Background(), site.ID, "luna", "<html>v2</html>")

	require.Error(t, err)
	page, ok := f.page(t, "luna")
	require.True(t, ok, "live page must survive a failed republish")
	assert.Equal(t, "<html>v1</html>", page)
}

func TestPublish_CompensationLeavesPageWhenLookupFails(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	f.sites.markErr = errors.New("connection reset")
	f.sites.findErr = errors.New("connection reset")
	f.sites.findErrAfter = 1 // the advisory pre-check succeeds

	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>new</html>")

	require.Error(t, err)
	page, ok := f.page(t, "luna")
	require.True(t, ok)
	assert.Equal(t, "<html>new</html>", page)
}

func TestPublish_UniqueViolationSurfacesAsTaken(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	f.sites.markErr = domain.ErrSubdomainTaken

	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>")

	assert.ErrorIs(t, err, domain.ErrSubdomainTaken)
}

func TestPublish_RenameRemovesPreviousPage(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")
	require.NoError(t, err)

	_, err = f.pub.Publish(context.Background(), site.ID, "luna-bakery", "<html>v2</html>")
	require.NoError(t, err)

	_, ok := f.page(t, "luna")
	assert.False(t, ok)
	page, _ := f.page(t, "luna-bakery")
	assert.Equal(t, "<html>v2</html>", page)

	_, err = f.sites.FindBySubdomain(context.Background(), "luna")
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
}

func TestPublish_SameNameOverwrites(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")

	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")
	require.NoError(t, err)
	_, err = f.pub.Publish(context.Background(), site.ID, "luna", "<html>v2</html>")
	require.NoError(t, err)

	page, _ := f.page(t, "luna")
	assert.Equal(t, "<html>v2</html>", page)
}

func TestUnpublish(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	other := f.createSite(t, "Other")
	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")
	require.NoError(t, err)

	require.NoError(t, f.pub.Unpublish(context.Background(), site.ID))

	_, ok := f.page(t, "luna")
	assert.False(t, ok)
	got, _ := f.sites.GetByID(context.Background(), site.ID)
	assert.Equal(t, domain.StatusUnpublished, got.Status)
	assert.Nil(t, got.Subdomain)

	_, err = f.pub.Publish(context.Background(), other.ID, "luna", "<html>other</html>")
	assert.NoError(t, err, "released name can be claimed again")
}

func TestUnpublish_BlobFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")
	require.NoError(t, err)
	f.blobs.deleteErr = errors.New("bucket unavailable")

	require.NoError(t, f.pub.Unpublish(context.Background(), site.ID))

	got, _ := f.sites.GetByID(context.Background(), site.ID)
	assert.Equal(t, domain.StatusUnpublished, got.Status)
	assert.Nil(t, got.Subdomain)
}

func TestUnpublish_RecordFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")
	_, err := f.pub.Publish(context.Background(), site.ID, "luna", "<html>v1</html>")
	require.NoError(t, err)
	f.sites.unmarkErr = errors.New("connection reset")

	err = f.pub.Unpublish(context.Background(), site.ID)

	assert.Error(t, err)
}

func TestUnpublish_Draft(t *testing.T) {
	f := newFixture(t)
	site := f.createSite(t, "Luna")

	err := f.pub.Unpublish(context.Background(), site.ID)

	assert.ErrorIs(t, err, domain.ErrSiteNotPublished)
}

func TestPublish_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	const n = 16
	ids := make([]string, n)
	for i := range ids {
		ids[i] = f.createSite(t, fmt.Sprintf("site-%d", i)).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.pub.Publish(context.Background(), ids[i], "contested", fmt.Sprintf("<html>%d</html>", i))
		}(i)
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one publish succeeded")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSubdomainTaken)
	}
	require.NotEqual(t, -1, winner)

	holder, err := f.sites.FindBySubdomain(context.Background(), "contested")
	require.NoError(t, err)
	assert.Equal(t, ids[winner], holder.ID)

	page, ok := f.page(t, "contested")
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("<html>%d</html>", winner), page)
}
