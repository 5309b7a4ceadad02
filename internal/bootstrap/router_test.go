package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft-backend/internal/assets"
	"github.com/sitecraft/sitecraft-backend/internal/ingest"
	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/publishing"
	"github.com/sitecraft/sitecraft-backend/internal/sitegen"
	"github.com/sitecraft/sitecraft-backend/internal/sites/repository"
	"github.com/sitecraft/sitecraft-backend/internal/sites/service"
	"github.com/sitecraft/sitecraft-backend/internal/storage/blob"
	"github.com/sitecraft/sitecraft-backend/internal/users"
)

func newTestRouter(t *testing.T, publicPerMinute int) *gin.Engine {
	t.Helper()
	SetGinMode("test")

	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	sites := repository.NewMemoryStore()
	stores := BlobStores{
		Sites:  blob.NewMemoryStore("https://sitecraft.test/blobs/sites"),
		Assets: blob.NewMemoryStore("https://sitecraft.test/blobs/assets"),
	}
	pub := publishing.New(sites, stores.Sites, "https://sitecraft.test", nil).WithRecorder(rec)
	svc := service.NewSiteService(sites, pub, sitegen.New(sitegen.Config{}), nil).WithRecorder(rec)

	return BuildRouter(RouterDeps{
		ServiceName:     "sitecraft-api",
		Version:         "test",
		AllowedOrigins:  []string{"https://app.sitecraft.test"},
		Metrics:         rec,
		MetricsHandler:  metrics.Handler(reg),
		Users:           users.NewMemoryRepo(),
		AllowDevAuth:    true,
		Sites:           svc,
		SiteOwners:      sites,
		Assets:          assets.NewUploader(stores.Assets, nil),
		Ingest:          ingest.NewService(sites, ingest.NewMemoryStore(), nil),
		PublicPerMinute: publicPerMinute,
		BlobFiles:       stores.DevFiles(),
	})
}

func call(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRouter_EndToEnd(t *testing.T) {
	r := newTestRouter(t, 100)
	user := map[string]string{"X-User-Id": "alice"}

	rr := call(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = call(r, http.MethodGet, "/api/v1/me", "", user)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"firebase_uid":"alice"`)

	rr = call(r, http.MethodPost, "/api/v1/sites", `{"name":"Luna","editor_data":{"components":[{"tagName":"h1","components":[{"type":"textnode","content":"Hi"}]}]}}`, user)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := extractID(t, rr.Body.Bytes())

	rr = call(r, http.MethodPost, "/api/v1/sites/"+id+"/publish", `{"subdomain":"luna"}`, user)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = call(r, http.MethodGet, "/site/luna", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Hi</h1>")

	rr = call(r, http.MethodGet, "/blobs/sites/"+publishing.BlobPath("luna"), "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>Hi</h1>")

	rr = call(r, http.MethodPost, "/api/v1/public/track-visit", `{"subdomain":"luna","path":"/"}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = call(r, http.MethodGet, "/api/v1/sites/"+id+"/stats", "", user)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total_views":1`)

	rr = call(r, http.MethodGet, "/api/v1/sites/"+id+"/stats", "", map[string]string{"X-User-Id": "mallory"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `sitecraft_publish_total{result="success"} 1`)
	assert.Contains(t, rr.Body.String(), `route="/api/v1/sites/:id/publish"`)
}

func TestRouter_PublicRateLimit(t *testing.T) {
	r := newTestRouter(t, 1)

	rr := call(r, http.MethodPost, "/api/v1/public/track-visit", `{"subdomain":"ghost"}`, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(r, http.MethodPost, "/api/v1/public/track-visit", `{"subdomain":"ghost"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouter_CORS(t *testing.T) {
	r := newTestRouter(t, 10)

	preflight := func(path, origin string) *httptest.ResponseRecorder {
		return call(r, http.MethodOptions, path, "", map[string]string{
			"Origin":                        origin,
			"Access-Control-Request-Method": http.MethodPost,
		})
	}

	rr := preflight("/api/v1/public/forms", "https://luna.cdn.example.com")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = preflight("/api/v1/sites", "https://app.sitecraft.test")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.sitecraft.test", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = preflight("/api/v1/sites", "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func extractID(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Site struct {
			ID string `json:"id"`
		} `json:"site"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Site.ID)
	return resp.Site.ID
}
