package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft-backend/internal/assets"
	"github.com/sitecraft/sitecraft-backend/internal/auth"
	"github.com/sitecraft/sitecraft-backend/internal/publishing"
	"github.com/sitecraft/sitecraft-backend/internal/sitegen"
	"github.com/sitecraft/sitecraft-backend/internal/sites/repository"
	"github.com/sitecraft/sitecraft-backend/internal/sites/service"
	"github.com/sitecraft/sitecraft-backend/internal/storage/blob"
)

type testEnv struct {
	router *gin.Engine
	blobs  *blob.MemoryStore
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryStore()
	blobs := blob.NewMemoryStore("https://cdn.example.com")
	svc := service.NewSiteService(repo, publishing.New(repo, blobs, "https://sitecraft.test", nil), sitegen.New(sitegen.Config{}), nil)
	h := New(svc, assets.NewUploader(blobs, nil))

	r := gin.New()
	h.RegisterPublicSite(r)
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(auth.CtxUserDBID, c.GetHeader("X-Test-User"))
		c.Next()
	})
	h.Register(api.Group("/sites"))
	h.RegisterSubdomains(api.Group("/subdomains"))

	return testEnv{router: r, blobs: blobs}
}

func (e testEnv) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e testEnv) createSite(t *testing.T, user string) string {
	t.Helper()
	rr := e.do(http.MethodPost, "/api/v1/sites", user, gin.H{
		"name":          "Luna Bakery",
		"template_slug": "bakery",
		"editor_data":   gin.H{"components": []gin.H{{"tagName": "h1", "components": []gin.H{{"type": "textnode", "content": "{{business_name}}"}}}}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		Site struct {
			ID string `json:"id"`
		} `json:"site"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Site.ID
}

func TestSiteCRUD(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSite(t, "u1")

	rr := e.do(http.MethodPost, "/api/v1/sites", "u1", gin.H{"name": " "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(http.MethodGet, "/api/v1/sites", "u1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), id)

	rr = e.do(http.MethodGet, "/api/v1/sites/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(http.MethodPut, "/api/v1/sites/"+id, "u1", gin.H{"seo_settings": gin.H{"title": "Fresh bread"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"title":"Fresh bread"`)

	rr = e.do(http.MethodPut, "/api/v1/sites/"+id, "u1", gin.H{"editor_data": "not a document"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(http.MethodPatch, "/api/v1/sites/"+id, "u1", gin.H{"name": "Sol"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Sol"`)

	rr = e.do(http.MethodPost, "/api/v1/sites/"+id+"/duplicate", "u1", nil)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Sol (Copy)"`)

	rr = e.do(http.MethodDelete, "/api/v1/sites/"+id, "u1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(http.MethodDelete, "/api/v1/sites/"+id, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBusinessInfoAndExport(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSite(t, "u1")

	rr := e.do(http.MethodPost, "/api/v1/sites/"+id+"/business-info", "u1", gin.H{"business_name": "Luna"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"remaining_placeholders":0`)

	rr = e.do(http.MethodGet, "/api/v1/sites/"+id+"/export", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="luna-bakery.html"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<h1>Luna</h1>")
}

func TestPublishFlow(t *testing.T) {
	e := newTestEnv(t)
	first := e.createSite(t, "u1")
	second := e.createSite(t, "u2")

	rr := e.do(http.MethodPost, "/api/v1/sites/"+first+"/publish", "u1", gin.H{"subdomain": "Bad_Name"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(http.MethodPost, "/api/v1/sites/"+first+"/publish", "u1", gin.H{"subdomain": "admin"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(http.MethodPost, "/api/v1/sites/"+first+"/publish", "u1", gin.H{"subdomain": "luna"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"url":"https://sitecraft.test/site/luna"`)

	rr = e.do(http.MethodPost, "/api/v1/sites/"+second+"/publish", "u2", gin.H{"subdomain": "luna"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(http.MethodGet, "/api/v1/subdomains/check?name=luna&site_id="+second, "u2", nil)
	assert.JSONEq(t, `{"ok":true,"subdomain":"luna","available":false,"reason":"taken"}`, rr.Body.String())

	rr = e.do(http.MethodGet, "/site/luna", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "<!DOCTYPE html>"))

	rr = e.do(http.MethodPost, "/api/v1/sites/"+first+"/unpublish", "u1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = e.do(http.MethodPost, "/api/v1/sites/"+first+"/unpublish", "u1", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = e.do(http.MethodGet, "/site/luna", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSanitizeSubdomain(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(http.MethodGet, "/api/v1/subdomains/sanitize?input=Luna%27s%20Bakery!", "u1", nil)

	assert.JSONEq(t, `{"ok":true,"subdomain":"luna-s-bakery","valid":true}`, rr.Body.String())
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, typ := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", typ)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("data-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e testEnv) upload(t *testing.T, id, user string, files map[string]string) *httptest.ResponseRecorder {
	body, ct := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sites/"+id+"/assets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Test-User", user)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func TestAssets(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSite(t, "u1")

	rr := e.upload(t, id, "u1", map[string]string{"doc.pdf": "application/pdf"})
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = e.upload(t, id, "u2", map[string]string{"logo.png": "image/png"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.upload(t, id, "u1", map[string]string{"logo.png": "image/png", "bad.exe": "application/octet-stream"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"failed":1`)

	var resp struct {
		Assets []struct {
			Path string `json:"path"`
		} `json:"assets"`
	}
	rr = e.do(http.MethodGet, "/api/v1/sites/"+id+"/assets", "u1", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Assets, 1)
	assert.True(t, strings.HasPrefix(resp.Assets[0].Path, assets.Prefix("u1", id)))

	rr = e.do(http.MethodDelete, "/api/v1/sites/"+id+"/assets?path=other/"+id+"/x.png", "u1", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(http.MethodDelete, "/api/v1/sites/"+id+"/assets?path="+resp.Assets[0].Path, "u1", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	objs, err := e.blobs.List(context.Background(), assets.Prefix("u1", id))
	require.NoError(t, err)
	assert.Empty(t, objs)
}
