package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft-backend/internal/assets"
	"github.com/sitecraft/sitecraft-backend/internal/auth"
	"github.com/sitecraft/sitecraft-backend/internal/sitegen"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
	"github.com/sitecraft/sitecraft-backend/internal/subdomain"
)

type createReq struct {
	Name         string               `json:"name"`
	TemplateSlug string               `json:"template_slug"`
	EditorData   json.RawMessage      `json:"editor_data"`
	BusinessInfo *domain.BusinessInfo `json:"business_info"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	site, err := h.svc.Create(c.Request.Context(), domain.CreateSiteRequest{
		UserID:       auth.UserDBID(c),
		TemplateSlug: req.TemplateSlug,
		Name:         req.Name,
		EditorData:   req.EditorData,
		BusinessInfo: req.BusinessInfo,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "site": site})
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), auth.UserDBID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sites": items})
}

func (h *Handler) get(c *gin.Context) {
	site, err := h.svc.Get(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "site": site})
}

type saveReq struct {
	EditorData   json.RawMessage      `json:"editor_data"`
	BusinessInfo *domain.BusinessInfo `json:"business_info"`
	SeoSettings  *domain.SeoSettings  `json:"seo_settings"`
}

func (h *Handler) save(c *gin.Context) {
	var req saveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	site, err := h.svc.Save(c.Request.Context(), auth.UserDBID(c), c.Param("id"), domain.SaveSiteRequest{
		EditorData:   req.EditorData,
		BusinessInfo: req.BusinessInfo,
		SeoSettings:  req.SeoSettings,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "site": site})
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *Handler) rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	site, err := h.svc.Rename(c.Request.Context(), auth.UserDBID(c), c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "site": site})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), auth.UserDBID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) duplicate(c *gin.Context) {
	site, err := h.svc.Duplicate(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "site": site})
}

func (h *Handler) applyBusinessInfo(c *gin.Context) {
	var info domain.BusinessInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	site, remaining, err := h.svc.ApplyBusinessInfo(c.Request.Context(), auth.UserDBID(c), c.Param("id"), info)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "site": site, "remaining_placeholders": remaining})
}

func (h *Handler) export(c *gin.Context) {
	page, site, err := h.svc.Generate(c.Request.Context(), auth.UserDBID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+sitegen.Filename(site.Name)+`"`)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

type publishReq struct {
	Subdomain string `json:"subdomain"`
}

func (h *Handler) publish(c *gin.Context) {
	var req publishReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Subdomain) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	res, err := h.svc.Publish(c.Request.Context(), auth.UserDBID(c), c.Param("id"), req.Subdomain)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"subdomain":    res.Subdomain,
		"url":          res.URL,
		"blob_url":     res.BlobURL,
		"published_at": res.PublishedAt,
	})
}

func (h *Handler) unpublish(c *gin.Context) {
	if err := h.svc.Unpublish(c.Request.Context(), auth.UserDBID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) uploadAssets(c *gin.Context) {
	userID, siteID := auth.UserDBID(c), c.Param("id")
	if _, err := h.svc.Get(c.Request.Context(), userID, siteID); err != nil {
		writeError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "no files provided"})
		return
	}

	files := make([]assets.File, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		f, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "read upload: " + err.Error()})
			return
		}
		files = append(files, f)
	}

	// a single file reports why it was rejected; a batch returns whatever succeeded
	if len(files) == 1 {
		asset, err := h.assets.Upload(c.Request.Context(), files[0], userID, siteID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "assets": []domain.UploadedAsset{*asset}})
		return
	}

	uploaded := h.assets.UploadMany(c.Request.Context(), files, userID, siteID)
	c.JSON(http.StatusCreated, gin.H{"ok": true, "assets": uploaded, "failed": len(files) - len(uploaded)})
}

// readUpload reads at most one byte past the size limit; Validate rejects anything larger.
func readUpload(fh *multipart.FileHeader) (assets.File, error) {
	f := assets.File{Name: fh.Filename, Type: fh.Header.Get("Content-Type"), Size: fh.Size}
	if fh.Size > assets.MaxFileSize {
		return f, nil
	}

	src, err := fh.Open()
	if err != nil {
		return f, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, assets.MaxFileSize+1))
	if err != nil {
		return f, err
	}
	f.Data = data
	f.Size = int64(len(data))
	return f, nil
}

func (h *Handler) listAssets(c *gin.Context) {
	userID, siteID := auth.UserDBID(c), c.Param("id")
	if _, err := h.svc.Get(c.Request.Context(), userID, siteID); err != nil {
		writeError(c, err)
		return
	}

	items, err := h.assets.List(c.Request.Context(), userID, siteID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "assets": items})
}

func (h *Handler) deleteAsset(c *gin.Context) {
	userID, siteID := auth.UserDBID(c), c.Param("id")
	path := strings.TrimSpace(c.Query("path"))
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "path is required"})
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), userID, siteID); err != nil {
		writeError(c, err)
		return
	}

	if err := h.assets.Delete(c.Request.Context(), userID, siteID, path); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) checkSubdomain(c *gin.Context) {
	name := c.Query("name")
	res := h.svc.CheckSubdomain(c.Request.Context(), name, c.Query("site_id"))
	c.JSON(http.StatusOK, gin.H{"ok": true, "subdomain": name, "available": res.Available, "reason": res.Reason})
}

func (h *Handler) sanitizeSubdomain(c *gin.Context) {
	name := subdomain.Sanitize(c.Query("input"))
	c.JSON(http.StatusOK, gin.H{"ok": true, "subdomain": name, "valid": subdomain.IsValid(name)})
}

func (h *Handler) servePublished(c *gin.Context) {
	page, err := h.svc.PublishedPage(c.Request.Context(), c.Param("subdomain"))
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<!DOCTYPE html><title>Not found</title><h1>Site not found</h1>"))
			return
		}
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte("<!DOCTYPE html><title>Error</title><h1>Something went wrong</h1>"))
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSiteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "site not found"})
	case errors.Is(err, domain.ErrInvalidSiteName),
		errors.Is(err, domain.ErrInvalidEditorData),
		errors.Is(err, domain.ErrInvalidSubdomain),
		errors.Is(err, domain.ErrSubdomainReserved):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrSubdomainTaken), errors.Is(err, domain.ErrSiteNotPublished):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, assets.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, assets.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, assets.ErrForeignPath):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrBlobUpload):
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
	}
}
