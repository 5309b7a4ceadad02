package ingest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft-backend/internal/auth"
	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

const maxPublicBody = 64 << 10

// Owners confirms a site belongs to the calling user.
type Owners interface {
	GetForUser(ctx context.Context, userID, id string) (*domain.Site, error)
}

// Handler bundles the dependencies for ingestion and statistics endpoints.
type Handler struct {
	svc    *Service
	owners Owners
}

func NewHandler(svc *Service, owners Owners) *Handler {
	return &Handler{svc: svc, owners: owners}
}

// RegisterPublic attaches the endpoints published pages call.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.POST("/track-visit", h.trackVisit)
	rg.POST("/forms", h.submitForm)
}

// RegisterSiteRoutes attaches owner endpoints below a /sites group.
func (h *Handler) RegisterSiteRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/stats", h.stats)
	rg.GET("/:id/submissions", h.submissions)
	rg.DELETE("/:id/submissions/:submission_id", h.deleteSubmission)
}

type visitReq struct {
	Subdomain string `json:"subdomain"`
	Path      string `json:"path"`
	Referrer  string `json:"referrer"`
}

func (h *Handler) trackVisit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPublicBody)

	var req visitReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Subdomain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	err := h.svc.TrackVisit(c.Request.Context(), req.Subdomain, req.Path, req.Referrer, c.Request.UserAgent())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type formReq struct {
	SiteID    string         `json:"siteId"`
	ProjectID string         `json:"projectId"`
	FormName  string         `json:"formName"`
	FormData  map[string]any `json:"formData"`
}

func (h *Handler) submitForm(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPublicBody)

	var req formReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	siteID := req.SiteID
	if siteID == "" {
		siteID = req.ProjectID
	}
	if _, err := h.svc.SubmitForm(c.Request.Context(), siteID, req.FormName, req.FormData); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) ownedSiteID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := h.owners.GetForUser(c.Request.Context(), auth.UserDBID(c), id); err != nil {
		writeError(c, err)
		return "", false
	}
	return id, true
}

func (h *Handler) stats(c *gin.Context) {
	id, ok := h.ownedSiteID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	views, err := h.svc.Stats(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))
	daily, err := h.svc.DailyVisits(ctx, id, days)
	if err != nil {
		writeError(c, err)
		return
	}
	forms, err := h.svc.FormStats(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "views": views, "daily": daily, "forms": forms})
}

func (h *Handler) submissions(c *gin.Context) {
	id, ok := h.ownedSiteID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := h.svc.Submissions(c.Request.Context(), id, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "submissions": page.Items, "count": page.Count})
}

func (h *Handler) deleteSubmission(c *gin.Context) {
	id, ok := h.ownedSiteID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSubmission(c.Request.Context(), id, c.Param("submission_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSiteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "site not found"})
	case errors.Is(err, domain.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, domain.ErrSiteNotPublished):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, ErrInvalidSubmission):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "internal error"})
	}
}
