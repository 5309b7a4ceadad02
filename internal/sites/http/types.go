package http

import (
	"github.com/sitecraft/sitecraft-backend/internal/assets"
	"github.com/sitecraft/sitecraft-backend/internal/sites/service"
)

// Handler bundles the dependencies for site HTTP endpoints.
type Handler struct {
	svc    *service.SiteService
	assets *assets.Uploader
}

func New(svc *service.SiteService, uploader *assets.Uploader) *Handler {
	return &Handler{svc: svc, assets: uploader}
}
