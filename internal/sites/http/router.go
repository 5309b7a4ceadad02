package http

import "github.com/gin-gonic/gin"

// Register attaches site routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PUT("/:id", h.save)
	rg.PATCH("/:id", h.rename)
	rg.DELETE("/:id", h.delete)
	rg.POST("/:id/duplicate", h.duplicate)
	rg.POST("/:id/business-info", h.applyBusinessInfo)
	rg.GET("/:id/export", h.export)
	rg.POST("/:id/publish", h.publish)
	rg.POST("/:id/unpublish", h.unpublish)
	rg.POST("/:id/assets", h.uploadAssets)
	rg.GET("/:id/assets", h.listAssets)
	rg.DELETE("/:id/assets", h.deleteAsset)
}

// RegisterSubdomains attaches the availability helpers.
func (h *Handler) RegisterSubdomains(rg *gin.RouterGroup) {
	rg.GET("/check", h.checkSubdomain)
	rg.GET("/sanitize", h.sanitizeSubdomain)
}

// RegisterPublicSite serves published pages by name.
func (h *Handler) RegisterPublicSite(r gin.IRouter) {
	r.GET("/site/:subdomain", h.servePublished)
}
