package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/sitecraft/sitecraft-backend/internal/api/http"
	"github.com/sitecraft/sitecraft-backend/internal/api/http/middleware"
	"github.com/sitecraft/sitecraft-backend/internal/assets"
	"github.com/sitecraft/sitecraft-backend/internal/auth"
	authmw "github.com/sitecraft/sitecraft-backend/internal/auth/middleware"
	"github.com/sitecraft/sitecraft-backend/internal/ingest"
	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/ratelimit"
	siteshttp "github.com/sitecraft/sitecraft-backend/internal/sites/http"
	"github.com/sitecraft/sitecraft-backend/internal/sites/service"
	"github.com/sitecraft/sitecraft-backend/internal/users"
)

const publicPrefix = "/api/v1/public/"

// UserStore resolves callers and serves their profile.
type UserStore interface {
	auth.UserEnsurer
	users.Profiles
}

type RouterDeps struct {
	ServiceName    string
	Version        string
	AllowedOrigins []string
	Log            *zap.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler

	DB    httpapi.Pinger
	Redis httpapi.Pinger

	Users         UserStore
	TokenVerifier authmw.TokenVerifier // nil disables bearer tokens
	AllowDevAuth  bool

	Sites      *service.SiteService
	SiteOwners ingest.Owners
	Assets     *assets.Uploader
	Ingest     *ingest.Service

	Limiter         ratelimit.Limiter
	PublicPerMinute int

	BlobFiles map[string]http.Handler // prefix -> handler, dev only
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	if dep.Log == nil {
		dep.Log = zap.NewNop()
	}
	if dep.Metrics == nil {
		dep.Metrics = metrics.NoopRecorder{}
	}
	if dep.Limiter == nil {
		dep.Limiter = ratelimit.NewMemoryLimiter()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware(dep.Log, dep.Metrics))
	r.Use(corsMiddleware(dep.AllowedOrigins))

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)
	if dep.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(dep.MetricsHandler))
	}

	for prefix, h := range dep.BlobFiles {
		r.GET(prefix+"/*path", gin.WrapH(http.StripPrefix(prefix, h)))
	}

	siteHandler := siteshttp.New(dep.Sites, dep.Assets)
	siteHandler.RegisterPublicSite(r)

	ingestHandler := ingest.NewHandler(dep.Ingest, dep.SiteOwners)
	public := r.Group("/api/v1/public")
	public.Use(ratelimit.Middleware(dep.Limiter, "public", dep.PublicPerMinute, time.Minute))
	ingestHandler.RegisterPublic(public)

	api := r.Group("/api/v1")
	if dep.TokenVerifier != nil {
		api.Use(authmw.FirebaseAuthMiddleware(dep.TokenVerifier, dep.AllowDevAuth))
	}
	api.Use(auth.WithUser(dep.Users, dep.AllowDevAuth))

	users.RegisterMe(api, dep.Users, auth.UserDBID)

	sitesGroup := api.Group("/sites")
	siteHandler.Register(sitesGroup)
	ingestHandler.RegisterSiteRoutes(sitesGroup)

	subdomains := api.Group("/subdomains")
	subdomains.Use(ratelimit.Middleware(dep.Limiter, "subdomains", dep.PublicPerMinute, time.Minute))
	siteHandler.RegisterSubdomains(subdomains)

	return r
}

// corsMiddleware opens the ingestion endpoints to every origin, since published pages may
// be served from the storage bucket, and restricts everything else to the dashboard origins.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	public := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	})

	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Email"},
		ExposeHeaders:    []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return false }
	} else {
		cfg.AllowOrigins = allowed
	}
	private := cors.New(cfg)

	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, publicPrefix) {
			public(c)
			return
		}
		private(c)
	}
}
