package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/sitecraft/sitecraft-backend/config"
	"github.com/sitecraft/sitecraft-backend/internal/assets"
	"github.com/sitecraft/sitecraft-backend/internal/auth"
	"github.com/sitecraft/sitecraft-backend/internal/bootstrap"
	"github.com/sitecraft/sitecraft-backend/internal/ingest"
	"github.com/sitecraft/sitecraft-backend/internal/logger"
	"github.com/sitecraft/sitecraft-backend/internal/metrics"
	"github.com/sitecraft/sitecraft-backend/internal/publishing"
	"github.com/sitecraft/sitecraft-backend/internal/ratelimit"
	"github.com/sitecraft/sitecraft-backend/internal/sitegen"
	"github.com/sitecraft/sitecraft-backend/internal/sites/repository"
	"github.com/sitecraft/sitecraft-backend/internal/sites/service"
	"github.com/sitecraft/sitecraft-backend/internal/storage/postgres"
	"github.com/sitecraft/sitecraft-backend/internal/users"
)

const serviceName = "sitecraft-api"

type siteStore interface {
	service.Repository
	publishing.SiteStore
	ingest.Sites
	ingest.Owners
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Environment != "production",
		Service:     serviceName,
		Version:     cfg.App.Version,
	})
	defer func() { _ = lg.Sync() }()

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()
	deps := bootstrap.RouterDeps{
		ServiceName:     serviceName,
		Version:         cfg.App.Version,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Log:             lg,
		AllowDevAuth:    cfg.App.AllowDevAuth,
		PublicPerMinute: cfg.RateLimit.PublicPerMinute,
	}

	var (
		sites       siteStore
		ingestStore ingest.Store
	)
	if cfg.Database.Enabled() {
		pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{
			DSN:       postgres.DSN(&cfg.Database),
			ConnectTO: 10 * time.Second,
			PingTO:    5 * time.Second,
			MaxConns:  int32(cfg.Database.MaxConns),
			MinConns:  int32(cfg.Database.MinConns),
		})
		if err != nil {
			lg.Fatal("open pgx pool", zap.Error(err))
		}
		defer pool.Close()

		sqlDB, err := postgres.NewConnection(ctx, &cfg.Database)
		if err != nil {
			lg.Fatal("open sql connection", zap.Error(err))
		}
		defer sqlDB.Close()

		sites = repository.NewSiteRepository(sqlDB)
		ingestStore = ingest.NewPostgresStore(pool)
		deps.Users = users.NewRepo(pool)
		deps.DB = pool
		lg.Info("using postgres storage")
	} else {
		sites = repository.NewMemoryStore()
		ingestStore = ingest.NewMemoryStore()
		deps.Users = users.NewMemoryRepo()
		lg.Warn("database not configured, using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		rdb, err := ratelimit.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Fatal("connect redis", zap.Error(err))
		}
		limiter := ratelimit.NewRedisLimiter(rdb, lg)
		defer limiter.Close()
		deps.Limiter = limiter
		deps.Redis = bootstrap.RedisPinger{Client: rdb}
	} else {
		deps.Limiter = ratelimit.NewMemoryLimiter()
	}

	var app *firebase.App
	if cfg.Firebase.CredentialsPath != "" {
		app, err = auth.NewFirebaseApp(ctx, &cfg.Firebase)
		if err != nil {
			lg.Fatal("init firebase", zap.Error(err))
		}
		client, err := auth.NewAuthClient(ctx, app)
		if err != nil {
			lg.Fatal("init firebase auth", zap.Error(err))
		}
		deps.TokenVerifier = client
	} else if !cfg.App.AllowDevAuth {
		lg.Fatal("firebase credentials are required when dev auth is disabled")
	}

	blobs, err := bootstrap.OpenBlobStores(ctx, cfg.Storage, app, cfg.Publishing.PublicOrigin)
	if err != nil {
		lg.Fatal("open blob stores", zap.Error(err))
	}

	deps.BlobFiles = blobs.DevFiles()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)
	deps.Metrics = rec
	deps.MetricsHandler = metrics.Handler(reg)

	gen := sitegen.New(sitegen.Config{
		AnalyticsEndpoint: cfg.Publishing.AnalyticsEndpoint,
		FormEndpoint:      cfg.Publishing.FormEndpoint,
		BrandName:         cfg.Publishing.BrandName,
		BrandURL:          cfg.Publishing.BrandURL,
	})
	pub := publishing.New(sites, blobs.Sites, cfg.Publishing.PublicOrigin, lg).WithRecorder(rec)

	deps.Sites = service.NewSiteService(sites, pub, gen, lg).WithRecorder(rec)
	deps.SiteOwners = sites
	deps.Assets = assets.NewUploader(blobs.Assets, lg).WithRecorder(rec)
	deps.Ingest = ingest.NewService(sites, ingestStore, lg).WithRecorder(rec)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           bootstrap.BuildRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
}
