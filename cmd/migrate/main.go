package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sitecraft/sitecraft-backend/config"
	"github.com/sitecraft/sitecraft-backend/internal/logger"
	"github.com/sitecraft/sitecraft-backend/internal/migrate"
	"github.com/sitecraft/sitecraft-backend/internal/storage/postgres"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Environment != "production",
		Service:     "sitecraft-migrate",
		Version:     cfg.App.Version,
	})
	defer log.Sync()

	if !cfg.Database.Enabled() {
		log.Fatal("DB_DSN or DB_HOST is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner, err := migrate.New(postgres.DSN(&cfg.Database), log)
	if err != nil {
		log.Fatal("failed to configure migration runner", zap.Error(err))
	}

	switch *command {
	case "up":
		err = runner.Up(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		log.Error("unsupported command", zap.String("command", *command))
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("migration command failed", zap.String("command", *command), zap.Error(err))
	}

	log.Info("migration command completed", zap.String("command", *command))
}
