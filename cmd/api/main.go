package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/paisa-play/paisa_play/internal/config"
	"github.com/paisa-play/paisa_play/internal/infra"
	"github.com/paisa-play/paisa_play/internal/logging"
	"github.com/paisa-play/paisa_play/internal/server"
	"github.com/paisa-play/paisa_play/internal/workers/economyadjust"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName, cfg.LogLevel)

	ctx := context.Background()

	// In dev the service runs on in-memory backends when Postgres or Redis
	// are not configured.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else if cfg.IsDev() {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	} else {
		logger.Error("DATABASE_URL is required outside dev")
		os.Exit(1)
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else if cfg.IsDev() {
		logger.Warn("REDIS_URL not set, idempotency and shared policy disabled")
	} else {
		logger.Error("REDIS_URL is required outside dev")
		os.Exit(1)
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	adjuster, err := economyadjust.New(srv.Services().Economy, cfg.AdjustSchedule, logger)
	if err != nil {
		logger.Error("schedule economy adjuster", "error", err)
		os.Exit(1)
	}
	adjuster.Start()
	defer adjuster.Stop()

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
