package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stackcards/revision-engine/internal/api"
	"github.com/stackcards/revision-engine/internal/config"
	"github.com/stackcards/revision-engine/internal/revision"
	"github.com/stackcards/revision-engine/internal/statscache"
	"github.com/stackcards/revision-engine/internal/storage"
	"github.com/stackcards/revision-engine/internal/warmer"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting revision-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:           cfg.Database.DSN,
		MaxOpenConns:  int32(cfg.Database.MaxOpenConns),
		MaxIdleConns:  int32(cfg.Database.MaxIdleConns),
		MigrationsDir: cfg.Database.MigrationsDir,
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected and migrated")

	// The statistics cache is optional; without Redis every statistics read
	// aggregates directly.
	var cache *statscache.Cache
	if cfg.Redis.Address != "" {
		cache, err = statscache.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.StatsTTL.Std())
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.Info("statistics cache connected", "address", cfg.Redis.Address)
	}

	service := revision.NewService(repo, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cache != nil && cfg.Warmer.Enabled {
		warmer.New(repo, cache, cfg.Warmer.Interval.Std(), cfg.Warmer.BatchSize).Start(ctx)
	}

	server := api.NewServer(cfg.Server, service, repo)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if cache != nil {
		if err := cache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
		}
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("revision-engine stopped")
}
