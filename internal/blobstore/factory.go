package blobstore

import (
	"context"
	"fmt"
	"log/slog"

	"stockpulse/internal/config"
)

// New opens the backend selected by cfg.Backend
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendMemory, "":
		store = NewMemoryStore()
	case config.BackendFile:
		store, err = NewFileStore(cfg.Dir)
	case config.BackendSQLite:
		store, err = NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		store, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case config.BackendRedis:
		store, err = NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB)
	case config.BackendGCS:
		store, err = NewGCSStore(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown blob store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Backend, err)
	}

	logger.InfoContext(ctx, "blob store ready",
		slog.String("component", "blobstore"),
		slog.String("backend", cfg.Backend))
	return store, nil
}
