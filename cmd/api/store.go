package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"wildsats-api/internal/cache"
	"wildsats-api/internal/config"
	"wildsats-api/internal/repository"
)

// openStore connects the configured player store, retrying transient startup failures.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.PlayerRepository, error) {
	opts := []repository.Option{
		repository.WithDefaultCharacter(cfg.Catalog.DefaultCharacter),
		repository.WithLogger(logger),
	}

	var repo repository.PlayerRepository
	backoff := retry.WithMaxRetries(cfg.Store.ConnectAttempts, retry.NewExponential(cfg.Store.ConnectBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		r, err := dialStore(connectCtx, cfg.Store, opts)
		if err != nil {
			logger.WarnContext(ctx, "store connection failed, retrying", "store", cfg.Store.Type, "error", err)
			return retry.RetryableError(err)
		}
		repo = r
		return nil
	})
	if err != nil {
		return nil, oops.Code("STORE_UNAVAILABLE").In("startup").With("store", cfg.Store.Type).Wrapf(err, "could not open store")
	}
	return repo, nil
}

func dialStore(ctx context.Context, cfg config.StoreConfig, opts []repository.Option) (repository.PlayerRepository, error) {
	switch cfg.Type {
	case "memory":
		return repository.NewMemoryPlayerRepository(opts...), nil
	case "postgres", "postgresql":
		return repository.NewPostgresPlayerRepository(ctx, cfg.PostgresDSN, opts...)
	case "mysql":
		return repository.NewMySQLPlayerRepository(ctx, cfg.MySQLDSN, opts...)
	case "mongodb", "mongo":
		return repository.NewMongoDBPlayerRepository(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, opts...)
	case "redis":
		return repository.DialRedisPlayerRepository(ctx, repository.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, opts...)
	default:
		return repository.NewSQLitePlayerRepository(ctx, cfg.SQLitePath, opts...)
	}
}

// openCache returns the profile and replay cache. A Redis cache that cannot be reached
// falls back to memory so the API still serves requests.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Cache {
	if cfg.Type != "redis" {
		return cache.NewMemoryCache()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddress(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.WarnContext(ctx, "redis cache unavailable, using memory", "addr", cfg.RedisAddress(), "error", err)
		return cache.NewMemoryCache()
	}
	logger.InfoContext(ctx, "redis cache initialized", "addr", cfg.RedisAddress())
	return c
}
