package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/tradesim/internal/blob/s3"
	"github.com/alanyoungcy/tradesim/internal/cache/redis"
	"github.com/alanyoungcy/tradesim/internal/config"
	"github.com/alanyoungcy/tradesim/internal/domain"
	"github.com/alanyoungcy/tradesim/internal/store/postgres"
)

// Dependencies bundles the infrastructure every mode needs: stores, the
// signal bus, caches, and the optional archiver. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore domain.MarketStore
	OrderStore  domain.OrderStore
	FillStore   domain.FillStore

	// Redis-backed collaborators
	SignalBus   domain.SignalBus
	BookCache   domain.BookCache
	RateLimiter domain.RateLimiter

	// Blob storage (nil unless archiving is enabled)
	Archiver *s3blob.Archiver

	// Raw clients, kept for health checks
	Postgres *postgres.Client
	Redis    *redis.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.FillStore = postgres.NewFillStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.BookCache = redis.NewBookCache(redisClient, 0)
	if cfg.RateLimit.Enabled {
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window.Duration)
	}

	// --- S3 blob storage (only when archiving is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(logger, s3blob.NewWriter(s3Client), deps.FillStore, deps.OrderStore)
	}

	return deps, cleanup, nil
}
