package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizbook-service/internal/app"
	"quizbook-service/internal/config"
	"quizbook-service/internal/infra/memory"
	pgstore "quizbook-service/internal/infra/postgres"
	redisstore "quizbook-service/internal/infra/redis"
	"quizbook-service/internal/infra/sqlite"
)

// quizCatalog is a durable quiz store that backs the quiz cache.
type quizCatalog interface {
	memory.QuizLoader
	memory.QuizWriter
}

// buildStores wires the adapters for store.driver:
//
//	memory    everything in process
//	sqlite    quizzes, attempts and snapshots in one SQLite file
//	redis     everything in Redis; quizzes in Postgres when postgres.url is set
//	postgres  quizzes, attempts and snapshots in Postgres; Redis snapshots,
//	          quiz cache and session markers when redis.addr is set
//
// The returned cleanup closes every opened client.
func buildStores(ctx context.Context, cfg config.Config, log *zap.Logger) (app.Stores, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (app.Stores, func(), error) {
		cleanup()
		return app.Stores{}, func() {}, err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 5*time.Minute)
	snapshotTTL := config.TTLDuration(cfg.Store.SnapshotTTL, 72*time.Hour)

	var redisClient *redis.Client
	connectRedis := func() error {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		return nil
	}

	var stores app.Stores
	var catalog quizCatalog

	switch cfg.Store.Driver {
	case "", config.DriverMemory:
		mem := memory.NewQuizCatalog(nil)
		catalog = mem
		stores.Snapshots = memory.NewSnapshotStore()
		stores.Attempts = memory.NewAttemptStore()

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = db.Close() })
		catalog = sqlite.NewQuizStore(db)
		stores.Snapshots = sqlite.NewSnapshotStore(db)
		stores.Attempts = sqlite.NewAttemptStore(db)

	case config.DriverRedis:
		if err := connectRedis(); err != nil {
			return fail(err)
		}
		catalog = redisstore.NewQuizStore(redisClient)
		if cfg.Postgres.URL != "" {
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return fail(fmt.Errorf("connect postgres: %w", err))
			}
			closers = append(closers, pool.Close)
			catalog = pgstore.NewQuizStore(pool)
		}
		stores.Snapshots = redisstore.NewSnapshotStore(redisClient, snapshotTTL)
		stores.Attempts = redisstore.NewAttemptStore(redisClient)

	case config.DriverPostgres:
		if cfg.Postgres.URL == "" {
			return fail(fmt.Errorf("postgres url not configured"))
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		catalog = pgstore.NewQuizStore(pool)
		stores.Attempts = pgstore.NewAttemptStore(pool)
		stores.Snapshots = pgstore.NewSnapshotStore(pool)
		if cfg.Redis.Addr != "" {
			if err := connectRedis(); err != nil {
				return fail(err)
			}
			stores.Snapshots = redisstore.NewSnapshotStore(redisClient, snapshotTTL)
		}

	default:
		return fail(fmt.Errorf("unknown store driver %q", cfg.Store.Driver))
	}

	// publishing goes through the cache so new quizzes start warm
	if redisClient != nil {
		repo := redisstore.NewQuizRepository(redisClient, catalog, quizTTL)
		stores.Quizzes, stores.Catalog = repo, repo
		stores.Sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	} else {
		repo := memory.NewQuizRepository(catalog, quizTTL)
		stores.Quizzes, stores.Catalog = repo, repo
		stores.Sessions = memory.NewSessionStore()
	}

	log.Info("stores ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("redis", redisClient != nil),
	)
	return stores, cleanup, nil
}
