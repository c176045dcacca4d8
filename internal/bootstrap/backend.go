package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/habits/internal/config"
	"github.com/fastygo/habits/internal/infrastructure/cache"
	pgInfra "github.com/fastygo/habits/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/habits/internal/infrastructure/redis"
	"github.com/fastygo/habits/internal/services/lifecycle"
	"github.com/fastygo/habits/repository"
	"github.com/fastygo/habits/repository/postgres"
	redisRepo "github.com/fastygo/habits/repository/redis"
	authUC "github.com/fastygo/habits/usecase/auth"
)

// Backend bundles the connections and repositories both binaries need.
type Backend struct {
	Pool     *pgxpool.Pool
	Redis    *redislib.Client
	Cache    *cache.Store
	Docs     repository.DocumentStore
	Feed     repository.ChangeFeed
	Users    repository.UserRepository
	Sessions repository.SessionRepository
	Tokens   *authUC.TokenIssuer
	Auth     *authUC.UseCase
}

// Open connects to Postgres and Redis, applies migrations when configured and opens the
// snapshot cache. Every resource is registered on manager for shutdown.
func Open(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, logger *zap.Logger) (*Backend, error) {
	if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, cfg.AppName, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis, cfg.AppName)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	snapshots, err := cache.Open(cfg.Cache.Path, "habits")
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	manager.Register("cache", func(ctx context.Context) error {
		return snapshots.Close()
	})

	feed := redisRepo.NewChangeFeed(redisClient, cfg.Realtime.ChannelPrefix, logger)
	users := postgres.NewUserRepository(pool)
	sessions := redisRepo.NewSessionRepository(redisClient, cfg.JWT.SessionTTL)
	tokens := authUC.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer)

	return &Backend{
		Pool:     pool,
		Redis:    redisClient,
		Cache:    snapshots,
		Docs:     postgres.NewDocumentRepository(pool, feed, logger),
		Feed:     feed,
		Users:    users,
		Sessions: sessions,
		Tokens:   tokens,
		Auth:     authUC.New(users, sessions, tokens, logger),
	}, nil
}
