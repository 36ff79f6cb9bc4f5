package app

import (
	"context"
	"fmt"
	"log/slog"

	"gpavault/internal/gpa/store"
	"gpavault/internal/platform/config"
	platformfirestore "gpavault/internal/platform/firestore"
	platformmongo "gpavault/internal/platform/mongo"
	"gpavault/internal/platform/postgres"
	platformredis "gpavault/internal/platform/redis"
	"gpavault/pkg/platform/circuit"
)

// OpenStore connects the configured backend and prepares its indexes or
// schema. The backend is guarded by a circuit breaker unless
// breaker.failure_threshold is 0, and fronted by the read-through cache when
// cache_ttl is set.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Breaker.FailureThreshold > 0 {
		breaker := circuit.New(cfg.Store+"-store",
			circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
			circuit.WithCooldown(cfg.Breaker.Cooldown),
		)
		backend = store.NewGuarded(backend, breaker, logger)
	}
	if cfg.CacheTTL > 0 {
		return store.NewCached(backend, cfg.CacheTTL), nil
	}
	return backend, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewInMemory(), nil

	case config.StoreMongo:
		client, err := platformmongo.New(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		s := store.NewMongo(client, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return s, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s := store.NewPostgres(db, cfg.Postgres.Table)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, fmt.Errorf("ensure postgres schema: %w", err)
		}
		return s, nil

	case config.StoreRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return store.NewRedis(client, cfg.Redis.KeyPrefix), nil

	case config.StoreFirestore:
		client, err := platformfirestore.New(ctx, cfg.Firestore)
		if err != nil {
			return nil, err
		}
		return store.NewFirestore(client, cfg.Firestore.Collection), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
