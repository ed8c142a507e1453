package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"ridemeter/internal/broker"
	"ridemeter/internal/config"
	ridemeterredis "ridemeter/internal/redis"
	"ridemeter/internal/repository"
	"ridemeter/internal/repository/memory"
	"ridemeter/internal/repository/postgres"
)

// NewDurableStore returns the DurableStore selected by cfg.Backend. The
// backend's client must have been opened by the caller.
func NewDurableStore(cfg config.StoreConfig, db *sql.DB, rdb *redis.Client) (repository.DurableStore, error) {
	switch cfg.Backend {
	case config.StoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("store backend %q needs a redis client", cfg.Backend)
		}
		return ridemeterredis.NewKVStore(rdb), nil
	case config.StorePostgres:
		if db == nil {
			return nil, fmt.Errorf("store backend %q needs a database", cfg.Backend)
		}
		return postgres.NewKVStore(db), nil
	case config.StoreMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewSyncTransport returns the SyncTransport selected by cfg.Sync.Transport
// and a close function. A nil transport disables backend sync.
func NewSyncTransport(cfg *config.Config, db *sql.DB, logger *slog.Logger) (repository.SyncTransport, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Sync.Transport {
	case config.TransportPostgres:
		if db == nil {
			return nil, noop, fmt.Errorf("sync transport %q needs a database", cfg.Sync.Transport)
		}
		return postgres.NewBillingSink(db), noop, nil
	case config.TransportAMQP:
		if cfg.AMQP.URL == "" {
			return nil, noop, fmt.Errorf("sync transport %q needs AMQP_URL", cfg.Sync.Transport)
		}
		publisher, err := broker.NewBillingPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		return publisher, publisher.Close, nil
	case config.TransportNone, "":
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown sync transport %q", cfg.Sync.Transport)
	}
}

// NeedsDatabase reports whether any configured component uses Postgres.
func NeedsDatabase(cfg *config.Config) bool {
	return cfg.Store.Backend == config.StorePostgres || cfg.Sync.Transport == config.TransportPostgres
}
