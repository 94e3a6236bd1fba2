package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/cache"
	"tracker/internal/services"
	"tracker/internal/storage"
	"tracker/internal/storage/memory"
	"tracker/internal/storage/postgres"
	"tracker/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store, the snapshot cache and, when configured,
// the AMQP client. A broker failure is logged and leaves Events nil.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Backend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{}
	store, err := f.createStore(ctx, config)
	if err != nil {
		return nil, err
	}
	b.Store = store
	b.onClose(store.Close)

	if err := f.createCache(ctx, config, b); err != nil {
		b.Close()
		return nil, err
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			b.Events = client
			b.onClose(client.Close)
		}
	}

	return b, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, config Config) (storage.Store, error) {
	switch config.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil

	case SQLiteBackend:
		if config.Migrate {
			if err := storage.MigrateSQLite(sqlite.DSN(config.SQLiteDBPath), storage.Up); err != nil {
				return nil, fmt.Errorf("migrate sqlite: %w", err)
			}
		}
		store, err := sqlite.Open(ctx, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return store, nil

	case PostgresBackend:
		if config.Migrate {
			if err := storage.MigratePostgres(config.DatabaseURL, storage.Up); err != nil {
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		store, err := postgres.Open(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createCache(ctx context.Context, config Config, b *Backend) error {
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	switch config.Cache {
	case "", NoCache:
		return nil

	case MemoryCache:
		size := config.CacheSize
		if size <= 0 {
			size = 500
		}
		lru := cache.NewLRUCache[services.MonthSnapshot](size, ttl)
		manager := cache.NewManager()
		manager.Register(lru)
		manager.StartCleanup(time.Minute)
		b.Cache = lru
		b.onClose(func() error {
			manager.Stop()
			return nil
		})
		f.logger.Info("Initialized in-memory snapshot cache", "size", size, "ttl", ttl)
		return nil

	case RedisCache:
		rdb := cache.NewRedisClient(cache.RedisConfig{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		rc := cache.NewRedisCache[services.MonthSnapshot](rdb, "tracker:month", ttl)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			rdb.Close()
			return fmt.Errorf("connect redis at %s: %w", config.RedisAddr, err)
		}
		b.Cache = rc
		b.onClose(rdb.Close)
		f.logger.Info("Initialized Redis snapshot cache", "addr", config.RedisAddr, "ttl", ttl)
		return nil

	default:
		return fmt.Errorf("unsupported cache type: %s", config.Cache)
	}
}
