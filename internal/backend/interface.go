package backend

import (
	"context"
	"errors"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/cache"
	"tracker/internal/services"
	"tracker/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Backend bundles the infrastructure the binaries wire into services.
type Backend struct {
	Store storage.Store
	// Cache is nil when caching is disabled.
	Cache cache.Cache[services.MonthSnapshot]
	// Events is nil when no AMQP URL is configured or the broker was unreachable.
	Events *amqp.Client

	cleanups []CleanupFunc
}

// Close releases resources in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}

func (b *Backend) onClose(fn CleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string
	// Migrate applies pending migrations before opening the store.
	Migrate bool

	Cache         CacheType
	CacheTTL      time.Duration
	CacheSize     int
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of storage backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// CacheType selects the month snapshot cache
type CacheType string

const (
	NoCache     CacheType = "none"
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (ct CacheType) IsValid() bool {
	switch ct {
	case NoCache, MemoryCache, RedisCache:
		return true
	default:
		return false
	}
}
