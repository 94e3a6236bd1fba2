package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values under a key namespace so several
// app instances share one cache. Errors degrade to misses.
type RedisCache[T any] struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

var _ Cache[int] = (*RedisCache[int])(nil)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisCache[T any](rdb *redis.Client, namespace string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (c *RedisCache[T]) key(k string) string {
	return c.namespace + ":" + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "Redis cache get failed", "key", key, "error", err)
		}
		return zero, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		slog.WarnContext(ctx, "Discarding undecodable cache entry", "key", key, "error", err)
		c.Delete(ctx, key)
		return zero, false
	}
	return out, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache delete failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) DeletePrefix(ctx context.Context, prefix string) int {
	removed := 0
	iter := c.rdb.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			slog.WarnContext(ctx, "Redis cache delete failed", "key", iter.Val(), "error", err)
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "Redis cache scan failed", "prefix", prefix, "error", err)
	}
	return removed
}

// Ping reports whether the Redis server is reachable.
func (c *RedisCache[T]) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
