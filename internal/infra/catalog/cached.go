package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"checkout/internal/core/domain"
)

const snapshotKey = "catalog:snapshot"

// RedisConfig holds the snapshot cache connection settings.
type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// Cached decorates a Provider with a short-lived Redis snapshot cache. The
// cache is an optimization only: on any cache failure the inner provider is
// consulted, and a stale or missing cache never blocks a read. Validation
// correctness is unaffected because the TTL bounds staleness and finalize
// conflicts are resolved server-side.
type Cached struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached connects to Redis and wraps the inner provider. TTL defaults to
// 5 seconds when unset.
func NewCached(inner Provider, cfg RedisConfig) (*Cached, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Cached{inner: inner, rdb: rdb, ttl: ttl, log: slog.Default()}, nil
}

// GetStockSnapshot returns the cached snapshot when fresh, otherwise reads
// through to the inner provider and refreshes the cache.
func (c *Cached) GetStockSnapshot(ctx context.Context) ([]domain.StockItem, error) {
	if data, err := c.rdb.Get(ctx, snapshotKey).Bytes(); err == nil {
		var items []domain.StockItem
		if err := json.Unmarshal(data, &items); err == nil {
			return items, nil
		}
		// Corrupt cache entry; fall through and overwrite.
		c.log.Warn("discarding corrupt catalog cache entry")
	}

	items, err := c.inner.GetStockSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(items); err == nil {
		if err := c.rdb.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
			c.log.Warn("failed to cache catalog snapshot", "error", err)
		}
	}

	return items, nil
}

// Invalidate drops the cached snapshot, forcing the next read through.
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, snapshotKey).Err()
}

// Close releases the Redis connection.
func (c *Cached) Close() error {
	return c.rdb.Close()
}
