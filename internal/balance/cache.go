package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the read-side cache for computed warehouse balances. Keys are
// versioned: invalidation bumps a single version counter instead of
// scanning for keys, so a journal write costs one INCR and stale entries
// age out via TTL.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

const cacheVersionKey = "balance:version"

// NewCache constructs Cache. A zero ttl defaults to five minutes.
func NewCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get loads a cached value into dest. Cache misses and transport errors
// both report false; the caller recomputes either way.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	full, err := c.versionedKey(ctx, key)
	if err != nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, full).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("balance cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores a computed value. Failures are logged and swallowed: the
// cache is an accelerator, never a source of truth.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	full, err := c.versionedKey(ctx, key)
	if err != nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, full, raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("balance cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// InvalidateBalances bumps the cache version, orphaning every cached
// balance at once. Journal posting calls this after commit.
func (c *Cache) InvalidateBalances(ctx context.Context) {
	if err := c.rdb.Incr(ctx, cacheVersionKey).Err(); err != nil && c.logger != nil {
		c.logger.Warn("balance cache invalidation failed", slog.Any("error", err))
	}
}

func (c *Cache) versionedKey(ctx context.Context, key string) (string, error) {
	version, err := c.rdb.Get(ctx, cacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("balance:v%d:%s", version, key), nil
}
