package balance

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, time.Minute, nil), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	stored := WarehouseBalances{TotalCash: d("1200"), TotalBank: d("6000")}
	cache.Set(ctx, "warehouse:4:2026-03-09", stored)

	var loaded WarehouseBalances
	require.True(t, cache.Get(ctx, "warehouse:4:2026-03-09", &loaded))
	require.True(t, loaded.TotalCash.Equal(stored.TotalCash))
	require.True(t, loaded.TotalBank.Equal(stored.TotalBank))
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	var loaded WarehouseBalances
	require.False(t, cache.Get(context.Background(), "warehouse:4:2026-03-09", &loaded))
}

func TestInvalidateOrphansEveryKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "warehouse:4:2026-03-09", WarehouseBalances{TotalCash: d("1")})
	cache.Set(ctx, "warehouse:all:2026-03-09", WarehouseBalances{TotalCash: d("2")})

	cache.InvalidateBalances(ctx)

	var loaded WarehouseBalances
	require.False(t, cache.Get(ctx, "warehouse:4:2026-03-09", &loaded))
	require.False(t, cache.Get(ctx, "warehouse:all:2026-03-09", &loaded))

	// New writes land under the new version and are readable again.
	cache.Set(ctx, "warehouse:4:2026-03-09", WarehouseBalances{TotalCash: d("3")})
	require.True(t, cache.Get(ctx, "warehouse:4:2026-03-09", &loaded))
	require.True(t, loaded.TotalCash.Equal(d("3")))
}
