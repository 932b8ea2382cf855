package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cashbook-erp/cashbook/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.False(t, cfg.IsProduction())

	partitions := cfg.CategoryConfig()
	require.Equal(t, []int64{1}, partitions.Cash)
	require.Equal(t, []int64{2}, partitions.Bank)
	require.Len(t, partitions.Assets, 18)
	require.Len(t, partitions.Liabilities, 7)
	require.Equal(t, []int64{26}, partitions.Equity)
	require.Equal(t, []int64{27, 28, 29, 30}, partitions.Revenue)
	require.Len(t, partitions.Expense, 13)
}

func TestLoadConfigPartitionOverride(t *testing.T) {
	t.Setenv("CASH_CATEGORIES", "7,9")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []int64{7, 9}, cfg.CategoryConfig().Cash)
}

func TestActorMiddlewareParsesHeaders(t *testing.T) {
	var got shared.Actor
	var ok bool
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "42")
	req.Header.Set("X-Warehouse-ID", "4")
	req.Header.Set("X-Period-Override", "true")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	require.Equal(t, int64(42), got.UserID)
	require.Equal(t, int64(4), got.WarehouseID)
	require.True(t, got.CanOverridePeriod)
}

func TestActorMiddlewareIgnoresGarbageHeaders(t *testing.T) {
	var got shared.Actor
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "not-a-number")
	req.Header.Set("X-Period-Override", "yes")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Zero(t, got.UserID)
	require.False(t, got.CanOverridePeriod)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
