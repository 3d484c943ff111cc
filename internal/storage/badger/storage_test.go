package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")}
	m, err := NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestKVStorage_SetGetDelete(t *testing.T) {
	kv := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	_, err := kv.Get(ctx, "eodhd_api_key")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "EODHD_API_KEY", "secret", "test"))
	v, err := kv.Get(ctx, "eodhd_api_key")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	require.NoError(t, kv.Set(ctx, "eodhd_api_key", "rotated", "test"))
	v, err = kv.Get(ctx, "Eodhd_Api_Key")
	require.NoError(t, err)
	assert.Equal(t, "rotated", v)

	require.NoError(t, kv.Delete(ctx, "eodhd_api_key"))
	assert.ErrorIs(t, kv.Delete(ctx, "eodhd_api_key"), interfaces.ErrKeyNotFound)
}

func TestKVStorage_ListByPrefix(t *testing.T) {
	kv := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "usage:fmp:2025-03", "{}", ""))
	require.NoError(t, kv.Set(ctx, "usage:eodhd:2025-03", "{}", ""))
	require.NoError(t, kv.Set(ctx, "fmp_api_key", "k", ""))

	pairs, err := kv.ListByPrefix(ctx, "usage:")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "usage:eodhd:2025-03", pairs[0].Key)
	assert.Equal(t, "usage:fmp:2025-03", pairs[1].Key)
}

func TestCacheStorage_RoundTrip(t *testing.T) {
	cs := newTestManager(t).CacheStorage()
	ctx := context.Background()
	key := interfaces.NewCacheKey("eodhd", models.NewRequest("aapl", false))

	_, err := cs.LoadEntry(ctx, key)
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &interfaces.CacheEntry{
		Key: key,
		Record: models.NewRecord("eodhd", "AAPL", time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC), map[models.Field]float64{
			models.FieldNetIncome:    93736000000,
			models.FieldCurrentPrice: 0,
		}),
		StoredAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, cs.SaveEntry(ctx, entry))

	loaded, err := cs.LoadEntry(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", loaded.Key.Ticker)
	assert.Equal(t, 93736000000.0, loaded.Record.Values[models.FieldNetIncome])
	v, ok := loaded.Record.Get(models.FieldCurrentPrice)
	assert.True(t, ok, "zero is a value, not an absence")
	assert.Equal(t, 0.0, v)
	assert.True(t, loaded.ExpiresAt.Equal(entry.ExpiresAt))
}

func TestCacheStorage_DeleteByTicker(t *testing.T) {
	cs := newTestManager(t).CacheStorage()
	ctx := context.Background()

	for _, p := range []string{"eodhd", "fmp"} {
		require.NoError(t, cs.SaveEntry(ctx, &interfaces.CacheEntry{Key: interfaces.NewCacheKey(p, models.NewRequest("AAPL", false))}))
	}
	msft := interfaces.NewCacheKey("fmp", models.NewRequest("MSFT", false))
	require.NoError(t, cs.SaveEntry(ctx, &interfaces.CacheEntry{Key: msft}))

	n, err := cs.DeleteByTicker(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = cs.LoadEntry(ctx, msft)
	assert.NoError(t, err)

	require.NoError(t, cs.DeleteEntry(ctx, msft))
	assert.ErrorIs(t, cs.DeleteEntry(ctx, msft), interfaces.ErrKeyNotFound)
}

func TestManager_LoadEnvFile(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), ".env")
	content := "# provider keys\nEODHD_API_KEY=\"abc\"\nexport FMP_API_KEY='def'\nBROKEN LINE\nEMPTY=\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	n, err := m.LoadEnvFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, err := m.KeyValueStorage().Get(ctx, "eodhd_api_key")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
	v, err = m.KeyValueStorage().Get(ctx, "fmp_api_key")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	n, err = m.LoadEnvFile(ctx, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_CollectGarbage(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.KeyValueStorage().Set(context.Background(), "fmp_api_key", "k", ""))

	_, err := m.CollectGarbage()
	assert.NoError(t, err)

	cfg := &common.BadgerConfig{InMemory: true}
	mem, err := NewManager(arbor.NewLogger(), cfg)
	require.NoError(t, err)
	defer mem.Close()
	n, err := mem.CollectGarbage()
	require.NoError(t, err)
	assert.Zero(t, n)
}
