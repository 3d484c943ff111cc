package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func key(provider, ticker string) interfaces.CacheKey {
	return interfaces.NewCacheKey(provider, models.NewRequest(ticker, false))
}

func record(ticker string, price float64) models.NormalizedFinancialRecord {
	return models.NewRecord("test", ticker, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		map[models.Field]float64{models.FieldCurrentPrice: price})
}

// memStorage is an in-memory CacheStorage.
type memStorage struct {
	mu      sync.Mutex
	entries map[interfaces.CacheKey]interfaces.CacheEntry
	saves   int
	failErr error
}

func newMemStorage() *memStorage {
	return &memStorage{entries: make(map[interfaces.CacheKey]interfaces.CacheEntry)}
}

func (s *memStorage) LoadEntry(ctx context.Context, k interfaces.CacheKey) (*interfaces.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[k]
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	return &e, nil
}

func (s *memStorage) SaveEntry(ctx context.Context, e *interfaces.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saves++
	s.entries[e.Key] = *e
	return nil
}

func (s *memStorage) DeleteEntry(ctx context.Context, k interfaces.CacheKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[k]; !ok {
		return interfaces.ErrKeyNotFound
	}
	delete(s.entries, k)
	return nil
}

func (s *memStorage) DeleteByTicker(ctx context.Context, ticker string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if k.Ticker == ticker {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func TestMemoryStore_GetMiss(t *testing.T) {
	m := NewMemoryStore()
	entry, fresh := m.Get(context.Background(), key("eodhd", "AAPL"))
	assert.Nil(t, entry)
	assert.False(t, fresh)
}

func TestMemoryStore_FreshThenStale(t *testing.T) {
	clock := newClock()
	m := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	k := key("eodhd", "AAPL")

	m.Put(ctx, k, record("AAPL", 190), nil, time.Hour)

	entry, fresh := m.Get(ctx, k)
	require.NotNil(t, entry)
	assert.True(t, fresh)
	assert.Equal(t, 190.0, entry.Record.Values[models.FieldCurrentPrice])

	clock.Advance(time.Hour)
	entry, fresh = m.Get(ctx, k)
	require.NotNil(t, entry, "expired entries stay readable for degraded fallback")
	assert.False(t, fresh)
}

func TestMemoryStore_LastWriteWins(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	k := key("fmp", "MSFT")

	m.Put(ctx, k, record("MSFT", 400), nil, time.Hour)
	m.Put(ctx, k, record("MSFT", 410), nil, time.Hour)

	entry, _ := m.Get(ctx, k)
	require.NotNil(t, entry)
	assert.Equal(t, 410.0, entry.Record.Values[models.FieldCurrentPrice])
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStore_EntriesAreCopied(t *testing.T) {
	ctx := context.Background()
	k := key("eodhd", "AAPL")

	tests := []struct {
		name   string
		mutate func(rec models.NormalizedFinancialRecord, history []models.NormalizedFinancialRecord, got *interfaces.CacheEntry)
	}{
		{"record passed to Put", func(rec models.NormalizedFinancialRecord, _ []models.NormalizedFinancialRecord, _ *interfaces.CacheEntry) {
			rec.Values[models.FieldCurrentPrice] = -1
		}},
		{"history passed to Put", func(_ models.NormalizedFinancialRecord, history []models.NormalizedFinancialRecord, _ *interfaces.CacheEntry) {
			history[0].Values[models.FieldCurrentPrice] = -1
		}},
		{"entry returned by Get", func(_ models.NormalizedFinancialRecord, _ []models.NormalizedFinancialRecord, got *interfaces.CacheEntry) {
			got.Record.Values[models.FieldCurrentPrice] = -1
			got.History[0].Values[models.FieldCurrentPrice] = -1
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemoryStore()
			rec := record("AAPL", 190)
			history := []models.NormalizedFinancialRecord{record("AAPL", 180)}
			m.Put(ctx, k, rec, history, time.Hour)

			got, _ := m.Get(ctx, k)
			require.NotNil(t, got)
			tt.mutate(rec, history, got)

			entry, _ := m.Get(ctx, k)
			require.NotNil(t, entry)
			assert.Equal(t, 190.0, entry.Record.Values[models.FieldCurrentPrice])
			assert.Equal(t, 180.0, entry.History[0].Values[models.FieldCurrentPrice])
		})
	}
}

func TestMemoryStore_KeysIncludeDataTypes(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	priceOnly := interfaces.NewCacheKey("eodhd", models.NewRequest("AAPL", false, models.DataTypePrice))
	all := key("eodhd", "AAPL")

	m.Put(ctx, priceOnly, record("AAPL", 1), nil, time.Hour)

	entry, _ := m.Get(ctx, all)
	assert.Nil(t, entry)
}

func TestMemoryStore_InvalidateTicker(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	m.Put(ctx, key("eodhd", "AAPL"), record("AAPL", 1), nil, time.Hour)
	m.Put(ctx, key("fmp", "AAPL"), record("AAPL", 1), nil, time.Hour)
	m.Put(ctx, key("fmp", "MSFT"), record("MSFT", 1), nil, time.Hour)

	assert.Equal(t, 2, m.InvalidateTicker(ctx, "aapl"))
	assert.Equal(t, 1, m.Len())

	m.Invalidate(ctx, key("fmp", "MSFT"))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	clock := newClock()
	m := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	m.Put(ctx, key("a", "X"), record("X", 1), nil, time.Minute)
	m.Put(ctx, key("a", "Y"), record("Y", 1), nil, 24*time.Hour)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, m.PurgeExpired(time.Hour))
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticker := fmt.Sprintf("T%d", i%5)
			for j := 0; j < 50; j++ {
				m.Put(ctx, key("p", ticker), record(ticker, float64(j)), nil, time.Hour)
				m.Get(ctx, key("p", ticker))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, m.Len())
}

func TestTieredStore_WriteThroughAndReadThrough(t *testing.T) {
	ctx := context.Background()
	logger := arbor.NewLogger()
	storage := newMemStorage()
	k := key("eodhd", "AAPL")

	first := NewTieredStore(NewMemoryStore(), storage, logger)
	first.Put(ctx, k, record("AAPL", 190), []models.NormalizedFinancialRecord{record("AAPL", 180)}, time.Hour)
	assert.Equal(t, 1, storage.saves)

	// A new process starts with an empty memory tier.
	second := NewTieredStore(NewMemoryStore(), storage, logger)
	entry, fresh := second.Get(ctx, k)
	require.NotNil(t, entry)
	assert.True(t, fresh)
	assert.Len(t, entry.History, 1)
	assert.Equal(t, 1, second.memory.Len(), "storage hit is promoted into memory")
}

func TestTieredStore_StorageFailureKeepsMemoryEntry(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	storage.failErr = fmt.Errorf("disk full")
	ts := NewTieredStore(NewMemoryStore(), storage, arbor.NewLogger())
	k := key("fmp", "MSFT")

	ts.Put(ctx, k, record("MSFT", 400), nil, time.Hour)

	entry, fresh := ts.Get(ctx, k)
	require.NotNil(t, entry)
	assert.True(t, fresh)
}

func TestTieredStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	storage := newMemStorage()
	ts := NewTieredStore(NewMemoryStore(), storage, arbor.NewLogger())

	ts.Put(ctx, key("a", "AAPL"), record("AAPL", 1), nil, time.Hour)
	ts.Put(ctx, key("b", "AAPL"), record("AAPL", 1), nil, time.Hour)
	ts.Put(ctx, key("b", "MSFT"), record("MSFT", 1), nil, time.Hour)

	ts.Invalidate(ctx, key("b", "MSFT"))
	entry, _ := ts.Get(ctx, key("b", "MSFT"))
	assert.Nil(t, entry)

	assert.Equal(t, 2, ts.InvalidateTicker(ctx, "AAPL"))
	entry, _ = ts.Get(ctx, key("a", "AAPL"))
	assert.Nil(t, entry)
}

func TestTieredStore_NilStorage(t *testing.T) {
	ctx := context.Background()
	ts := NewTieredStore(NewMemoryStore(), nil, arbor.NewLogger())
	ts.Put(ctx, key("a", "AAPL"), record("AAPL", 1), nil, time.Hour)
	entry, fresh := ts.Get(ctx, key("a", "AAPL"))
	require.NotNil(t, entry)
	assert.True(t, fresh)
	assert.Equal(t, 1, ts.InvalidateTicker(ctx, "AAPL"))
}
