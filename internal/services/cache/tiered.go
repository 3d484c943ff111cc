package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

// TieredStore fronts a persistent CacheStorage with a MemoryStore. Writes go
// to both tiers; a memory miss is filled from storage.
type TieredStore struct {
	memory  *MemoryStore
	storage interfaces.CacheStorage
	logger  arbor.ILogger
}

// NewTieredStore combines memory and storage. storage may be nil, in which
// case the store behaves like memory alone.
func NewTieredStore(memory *MemoryStore, storage interfaces.CacheStorage, logger arbor.ILogger) *TieredStore {
	return &TieredStore{
		memory:  memory,
		storage: storage,
		logger:  logger,
	}
}

// Get reads memory first, then storage.
func (t *TieredStore) Get(ctx context.Context, key interfaces.CacheKey) (*interfaces.CacheEntry, bool) {
	if entry, fresh := t.memory.Get(ctx, key); entry != nil {
		return entry, fresh
	}
	if t.storage == nil {
		return nil, false
	}

	entry, err := t.storage.LoadEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to load cache entry from storage")
		}
		return nil, false
	}

	t.memory.store(entry.Clone())
	return entry, entry.Fresh(t.memory.now())
}

// Put writes through to both tiers. A storage failure is logged; the memory
// tier still holds the entry.
func (t *TieredStore) Put(ctx context.Context, key interfaces.CacheKey, record models.NormalizedFinancialRecord, history []models.NormalizedFinancialRecord, ttl time.Duration) {
	t.memory.Put(ctx, key, record, history, ttl)
	if t.storage == nil {
		return
	}
	entry, _ := t.memory.Get(ctx, key)
	if entry == nil {
		return
	}
	if err := t.storage.SaveEntry(ctx, entry); err != nil {
		t.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to persist cache entry")
	}
}

// Invalidate removes key from both tiers.
func (t *TieredStore) Invalidate(ctx context.Context, key interfaces.CacheKey) {
	t.memory.Invalidate(ctx, key)
	if t.storage == nil {
		return
	}
	if err := t.storage.DeleteEntry(ctx, key); err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		t.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to delete persisted cache entry")
	}
}

// InvalidateTicker removes every entry for ticker from both tiers and returns
// the larger of the two removal counts.
func (t *TieredStore) InvalidateTicker(ctx context.Context, ticker string) int {
	removed := t.memory.InvalidateTicker(ctx, ticker)
	if t.storage == nil {
		return removed
	}
	n, err := t.storage.DeleteByTicker(ctx, ticker)
	if err != nil {
		t.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to delete persisted cache entries")
		return removed
	}
	if n > removed {
		removed = n
	}
	t.logger.Info().Str("ticker", ticker).Int("removed", removed).Msg("Cache invalidated for ticker")
	return removed
}

var _ interfaces.CacheStore = (*TieredStore)(nil)
