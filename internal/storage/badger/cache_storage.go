package badger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/valuer/internal/interfaces"
)

// cacheRecord is the persisted form of a cache entry. Ticker is duplicated
// at the top level so ticker-wide invalidation can query it.
type cacheRecord struct {
	ID     string
	Ticker string `badgerholdIndex:"Ticker"`
	Entry  interfaces.CacheEntry
}

// CacheStorage implements interfaces.CacheStorage
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

func cacheID(key interfaces.CacheKey) string {
	return "cache:" + key.String()
}

// LoadEntry returns the stored entry or interfaces.ErrKeyNotFound
func (s *CacheStorage) LoadEntry(ctx context.Context, key interfaces.CacheKey) (*interfaces.CacheEntry, error) {
	var rec cacheRecord
	err := s.db.Store().Get(cacheID(key), &rec)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entry: %w", err)
	}
	return &rec.Entry, nil
}

// SaveEntry upserts the entry
func (s *CacheStorage) SaveEntry(ctx context.Context, entry *interfaces.CacheEntry) error {
	rec := cacheRecord{
		ID:     cacheID(entry.Key),
		Ticker: strings.ToUpper(entry.Key.Ticker),
		Entry:  *entry,
	}
	if err := s.db.Store().Upsert(rec.ID, &rec); err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry for key
func (s *CacheStorage) DeleteEntry(ctx context.Context, key interfaces.CacheKey) error {
	err := s.db.Store().Delete(cacheID(key), &cacheRecord{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteByTicker removes all entries for ticker and returns how many there were
func (s *CacheStorage) DeleteByTicker(ctx context.Context, ticker string) (int, error) {
	query := badgerhold.Where("Ticker").Eq(strings.ToUpper(strings.TrimSpace(ticker))).Index("Ticker")

	var recs []cacheRecord
	if err := s.db.Store().Find(&recs, query); err != nil {
		return 0, fmt.Errorf("failed to find cache entries: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := s.db.Store().DeleteMatching(&cacheRecord{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	s.logger.Debug().Str("ticker", ticker).Int("count", len(recs)).Msg("Deleted persisted cache entries")
	return len(recs), nil
}
