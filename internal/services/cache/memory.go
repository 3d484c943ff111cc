// Package cache holds normalized fetch results keyed by provider, ticker and
// data types, with a per-entry TTL.
package cache

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[interfaces.CacheKey]*interfaces.CacheEntry
}

// MemoryStore is an in-process cache. Keys are spread over shards so writers
// on one key never block readers of unrelated keys.
type MemoryStore struct {
	shards [shardCount]*shard
	now    func() time.Time
	logger arbor.ILogger
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used for TTLs.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) MemoryOption {
	return func(m *MemoryStore) {
		m.logger = logger
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{now: time.Now}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[interfaces.CacheKey]*interfaces.CacheEntry)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) shardFor(key interfaces.CacheKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return m.shards[h.Sum32()%shardCount]
}

// Get returns the entry for key, if any, and whether it is still fresh.
// Expired entries stay until overwritten or invalidated.
func (m *MemoryStore) Get(ctx context.Context, key interfaces.CacheKey) (*interfaces.CacheEntry, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.Clone(), entry.Fresh(m.now())
}

// Put stores a copy of record and history under key for ttl. Last write wins.
func (m *MemoryStore) Put(ctx context.Context, key interfaces.CacheKey, record models.NormalizedFinancialRecord, history []models.NormalizedFinancialRecord, ttl time.Duration) {
	now := m.now()
	m.store(&interfaces.CacheEntry{
		Key:       key,
		Record:    record.Clone(),
		History:   models.CloneRecords(history),
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	})
}

func (m *MemoryStore) store(entry *interfaces.CacheEntry) {
	s := m.shardFor(entry.Key)
	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()

	if m.logger != nil {
		m.logger.Trace().
			Str("key", entry.Key.String()).
			Str("expires", entry.ExpiresAt.Format(time.RFC3339)).
			Msg("Cache entry stored")
	}
}

// Invalidate removes one key.
func (m *MemoryStore) Invalidate(ctx context.Context, key interfaces.CacheKey) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// InvalidateTicker removes every entry for ticker across providers and data
// types and returns how many were removed.
func (m *MemoryStore) InvalidateTicker(ctx context.Context, ticker string) int {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k := range s.entries {
			if k.Ticker == ticker {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of entries, fresh or not.
func (m *MemoryStore) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// PurgeExpired drops entries that expired more than grace ago. Entries inside
// the grace period remain available as degraded fallbacks.
func (m *MemoryStore) PurgeExpired(grace time.Duration) int {
	cutoff := m.now().Add(-grace)
	purged := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if e.ExpiresAt.Before(cutoff) {
				delete(s.entries, k)
				purged++
			}
		}
		s.mu.Unlock()
	}
	return purged
}

var _ interfaces.CacheStore = (*MemoryStore)(nil)
