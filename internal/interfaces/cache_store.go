package interfaces

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/valuer/internal/models"
)

// CacheKey identifies a cached fetch result.
type CacheKey struct {
	Provider  string `json:"provider"`
	Ticker    string `json:"ticker"`
	DataTypes string `json:"data_types"`
}

// NewCacheKey builds the key for a provider and request.
func NewCacheKey(provider string, req models.FinancialDataRequest) CacheKey {
	return CacheKey{
		Provider:  provider,
		Ticker:    strings.ToUpper(req.Ticker),
		DataTypes: req.TypesKey(),
	}
}

// String renders the key as provider|ticker|types.
func (k CacheKey) String() string {
	return k.Provider + "|" + k.Ticker + "|" + k.DataTypes
}

// CacheEntry is what the cache holds for one key.
type CacheEntry struct {
	Key       CacheKey                           `json:"key"`
	Record    models.NormalizedFinancialRecord   `json:"record"`
	History   []models.NormalizedFinancialRecord `json:"history,omitempty"`
	StoredAt  time.Time                          `json:"stored_at"`
	ExpiresAt time.Time                          `json:"expires_at"`
}

// Clone returns a deep copy, so callers can modify what they were handed
// without touching what the cache holds.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	out := *e
	out.Record = e.Record.Clone()
	out.History = models.CloneRecords(e.History)
	return &out
}

// Fresh reports whether the entry is within its TTL at now.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return e != nil && now.Before(e.ExpiresAt)
}

// CacheStore holds normalized fetch results with a per-entry TTL. Get returns
// expired entries with fresh=false so callers can use them as a degraded
// fallback. Writes are last-write-wins. Entries are copied on the way in and
// out.
type CacheStore interface {
	Get(ctx context.Context, key CacheKey) (entry *CacheEntry, fresh bool)
	Put(ctx context.Context, key CacheKey, record models.NormalizedFinancialRecord, history []models.NormalizedFinancialRecord, ttl time.Duration)
	Invalidate(ctx context.Context, key CacheKey)
	InvalidateTicker(ctx context.Context, ticker string) int
}

// CacheStorage is the persistent tier behind the in-memory cache.
type CacheStorage interface {
	LoadEntry(ctx context.Context, key CacheKey) (*CacheEntry, error)
	SaveEntry(ctx context.Context, entry *CacheEntry) error
	DeleteEntry(ctx context.Context, key CacheKey) error
	DeleteByTicker(ctx context.Context, ticker string) (int, error)
}
