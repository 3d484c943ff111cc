package adapter

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

const usageKeyPrefix = "usage:"

type counters struct {
	priority     int
	calls        int64
	successes    int64
	failures     int64
	rateLimited  int64
	cacheHits    int64
	month        string
	monthCalls   int64
	quota        *int
	costPerCall  *decimal.Decimal
	totalCost    decimal.Decimal
	lastCall     time.Time
	lastError    string
	latencyTotal time.Duration
	latencyCount int64
}

// UsageTracker counts calls, refusals and cost per provider. When a KV store
// is attached the current month's call count is persisted under
// "usage:<id>:<yyyy-mm>" so quotas survive restarts.
type UsageTracker struct {
	mu        sync.Mutex
	providers map[string]*counters
	kv        interfaces.KeyValueStorage
	now       func() time.Time
	logger    arbor.ILogger
}

// NewUsageTracker creates a tracker. kv may be nil.
func NewUsageTracker(kv interfaces.KeyValueStorage, logger arbor.ILogger) *UsageTracker {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &UsageTracker{
		providers: make(map[string]*counters),
		kv:        kv,
		now:       time.Now,
		logger:    logger,
	}
}

func monthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func usageKey(providerID, month string) string {
	return usageKeyPrefix + providerID + ":" + month
}

// get returns the counters for id, rolling the monthly count over when the
// calendar month changed. Caller holds mu.
func (u *UsageTracker) get(id string) *counters {
	c, ok := u.providers[id]
	if !ok {
		c = &counters{totalCost: decimal.Zero}
		u.providers[id] = c
	}
	if month := monthOf(u.now()); c.month != month {
		c.month = month
		c.monthCalls = 0
	}
	return c
}

// Configure sets priority, quota and pricing for a provider and restores the
// persisted monthly count.
func (u *UsageTracker) Configure(ctx context.Context, cfg models.ProviderConfig) {
	u.mu.Lock()
	c := u.get(cfg.SourceID)
	c.priority = cfg.Priority
	c.quota = cfg.MonthlyQuota
	c.costPerCall = cfg.CostPerCall
	month := c.month
	u.mu.Unlock()

	if u.kv == nil {
		return
	}
	value, err := u.kv.Get(ctx, usageKey(cfg.SourceID, month))
	if err != nil {
		return
	}
	persisted, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		u.logger.Warn().Err(err).Str("provider", cfg.SourceID).Msg("Ignoring unreadable usage counter")
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if c := u.get(cfg.SourceID); c.month == month && persisted > c.monthCalls {
		c.monthCalls = persisted
	}
}

// Remove drops a provider from the report.
func (u *UsageTracker) Remove(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.providers, id)
}

// QuotaExhausted reports whether the provider used its monthly quota.
func (u *UsageTracker) QuotaExhausted(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	c := u.get(id)
	return c.quota != nil && c.monthCalls >= int64(*c.quota)
}

// RecordRateLimited counts a limiter or quota refusal.
func (u *UsageTracker) RecordRateLimited(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.get(id).rateLimited++
}

// RecordCacheHit counts a request served from cache.
func (u *UsageTracker) RecordCacheHit(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.get(id).cacheHits++
}

// RecordCall counts calls API calls made for one fetch and its outcome.
func (u *UsageTracker) RecordCall(ctx context.Context, id string, calls int, latency time.Duration, err error) {
	if calls < 1 {
		calls = 1
	}

	u.mu.Lock()
	c := u.get(id)
	c.calls += int64(calls)
	c.monthCalls += int64(calls)
	if c.costPerCall != nil {
		c.totalCost = c.totalCost.Add(c.costPerCall.Mul(decimal.NewFromInt(int64(calls))))
	}
	if err != nil {
		c.failures++
		c.lastError = err.Error()
	} else {
		c.successes++
	}
	c.lastCall = u.now()
	c.latencyTotal += latency
	c.latencyCount++
	key, monthCalls := usageKey(id, c.month), c.monthCalls
	u.mu.Unlock()

	if u.kv == nil {
		return
	}
	if err := u.kv.Set(ctx, key, strconv.FormatInt(monthCalls, 10), "monthly API calls for "+id); err != nil {
		u.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist usage counter")
	}
}

// Report returns a snapshot ordered by priority, then id.
func (u *UsageTracker) Report() interfaces.UsageReport {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	report := interfaces.UsageReport{
		GeneratedAt: now,
		Month:       monthOf(now),
		Providers:   make([]interfaces.ProviderUsage, 0, len(u.providers)),
		TotalCost:   decimal.Zero,
	}
	for id := range u.providers {
		c := u.get(id)
		pu := interfaces.ProviderUsage{
			Provider:     id,
			Priority:     c.priority,
			Calls:        c.calls,
			Successes:    c.successes,
			Failures:     c.failures,
			RateLimited:  c.rateLimited,
			CacheHits:    c.cacheHits,
			MonthCalls:   c.monthCalls,
			MonthlyQuota: c.quota,
			TotalCost:    c.totalCost,
			LastCall:     c.lastCall,
			LastError:    c.lastError,
		}
		if c.latencyCount > 0 {
			pu.AverageLatency = c.latencyTotal / time.Duration(c.latencyCount)
		}
		report.Providers = append(report.Providers, pu)
		report.TotalCalls += c.calls
		report.TotalCost = report.TotalCost.Add(c.totalCost)
	}
	sort.Slice(report.Providers, func(i, j int) bool {
		pi, pj := report.Providers[i], report.Providers[j]
		if pi.Priority != pj.Priority {
			return pi.Priority < pj.Priority
		}
		return pi.Provider < pj.Provider
	})
	return report
}
