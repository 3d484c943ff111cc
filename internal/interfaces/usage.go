package interfaces

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderUsage is a snapshot of one provider's call accounting.
type ProviderUsage struct {
	Provider       string          `json:"provider"`
	Priority       int             `json:"priority"`
	Calls          int64           `json:"calls"`
	Successes      int64           `json:"successes"`
	Failures       int64           `json:"failures"`
	RateLimited    int64           `json:"rate_limited"`
	CacheHits      int64           `json:"cache_hits"`
	MonthCalls     int64           `json:"month_calls"`
	MonthlyQuota   *int            `json:"monthly_quota,omitempty"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	LastCall       time.Time       `json:"last_call,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	AverageLatency time.Duration   `json:"average_latency"`

	// Rate-limit window state; WindowRemaining is nil for unlimited providers.
	WindowRemaining *int      `json:"window_remaining,omitempty"`
	NextAvailable   time.Time `json:"next_available,omitempty"`
}

// UsageReport is the per-provider usage snapshot returned by the adapter.
type UsageReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Month       string          `json:"month"`
	Providers   []ProviderUsage `json:"providers"`
	TotalCalls  int64           `json:"total_calls"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}
