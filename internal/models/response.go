package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderConfig is the adapter-owned configuration of one provider.
type ProviderConfig struct {
	SourceID     string            `json:"source_id"`
	Priority     int               `json:"priority"`
	MaxCalls     int               `json:"max_calls"`
	Window       time.Duration     `json:"window"`
	BurstPerSec  float64           `json:"burst_per_second,omitempty"`
	MonthlyQuota *int              `json:"monthly_quota,omitempty"`
	CostPerCall  *decimal.Decimal  `json:"cost_per_call,omitempty"`
	Credentials  map[string]string `json:"-"`
	CacheTTL     time.Duration     `json:"cache_ttl"`
	BaseURL      string            `json:"base_url,omitempty"`
}

// APIKey returns the "api_key" credential, or "".
func (c ProviderConfig) APIKey() string {
	return c.Credentials["api_key"]
}

// FinancialDataResponse is the adapter's result; the caller owns it.
type FinancialDataResponse struct {
	RequestID    string                      `json:"request_id"`
	Success      bool                        `json:"success"`
	SourceUsed   string                      `json:"source_used,omitempty"`
	Record       *NormalizedFinancialRecord  `json:"record,omitempty"`
	History      []NormalizedFinancialRecord `json:"history,omitempty"`
	Quality      QualityMetrics              `json:"quality"`
	APICallsUsed int                         `json:"api_calls_used"`
	Error        ErrorKind                   `json:"error,omitempty"`
	ErrorMessage string                      `json:"error_message,omitempty"`
	Latency      time.Duration               `json:"latency"`
	FromCache    bool                        `json:"from_cache"`
	Degraded     bool                        `json:"degraded"`
	Attempts     []ProviderAttempt           `json:"attempts,omitempty"`
}

// ProviderAttempt records what happened with one provider during a fetch.
type ProviderAttempt struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"`
	Error    ErrorKind     `json:"error,omitempty"`
	Score    float64       `json:"score"`
	Latency  time.Duration `json:"latency"`
}

// Attempt outcomes.
const (
	OutcomeCacheHit    = "cache_hit"
	OutcomeRateLimited = "rate_limited"
	OutcomeQuota       = "quota_exhausted"
	OutcomeAccepted    = "accepted"
	OutcomeCandidate   = "below_threshold"
	OutcomeFailed      = "failed"
)
