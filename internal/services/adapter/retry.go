package adapter

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/models"
)

// RetryPolicy is the backoff applied to transient provider failures
// (TIMEOUT and NETWORK). MaxAttempts counts the first call, so 1 disables retry.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy makes a single attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// RetryPolicyFromConfig parses the [adapter.retry] table.
func RetryPolicyFromConfig(cfg common.RetryConfig) (RetryPolicy, error) {
	p := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	var err error
	if p.InitialBackoff, err = common.ParseDuration(cfg.InitialBackoff, p.InitialBackoff); err != nil {
		return p, err
	}
	if p.MaxBackoff, err = common.ParseDuration(cfg.MaxBackoff, p.MaxBackoff); err != nil {
		return p, err
	}
	return p, nil
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.InitialBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxBackoff > 0 {
		b = retry.WithCappedDuration(p.MaxBackoff, b)
	}
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Run calls fn until it succeeds, fails with a non-transient kind, or the
// attempts run out. Every attempt after the first must obtain a token from
// acquire; a refusal ends the loop with the previous failure. It returns the
// number of calls made.
func (p RetryPolicy) Run(ctx context.Context, acquire func() bool, fn func(ctx context.Context) error) (int, error) {
	if p.MaxAttempts <= 1 {
		return 1, fn(ctx)
	}

	attempts := 0
	var lastErr error
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if attempts > 0 && !acquire() {
			return lastErr
		}
		attempts++
		lastErr = fn(ctx)
		if lastErr != nil && models.KindOf(lastErr).IsTransient() {
			return retry.RetryableError(lastErr)
		}
		return lastErr
	})
	return attempts, err
}
