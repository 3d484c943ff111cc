// Package ratelimit enforces per-provider call budgets over a sliding window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/valuer/internal/interfaces"
)

// Budget is the call allowance for one provider.
type Budget struct {
	MaxCalls int
	Window   time.Duration
	// BurstPerSecond optionally smooths calls inside the window. Zero disables it.
	BurstPerSecond float64
}

// window holds the admitted call timestamps for one provider.
type window struct {
	mu     sync.Mutex
	budget Budget
	calls  []time.Time
	burst  *rate.Limiter
}

// SlidingWindow is a non-blocking, per-provider sliding-window limiter.
// Providers without a configured budget are unlimited.
type SlidingWindow struct {
	mu      sync.RWMutex
	windows map[string]*window
	now     func() time.Time
	logger  arbor.ILogger
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SlidingWindow) {
		s.now = now
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(s *SlidingWindow) {
		s.logger = logger
	}
}

// New creates an empty limiter.
func New(opts ...Option) *SlidingWindow {
	s := &SlidingWindow{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure sets or replaces the budget for a provider. Timestamps already
// recorded are kept so a reconfiguration cannot reset an exhausted window.
func (s *SlidingWindow) Configure(providerID string, b Budget) {
	s.mu.Lock()
	w, ok := s.windows[providerID]
	if !ok {
		w = &window{}
		s.windows[providerID] = w
	}
	s.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.budget = b
	w.burst = nil
	if b.BurstPerSecond > 0 {
		burst := int(b.BurstPerSecond)
		if burst < 1 {
			burst = 1
		}
		w.burst = rate.NewLimiter(rate.Limit(b.BurstPerSecond), burst)
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("provider", providerID).
			Int("max_calls", b.MaxCalls).
			Str("window", b.Window.String()).
			Msg("Rate limit configured")
	}
}

func (s *SlidingWindow) lookup(providerID string) *window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.windows[providerID]
}

// TryAcquire admits the call and records it when fewer than MaxCalls calls
// fall inside the trailing window. A refusal leaves no trace.
func (s *SlidingWindow) TryAcquire(providerID string) bool {
	return s.TryAcquireN(providerID, 1)
}

// TryAcquireN admits n calls at once, or none. It records n timestamps only
// when they all fit in the trailing window.
func (s *SlidingWindow) TryAcquireN(providerID string, n int) bool {
	if n < 1 {
		n = 1
	}
	w := s.lookup(providerID)
	if w == nil {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.budget.MaxCalls <= 0 || w.budget.Window <= 0 {
		return true
	}

	now := s.now()
	w.prune(now)
	if len(w.calls)+n > w.budget.MaxCalls {
		return false
	}
	if w.burst != nil {
		// A burst smaller than n could never admit the batch.
		tokens := n
		if b := w.burst.Burst(); tokens > b {
			tokens = b
		}
		if !w.burst.AllowN(now, tokens) {
			return false
		}
	}
	for i := 0; i < n; i++ {
		w.calls = append(w.calls, now)
	}
	return true
}

// Remaining returns how many calls the provider could make right now, or -1
// when it is unlimited.
func (s *SlidingWindow) Remaining(providerID string) int {
	w := s.lookup(providerID)
	if w == nil {
		return -1
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.budget.MaxCalls <= 0 || w.budget.Window <= 0 {
		return -1
	}
	w.prune(s.now())
	return w.budget.MaxCalls - len(w.calls)
}

// NextAvailable returns when the oldest call leaves the window, or the zero
// time when a call would be admitted now.
func (s *SlidingWindow) NextAvailable(providerID string) time.Time {
	w := s.lookup(providerID)
	if w == nil {
		return time.Time{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := s.now()
	w.prune(now)
	if w.budget.MaxCalls <= 0 || len(w.calls) < w.budget.MaxCalls {
		return time.Time{}
	}
	return w.calls[0].Add(w.budget.Window)
}

// prune drops timestamps at or before now-window. Caller holds w.mu.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.budget.Window)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

var _ interfaces.RateLimiter = (*SlidingWindow)(nil)
