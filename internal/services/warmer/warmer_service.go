// Package warmer refreshes the cache for a fixed ticker list on a cron
// schedule, so interactive requests find fresh data.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/models"
)

// DefaultSchedule refreshes once a day before the US open.
const DefaultSchedule = "0 6 * * 1-5"

// Fetcher is the adapter capability the warmer needs.
type Fetcher interface {
	FetchData(ctx context.Context, req models.FinancialDataRequest) *models.FinancialDataResponse
}

// Purger drops cache entries that expired too long ago to serve as a
// degraded fallback.
type Purger interface {
	PurgeExpired(grace time.Duration) int
}

// DefaultPurgeGrace keeps expired entries usable as fallbacks for a week.
const DefaultPurgeGrace = 7 * 24 * time.Hour

// Result summarises one warming pass.
type Result struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Refreshed []string          `json:"refreshed"`
	Failed    map[string]string `json:"failed,omitempty"`
	Purged    int               `json:"purged"`
}

// Status is a point-in-time view of the warmer.
type Status struct {
	Running  bool       `json:"running"`
	Schedule string     `json:"schedule"`
	Tickers  []string   `json:"tickers"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	LastRun  *Result    `json:"last_run,omitempty"`
}

// Service runs warming passes on a schedule.
type Service struct {
	fetcher  Fetcher
	schedule string
	tickers  []string
	timeout  time.Duration
	cron     *cron.Cron
	logger   arbor.ILogger
	purger   Purger
	grace    time.Duration

	mu      sync.Mutex // protects running, entryID and last
	runMu   sync.Mutex // one pass at a time
	running bool
	entryID cron.EntryID
	last    *Result
}

// NewService creates a warmer. An empty schedule uses DefaultSchedule.
func NewService(fetcher Fetcher, cfg common.WarmerConfig, logger arbor.ILogger) *Service {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	var tickers []string
	for _, t := range common.ParseTickers(cfg.Tickers) {
		tickers = append(tickers, t.Raw)
	}
	return &Service{
		fetcher:  fetcher,
		schedule: schedule,
		tickers:  tickers,
		timeout:  5 * time.Minute,
		cron:     cron.New(),
		logger:   logger,
	}
}

// WithPurger makes every pass start by dropping entries expired longer than
// grace. A non-positive grace uses DefaultPurgeGrace.
func (s *Service) WithPurger(p Purger, grace time.Duration) *Service {
	if grace <= 0 {
		grace = DefaultPurgeGrace
	}
	s.purger = p
	s.grace = grace
	return s
}

// Start registers the pass with cron and starts it.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("warmer already running")
	}
	if err := common.ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	id, err := s.cron.AddFunc(s.schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Int("tickers", len(s.tickers)).
		Msg("Cache warmer started")
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Cache warmer stopped")
}

// IsRunning reports whether the schedule is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) runScheduled() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in cache warmer")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunNow(ctx)
}

// RunNow force-refreshes every configured ticker and records the result.
// Failures are logged and reported; they never stop the pass.
func (s *Service) RunNow(ctx context.Context) Result {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result := Result{StartedAt: time.Now()}
	if s.purger != nil {
		result.Purged = s.purger.PurgeExpired(s.grace)
	}
	for _, ticker := range s.tickers {
		if ctx.Err() != nil {
			s.fail(&result, ticker, ctx.Err().Error())
			continue
		}
		resp := s.fetcher.FetchData(ctx, models.NewRequest(ticker, true))
		if !resp.Success {
			s.fail(&result, ticker, fmt.Sprintf("%s: %s", resp.Error, resp.ErrorMessage))
			continue
		}
		result.Refreshed = append(result.Refreshed, ticker)
		s.logger.Debug().
			Str("ticker", ticker).
			Str("source", resp.SourceUsed).
			Msg("Ticker warmed")
	}
	result.Duration = time.Since(result.StartedAt)

	s.logger.Info().
		Int("refreshed", len(result.Refreshed)).
		Int("failed", len(result.Failed)).
		Int("purged", result.Purged).
		Str("duration", result.Duration.String()).
		Msg("Cache warming pass complete")

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()
	return result
}

func (s *Service) fail(r *Result, ticker, reason string) {
	if r.Failed == nil {
		r.Failed = make(map[string]string)
	}
	r.Failed[ticker] = reason
	s.logger.Warn().
		Str("ticker", ticker).
		Str("reason", reason).
		Msg("Ticker warm failed")
}

// Status reports the schedule, next run and last result.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:  s.running,
		Schedule: s.schedule,
		Tickers:  append([]string(nil), s.tickers...),
		LastRun:  s.last,
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}
