// Package adapter is the unified data adapter: it fetches a ticker from the
// configured providers in priority order, applying the cache, the rate
// limiter and the quality scorer, and falls back provider by provider.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/httpclient"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/normalize"
	"github.com/ternarybob/valuer/internal/services/quality"
	"github.com/ternarybob/valuer/internal/services/ratelimit"
)

// DefaultAcceptanceThreshold is the quality score a result must exceed.
const DefaultAcceptanceThreshold = 0.5

// Limiter is the rate limiter the adapter configures and consults. The
// adapter charges it a provider's CallCost per attempt.
type Limiter interface {
	interfaces.RateLimiter
	Configure(providerID string, b ratelimit.Budget)
}

// Options are the adapter's fallback policy.
type Options struct {
	AcceptanceThreshold float64
	// DegradedFallback returns the best below-threshold result, or the
	// freshest stale cache entry, when no provider produced an acceptable one.
	DegradedFallback bool
	// MaxProviders bounds how many providers one request may try. Zero means all.
	MaxProviders int
	// RequiredFields replaces the field set derived from the request's data types.
	RequiredFields []models.Field
	Retry          RetryPolicy
	// Timeout is the transport timeout of providers built by ConfigureSource.
	Timeout time.Duration
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		AcceptanceThreshold: DefaultAcceptanceThreshold,
		DegradedFallback:    true,
		Retry:               DefaultRetryPolicy(),
		Timeout:             httpclient.DefaultTimeout,
	}
}

// OptionsFromConfig builds Options from the [adapter] table.
func OptionsFromConfig(cfg common.AdapterConfig) (Options, error) {
	opts := DefaultOptions()
	opts.AcceptanceThreshold = cfg.AcceptanceThreshold
	opts.DegradedFallback = cfg.DegradedFallback
	opts.MaxProviders = cfg.MaxProviders
	for _, f := range cfg.RequiredFields {
		opts.RequiredFields = append(opts.RequiredFields, models.Field(f))
	}

	var err error
	if opts.Timeout, err = common.ParseDuration(cfg.Timeout, httpclient.DefaultTimeout); err != nil {
		return opts, fmt.Errorf("adapter timeout: %w", err)
	}
	if opts.Retry, err = RetryPolicyFromConfig(cfg.Retry); err != nil {
		return opts, fmt.Errorf("adapter retry: %w", err)
	}
	return opts, nil
}

// source is one configured provider.
type source struct {
	provider interfaces.DataProvider
	config   models.ProviderConfig
}

// Service orchestrates providers. Cache, limiter and usage tracker are
// injected so independent instances share nothing.
type Service struct {
	mu         sync.RWMutex
	sources    map[string]*source
	order      []*source
	factories  map[string]Factory
	httpClient *http.Client

	limiter    Limiter
	cache      interfaces.CacheStore
	normalizer *normalize.Normalizer
	usage      *UsageTracker
	opts       Options
	logger     arbor.ILogger
	now        func() time.Time
}

// NewService creates an adapter with no sources. Add them with
// ConfigureSource or AddSource.
func NewService(
	opts Options,
	limiter Limiter,
	cache interfaces.CacheStore,
	normalizer *normalize.Normalizer,
	usage *UsageTracker,
	logger arbor.ILogger,
) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	if usage == nil {
		usage = NewUsageTracker(nil, logger)
	}
	return &Service{
		sources:    make(map[string]*source),
		factories:  DefaultFactories(),
		httpClient: httpclient.NewDefaultHTTPClient(opts.Timeout),
		limiter:    limiter,
		cache:      cache,
		normalizer: normalizer,
		usage:      usage,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterFactory adds or replaces the factory ConfigureSource uses for id.
func (s *Service) RegisterFactory(id string, f Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[id] = f
}

// ConfigureSource builds the provider for cfg.SourceID with the given
// credentials and applies its rate limit, quota and pricing. A provider that
// requires credentials and has none is removed from the priority list.
func (s *Service) ConfigureSource(ctx context.Context, cfg models.ProviderConfig) error {
	s.mu.RLock()
	factory, ok := s.factories[cfg.SourceID]
	existing := s.sources[cfg.SourceID]
	s.mu.RUnlock()

	var provider interfaces.DataProvider
	switch {
	case ok:
		provider = factory(cfg, s.httpClient, s.logger)
	case existing != nil:
		provider = existing.provider
	default:
		return fmt.Errorf("unknown provider: %s", cfg.SourceID)
	}
	return s.AddSource(ctx, provider, cfg)
}

// AddSource registers an already built provider under cfg.
func (s *Service) AddSource(ctx context.Context, provider interfaces.DataProvider, cfg models.ProviderConfig) error {
	if cfg.SourceID == "" {
		cfg.SourceID = provider.ID()
	}
	if provider.ID() != cfg.SourceID {
		return fmt.Errorf("provider id %s does not match config %s", provider.ID(), cfg.SourceID)
	}

	if provider.RequiresCredentials() && cfg.APIKey() == "" {
		s.removeSource(cfg.SourceID)
		s.logger.Warn().Str("provider", cfg.SourceID).Msg("Provider has no credentials, removed from priority list")
		return nil
	}

	s.limiter.Configure(cfg.SourceID, ratelimit.Budget{
		MaxCalls:       cfg.MaxCalls,
		Window:         cfg.Window,
		BurstPerSecond: cfg.BurstPerSec,
	})
	s.usage.Configure(ctx, cfg)

	s.mu.Lock()
	s.sources[cfg.SourceID] = &source{provider: provider, config: cfg}
	s.reorder()
	s.mu.Unlock()

	s.logger.Info().
		Str("provider", cfg.SourceID).
		Int("priority", cfg.Priority).
		Int("max_calls", cfg.MaxCalls).
		Str("window", cfg.Window.String()).
		Msg("Provider configured")
	return nil
}

func (s *Service) removeSource(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return
	}
	delete(s.sources, id)
	s.reorder()
	s.usage.Remove(id)
}

// reorder rebuilds the priority list. Caller holds mu.
func (s *Service) reorder() {
	s.order = s.order[:0]
	for _, src := range s.sources {
		s.order = append(s.order, src)
	}
	sort.Slice(s.order, func(i, j int) bool {
		a, b := s.order[i].config, s.order[j].config
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.SourceID < b.SourceID
	})
}

// Sources returns the configured provider ids in priority order.
func (s *Service) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	for i, src := range s.order {
		ids[i] = src.config.SourceID
	}
	return ids
}

func (s *Service) snapshot() []*source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*source, len(s.order))
	copy(out, s.order)
	if s.opts.MaxProviders > 0 && len(out) > s.opts.MaxProviders {
		out = out[:s.opts.MaxProviders]
	}
	return out
}

// windowReporter is implemented by limiters that can describe their windows.
type windowReporter interface {
	Remaining(providerID string) int
	NextAvailable(providerID string) time.Time
}

// GetUsageReport returns per-provider call counts and costs, plus the
// current rate-limit window when the limiter can report it.
func (s *Service) GetUsageReport() interfaces.UsageReport {
	report := s.usage.Report()
	wr, ok := s.limiter.(windowReporter)
	if !ok {
		return report
	}
	for i := range report.Providers {
		p := &report.Providers[i]
		if n := wr.Remaining(p.Provider); n >= 0 {
			p.WindowRemaining = &n
		}
		p.NextAvailable = wr.NextAvailable(p.Provider)
	}
	return report
}

// Invalidate drops every cached entry for ticker.
func (s *Service) Invalidate(ctx context.Context, ticker string) int {
	return s.cache.InvalidateTicker(ctx, ticker)
}

func (s *Service) requiredFields(req models.FinancialDataRequest) []models.Field {
	if len(s.opts.RequiredFields) > 0 {
		return s.opts.RequiredFields
	}
	return quality.RequiredForRequest(req)
}

// candidate is a result that did not clear the acceptance threshold.
type candidate struct {
	source  string
	record  models.NormalizedFinancialRecord
	history []models.NormalizedFinancialRecord
	quality models.QualityMetrics
}

// FetchData runs the fallback loop. Provider errors never escape: they are
// recorded per attempt and only surface in Error when every provider failed.
// The returned response is never nil.
func (s *Service) FetchData(ctx context.Context, req models.FinancialDataRequest) *models.FinancialDataResponse {
	start := s.now()
	requestID := common.NewRequestID()
	logger := s.logger.WithCorrelationId(requestID)

	resp := &models.FinancialDataResponse{RequestID: requestID}
	finish := func() *models.FinancialDataResponse {
		resp.Latency = s.now().Sub(start)
		return resp
	}

	if req.Ticker == "" {
		resp.Error = models.KindInvalidTicker
		resp.ErrorMessage = "ticker is required"
		return finish()
	}

	required := s.requiredFields(req)
	sources := s.snapshot()

	logger.Debug().
		Str("ticker", req.Ticker).
		Str("data_types", req.TypesKey()).
		Bool("force_refresh", req.ForceRefresh).
		Int("providers", len(sources)).
		Msg("Fetching financial data")

	var best *candidate
	var failures []models.ErrorKind

	for _, src := range sources {
		id := src.config.SourceID
		key := interfaces.NewCacheKey(id, req)

		if !req.ForceRefresh {
			if entry, fresh := s.cache.Get(ctx, key); entry != nil && fresh {
				q := quality.Score(entry.Record, required)
				if q.OverallScore > s.opts.AcceptanceThreshold {
					s.usage.RecordCacheHit(id)
					resp.Attempts = append(resp.Attempts, models.ProviderAttempt{Provider: id, Outcome: models.OutcomeCacheHit, Score: q.OverallScore})
					s.accept(resp, id, entry.Record, entry.History, q)
					resp.FromCache = true
					logger.Debug().Str("provider", id).Str("ticker", req.Ticker).Msg("Served from cache")
					return finish()
				}
			}
		}

		if s.usage.QuotaExhausted(id) {
			s.usage.RecordRateLimited(id)
			resp.Attempts = append(resp.Attempts, models.ProviderAttempt{Provider: id, Outcome: models.OutcomeQuota, Error: models.KindRateLimit})
			logger.Debug().Str("provider", id).Msg("Monthly quota exhausted, skipping")
			continue
		}
		cost := callCost(src.provider, req)
		if !s.limiter.TryAcquireN(id, cost) {
			s.usage.RecordRateLimited(id)
			resp.Attempts = append(resp.Attempts, models.ProviderAttempt{Provider: id, Outcome: models.OutcomeRateLimited, Error: models.KindRateLimit})
			logger.Debug().Str("provider", id).Int("cost", cost).Msg("Rate limited, skipping")
			continue
		}

		callStart := s.now()
		payload, calls, err := s.fetch(ctx, src, req, cost)
		latency := s.now().Sub(callStart)

		if err != nil {
			kind := classify(err)
			failures = append(failures, kind)
			resp.APICallsUsed += calls
			s.usage.RecordCall(ctx, id, calls, latency, err)
			resp.Attempts = append(resp.Attempts, models.ProviderAttempt{Provider: id, Outcome: models.OutcomeFailed, Error: kind, Latency: latency})
			logger.Warn().Err(err).Str("provider", id).Str("ticker", req.Ticker).Str("kind", string(kind)).Msg("Provider fetch failed")
			continue
		}

		resp.APICallsUsed += payload.CallsUsed
		s.usage.RecordCall(ctx, id, payload.CallsUsed, latency, nil)

		record := s.normalizer.Normalize(payload, id)
		history := s.normalizer.NormalizeHistory(payload, id)
		q := quality.Score(record, required)

		// Only accepted results are cached; a weak result must not replace a
		// good entry that may still serve as a stale fallback.
		if q.OverallScore > s.opts.AcceptanceThreshold {
			s.cache.Put(ctx, key, record, history, src.config.CacheTTL)
			resp.Attempts = append(resp.Attempts, models.ProviderAttempt{Provider: id, Outcome: models.OutcomeAccepted, Score: q.OverallScore, Latency: latency})
			s.accept(resp, id, record, history, q)
			logger.Info().
				Str("provider", id).
				Str("ticker", req.Ticker).
				Str("bucket", string(q.CompletenessBucket)).
				Int("calls", resp.APICallsUsed).
				Msg("Financial data fetched")
			return finish()
		}

		resp.Attempts = append(resp.Attempts, models.ProviderAttempt{Provider: id, Outcome: models.OutcomeCandidate, Score: q.OverallScore, Latency: latency})
		logger.Debug().Str("provider", id).Int("missing", len(q.MissingFields)).Msg("Result below acceptance threshold, trying next provider")
		if best == nil || q.OverallScore > best.quality.OverallScore {
			best = &candidate{source: id, record: record, history: history, quality: q}
		}
	}

	if s.opts.DegradedFallback {
		if best != nil && best.quality.OverallScore > 0 {
			s.accept(resp, best.source, best.record, best.history, best.quality)
			resp.Degraded = true
			logger.Warn().Str("provider", best.source).Str("ticker", req.Ticker).Msg("Returning below-threshold result")
			return finish()
		}
		if entry := s.freshestCached(ctx, sources, req); entry != nil {
			s.accept(resp, entry.Key.Provider, entry.Record, entry.History, quality.Score(entry.Record, required))
			resp.Degraded = true
			resp.FromCache = true
			logger.Warn().Str("provider", entry.Key.Provider).Str("ticker", req.Ticker).Msg("Returning stale cache entry")
			return finish()
		}
	}

	resp.Error = failureKind(failures)
	resp.ErrorMessage = fmt.Sprintf("no provider returned data for %s", req.Ticker)
	if best != nil {
		resp.Quality = best.quality
	}
	logger.Warn().Str("ticker", req.Ticker).Str("kind", string(resp.Error)).Msg("All providers exhausted")
	return finish()
}

// accept fills resp with copies, so callers may modify the record freely.
func (s *Service) accept(resp *models.FinancialDataResponse, id string, record models.NormalizedFinancialRecord, history []models.NormalizedFinancialRecord, q models.QualityMetrics) {
	resp.Success = true
	resp.SourceUsed = id
	record = record.Clone()
	resp.Record = &record
	resp.History = models.CloneRecords(history)
	resp.Quality = q
}

// callCost is the provider's declared round trips for req, at least one.
func callCost(p interfaces.DataProvider, req models.FinancialDataRequest) int {
	if n := p.CallCost(req); n > 1 {
		return n
	}
	return 1
}

// fetch calls the provider under the retry policy. Each retry reserves cost
// limiter tokens and stops at the monthly quota.
func (s *Service) fetch(ctx context.Context, src *source, req models.FinancialDataRequest, cost int) (*models.RawPayload, int, error) {
	id := src.config.SourceID
	var payload *models.RawPayload
	acquire := func() bool {
		return !s.usage.QuotaExhausted(id) && s.limiter.TryAcquireN(id, cost)
	}
	calls, err := s.opts.Retry.Run(ctx, acquire, func(ctx context.Context) error {
		p, err := src.provider.Fetch(ctx, req)
		if err != nil {
			return err
		}
		if p == nil || p.Empty() {
			return models.Errorf(models.KindNoData, "fetch", "empty payload").WithProvider(id)
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, calls, err
	}
	if calls > 1 {
		payload.CallsUsed += calls - 1
	}
	return payload, calls, nil
}

// freshestCached returns the most recently stored entry for the request
// across all sources, fresh or not.
func (s *Service) freshestCached(ctx context.Context, sources []*source, req models.FinancialDataRequest) *interfaces.CacheEntry {
	var freshest *interfaces.CacheEntry
	for _, src := range sources {
		entry, _ := s.cache.Get(ctx, interfaces.NewCacheKey(src.config.SourceID, req))
		if entry == nil || len(entry.Record.Values) == 0 {
			continue
		}
		if freshest == nil || entry.StoredAt.After(freshest.StoredAt) {
			freshest = entry
		}
	}
	return freshest
}

// classify maps any error to a provider kind. Unclassified context errors
// become TIMEOUT, everything else NETWORK.
func classify(err error) models.ErrorKind {
	if kind := models.KindOf(err); kind != "" {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.KindTimeout
	}
	return models.KindNetwork
}

// failureKind reports the shared kind when every failed call agrees, else
// NO_DATA. Limiter refusals are not failures.
func failureKind(kinds []models.ErrorKind) models.ErrorKind {
	if len(kinds) == 0 {
		return models.KindNoData
	}
	for _, k := range kinds[1:] {
		if k != kinds[0] {
			return models.KindNoData
		}
	}
	return kinds[0]
}
