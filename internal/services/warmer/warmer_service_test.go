package warmer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/models"
)

type fakeFetcher struct {
	mu   sync.Mutex
	reqs []models.FinancialDataRequest
	fail map[string]models.ErrorKind
}

func (f *fakeFetcher) FetchData(_ context.Context, req models.FinancialDataRequest) *models.FinancialDataResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if kind, ok := f.fail[req.Ticker]; ok {
		return &models.FinancialDataResponse{Error: kind, ErrorMessage: "all providers failed"}
	}
	return &models.FinancialDataResponse{Success: true, SourceUsed: "yahoo"}
}

func TestRunNow(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]models.ErrorKind{"BAD": models.KindInvalidTicker}}
	svc := NewService(fetcher, common.WarmerConfig{Tickers: []string{"AAPL", " ", "BAD", "ASX:BHP"}}, arbor.NewLogger())

	result := svc.RunNow(context.Background())

	assert.Equal(t, []string{"AAPL", "ASX:BHP"}, result.Refreshed)
	require.Contains(t, result.Failed, "BAD")
	assert.Contains(t, result.Failed["BAD"], "INVALID_TICKER")

	require.Len(t, fetcher.reqs, 3)
	for _, req := range fetcher.reqs {
		assert.True(t, req.ForceRefresh)
		assert.Equal(t, models.AllDataTypes, req.DataTypes)
	}

	st := svc.Status()
	require.NotNil(t, st.LastRun)
	assert.Equal(t, result.Refreshed, st.LastRun.Refreshed)
}

type fakePurger struct {
	grace time.Duration
}

func (f *fakePurger) PurgeExpired(grace time.Duration) int {
	f.grace = grace
	return 4
}

func TestRunNow_PurgesFirst(t *testing.T) {
	purger := &fakePurger{}
	svc := NewService(&fakeFetcher{}, common.WarmerConfig{Tickers: []string{"AAPL"}}, nil).
		WithPurger(purger, 0)

	result := svc.RunNow(context.Background())

	assert.Equal(t, 4, result.Purged)
	assert.Equal(t, DefaultPurgeGrace, purger.grace)
	assert.Equal(t, []string{"AAPL"}, result.Refreshed)
}

func TestRunNow_CancelledContext(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := NewService(fetcher, common.WarmerConfig{Tickers: []string{"AAPL", "MSFT"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := svc.RunNow(ctx)

	assert.Empty(t, result.Refreshed)
	assert.Len(t, result.Failed, 2)
	assert.Empty(t, fetcher.reqs)
}

func TestStartStop(t *testing.T) {
	svc := NewService(&fakeFetcher{}, common.WarmerConfig{Schedule: "*/5 * * * *", Tickers: []string{"AAPL"}}, arbor.NewLogger())

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	assert.Error(t, svc.Start())

	st := svc.Status()
	assert.Equal(t, "*/5 * * * *", st.Schedule)
	assert.NotNil(t, st.NextRun)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	svc := NewService(&fakeFetcher{}, common.WarmerConfig{Schedule: "every day"}, arbor.NewLogger())
	assert.Error(t, svc.Start())
	assert.False(t, svc.IsRunning())
}

func TestNewService_DefaultSchedule(t *testing.T) {
	svc := NewService(&fakeFetcher{}, common.WarmerConfig{}, arbor.NewLogger())
	assert.Equal(t, DefaultSchedule, svc.Status().Schedule)
}
