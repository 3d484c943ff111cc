package finviz

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/normalize"
)

const quotePage = `<html><body>
<h2 class="quote-header_ticker-wrapper_company"><a href="#">Apple Inc</a></h2>
<table class="snapshot-table2">
  <tr><td>Index</td><td><b>DJIA, NDX, S&amp;P 500</b></td><td>P/E</td><td><b>37.35</b></td></tr>
  <tr><td>Market Cap</td><td><b>3443.71B</b></td><td>Shs Outstand</td><td><b>15.12B</b></td></tr>
  <tr><td>Book/sh</td><td><b>4.38</b></td><td>Price</td><td><b>227.52</b></td></tr>
</table>
</body></html>`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client())), arbor.NewLogger())
}

func TestProvider_ParsesSnapshotTable(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote.ashx", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("t"))
		_, _ = w.Write([]byte(quotePage))
	})

	payload, err := p.Fetch(context.Background(), models.NewRequest("NASDAQ:AAPL", false))
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", payload.CompanyName)
	assert.Equal(t, 1, payload.CallsUsed)
	assert.Equal(t, payload.CallsUsed, p.CallCost(models.FinancialDataRequest{}))
	assert.Len(t, payload.Snapshot, 3)

	rec := normalize.MustNew().Normalize(payload, ProviderID)
	assert.Equal(t, 227.52, rec.Values[models.FieldCurrentPrice])
	assert.InDelta(t, 3443.71e9, rec.Values[models.FieldMarketCap], 1)
	assert.InDelta(t, 15.12e9, rec.Values[models.FieldSharesOutstanding], 1)
}

func TestProvider_NoNetworkCall(t *testing.T) {
	var calls int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := p.Fetch(context.Background(), models.NewRequest("ASX:BHP", false))
	assert.Equal(t, models.KindInvalidTicker, models.KindOf(err))

	_, err = p.Fetch(context.Background(), models.NewRequest("AAPL", false, models.DataTypeStatements))
	assert.Equal(t, models.KindNoData, models.KindOf(err))

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   models.ErrorKind
	}{
		{"soft not found page", http.StatusOK, `<html><body><h1>Ticker not found</h1></body></html>`, models.KindInvalidTicker},
		{"hard not found", http.StatusNotFound, ``, models.KindInvalidTicker},
		{"blocked", http.StatusForbidden, ``, models.KindAuthentication},
		{"throttled", http.StatusTooManyRequests, ``, models.KindRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := p.Fetch(context.Background(), models.NewRequest("ZZZZ", false))
			assert.Equal(t, tt.want, models.KindOf(err))
		})
	}
}

func TestProvider_DashMeansAbsent(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<table class="snapshot-table2"><tr><td>Price</td><td>12.5</td><td>Shs Outstand</td><td>-</td></tr></table>`))
	})

	payload, err := p.Fetch(context.Background(), models.NewRequest("TINY", false))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"Price": "12.5"}, payload.Snapshot)
}
