package alphavantage

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

var responses = map[string]string{
	"INCOME_STATEMENT": `{"symbol": "IBM", "annualReports": [
		{"fiscalDateEnding": "2024-12-31", "reportedCurrency": "USD", "netIncome": "6023000000", "ebit": "8134000000", "incomeBeforeTax": "5797000000", "incomeTaxExpense": "-218000000"},
		{"fiscalDateEnding": "2023-12-31", "reportedCurrency": "USD", "netIncome": "7502000000", "ebit": "None"}
	]}`,
	"BALANCE_SHEET": `{"symbol": "IBM", "annualReports": [
		{"fiscalDateEnding": "2024-12-31", "totalCurrentAssets": "34482000000", "totalCurrentLiabilities": "33142000000", "totalShareholderEquity": "27307000000"}
	]}`,
	"CASH_FLOW": `{"symbol": "IBM", "annualReports": [
		{"fiscalDateEnding": "2024-12-31", "operatingCashflow": "13445000000", "capitalExpenditures": "1685000000", "proceedsFromIssuanceOfLongTermDebtAndCapitalSecuritiesNet": "5989000000"}
	]}`,
	"OVERVIEW":     `{"Symbol": "IBM", "Name": "International Business Machines", "Currency": "USD", "MarketCapitalization": "232000000000", "SharesOutstanding": "927000000"}`,
	"GLOBAL_QUOTE": `{"Global Quote": {"01. symbol": "IBM", "05. price": "250.1200"}}`,
}

func serve(t *testing.T, handler func(w http.ResponseWriter, fn, symbol string)) (*Provider, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		handler(w, r.URL.Query().Get("function"), r.URL.Query().Get("symbol"))
	}))
	client := NewClient("demo", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	return NewProvider(client, arbor.NewLogger()), srv.Close
}

func TestProvider_FetchAll(t *testing.T) {
	p, closeFn := serve(t, func(w http.ResponseWriter, fn, symbol string) {
		assert.Equal(t, "IBM", symbol)
		_, _ = w.Write([]byte(responses[fn]))
	})
	defer closeFn()

	payload, err := p.Fetch(context.Background(), models.NewRequest("IBM", false))
	require.NoError(t, err)
	assert.Equal(t, 5, payload.CallsUsed)
	assert.Equal(t, "International Business Machines", payload.CompanyName)
	assert.Equal(t, "USD", payload.Currency)
	require.Len(t, payload.Periods, 2)

	rec := normalize.MustNew().Normalize(payload, ProviderID)
	assert.Equal(t, 250.12, rec.Values[models.FieldCurrentPrice])
	assert.Equal(t, 927000000.0, rec.Values[models.FieldSharesOutstanding])
	assert.Equal(t, 13445000000.0, rec.Values[models.FieldOperatingCashFlow])
	assert.Equal(t, 5989000000.0, rec.Values[models.FieldLongTermDebtIssued])
	assert.Equal(t, -218000000.0, rec.Values[models.FieldIncomeTaxExpense])

	history := normalize.MustNew().NormalizeHistory(payload, ProviderID)
	assert.False(t, history[0].Has(models.FieldEBIT), "None stays absent")
}

func TestProvider_InBodyErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.ErrorKind
	}{
		{"throttle note", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, models.KindRateLimit},
		{"daily limit", `{"Information": "We have detected your API key as demo and our standard API rate limit is 25 requests per day."}`, models.KindRateLimit},
		{"bad key", `{"Information": "The **demo** API key is for demo purposes only. Please claim your free API key."}`, models.KindAuthentication},
		{"bad symbol", `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`, models.KindInvalidTicker},
		{"not json", `<html>`, models.KindMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, closeFn := serve(t, func(w http.ResponseWriter, fn, symbol string) {
				_, _ = w.Write([]byte(tt.body))
			})
			defer closeFn()

			_, err := p.Fetch(context.Background(), models.NewRequest("IBM", false))
			assert.Equal(t, tt.want, models.KindOf(err))
		})
	}
}

func TestProvider_StopsAtFirstFailure(t *testing.T) {
	var calls int32
	p, closeFn := serve(t, func(w http.ResponseWriter, fn, symbol string) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer closeFn()

	_, err := p.Fetch(context.Background(), models.NewRequest("IBM", false))
	assert.Equal(t, models.KindNetwork, models.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestProvider_EmptyOverviewIsNoData(t *testing.T) {
	p, closeFn := serve(t, func(w http.ResponseWriter, fn, symbol string) {
		_, _ = w.Write([]byte(`{}`))
	})
	defer closeFn()

	_, err := p.Fetch(context.Background(), models.NewRequest("ZZZZ", false, models.DataTypeFundamentals))
	assert.Equal(t, models.KindNoData, models.KindOf(err))
}

func TestProvider_CallCostMatchesRoundTrips(t *testing.T) {
	tests := []struct {
		name  string
		types []models.DataType
		want  int
	}{
		{"all types", nil, 5},
		{"statements", []models.DataType{models.DataTypeStatements}, 3},
		{"fundamentals", []models.DataType{models.DataTypeFundamentals}, 1},
		{"price and fundamentals", []models.DataType{models.DataTypePrice, models.DataTypeFundamentals}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			p, closeFn := serve(t, func(w http.ResponseWriter, fn, symbol string) {
				atomic.AddInt32(&calls, 1)
				_, _ = w.Write([]byte(responses[fn]))
			})
			defer closeFn()

			req := models.NewRequest("IBM", false, tt.types...)
			assert.Equal(t, tt.want, p.CallCost(req))

			_, err := p.Fetch(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, int32(tt.want), atomic.LoadInt32(&calls))
		})
	}
}
