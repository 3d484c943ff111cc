package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/normalize"
)

func newTestProvider(t *testing.T, mux *http.ServeMux) *Provider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient("k", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	return NewProvider(client, arbor.NewLogger())
}

func write(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func TestProvider_FetchAll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote/MSFT", write(`[{"symbol": "MSFT", "name": "Microsoft Corporation", "price": 415.5, "marketCap": 3088000000000, "sharesOutstanding": 7433000000}]`))
	mux.HandleFunc("/profile/MSFT", write(`[{"symbol": "MSFT", "companyName": "Microsoft Corp", "currency": "USD", "mktCap": 3090000000000}]`))
	mux.HandleFunc("/income-statement/MSFT", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "annual", r.URL.Query().Get("period"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"date": "2024-06-30", "reportedCurrency": "USD", "revenue": 245122000000, "netIncome": 88136000000, "operatingIncome": 109433000000},
			{"date": "2023-06-30", "reportedCurrency": "USD", "revenue": 211915000000, "netIncome": 72361000000}
		]`))
	})
	mux.HandleFunc("/balance-sheet-statement/MSFT", write(`[{"date": "2024-06-30", "totalDebt": 97852000000, "cashAndCashEquivalents": 18315000000}]`))
	mux.HandleFunc("/cash-flow-statement/MSFT", write(`[{"date": "2024-06-30", "operatingCashFlow": 118548000000, "capitalExpenditure": -44477000000, "debtRepayment": -29070000000}]`))

	p := newTestProvider(t, mux)
	payload, err := p.Fetch(context.Background(), models.NewRequest("MSFT", false))
	require.NoError(t, err)
	assert.Equal(t, 5, payload.CallsUsed)
	assert.Equal(t, payload.CallsUsed, p.CallCost(models.NewRequest("MSFT", false)))
	assert.Equal(t, "Microsoft Corp", payload.CompanyName)
	assert.Equal(t, "USD", payload.Currency)
	require.Len(t, payload.Periods, 2)

	rec := normalize.MustNew().Normalize(payload, ProviderID)
	assert.Equal(t, 415.5, rec.Values[models.FieldCurrentPrice])
	assert.Equal(t, 3088000000000.0, rec.Values[models.FieldMarketCap], "quote market cap wins over profile")
	assert.Equal(t, 109433000000.0, rec.Values[models.FieldEBIT])
	assert.Equal(t, -44477000000.0, rec.Values[models.FieldCapitalExpenditures])
	assert.Equal(t, 29070000000.0, rec.Values[models.FieldLongTermDebtRepaid])
}

func TestProvider_PriceOnly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote/BRK-B", write(`[{"symbol": "BRK-B", "price": 455.1}]`))

	p := newTestProvider(t, mux)
	payload, err := p.Fetch(context.Background(), models.NewRequest("BRK.B", false, models.DataTypePrice))
	require.NoError(t, err)
	assert.Equal(t, 1, payload.CallsUsed)
	assert.Equal(t, 1, p.CallCost(models.NewRequest("BRK.B", false, models.DataTypePrice)))
	assert.Equal(t, 455.1, payload.Snapshot["price"])
	assert.Empty(t, payload.Periods)
}

func TestProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    models.ErrorKind
	}{
		{
			name:    "empty list is no data",
			handler: write(`[]`),
			want:    models.KindNoData,
		},
		{
			name: "invalid key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"Error Message": "Invalid API KEY."}`))
			},
			want: models.KindAuthentication,
		},
		{
			name: "limit reached",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: models.KindRateLimit,
		},
		{
			name:    "object instead of list",
			handler: write(`{"Error Message": "Limit Reach"}`),
			want:    models.KindMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/quote/XYZ", tt.handler)
			p := newTestProvider(t, mux)

			_, err := p.Fetch(context.Background(), models.NewRequest("XYZ", false, models.DataTypePrice))
			assert.Equal(t, tt.want, models.KindOf(err))
		})
	}
}

func TestProvider_CallCost(t *testing.T) {
	tests := []struct {
		name  string
		types []models.DataType
		want  int
	}{
		{"all types", nil, 5},
		{"price", []models.DataType{models.DataTypePrice}, 1},
		{"fundamentals", []models.DataType{models.DataTypeFundamentals}, 2},
		{"statements", []models.DataType{models.DataTypeStatements}, 3},
		{"price and statements", []models.DataType{models.DataTypePrice, models.DataTypeStatements}, 4},
	}

	p := NewProvider(NewClient("k"), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.CallCost(models.NewRequest("MSFT", false, tt.types...)))
		})
	}
}
