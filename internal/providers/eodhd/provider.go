package eodhd

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/providers"
)

// ProviderID identifies EODHD in configuration and responses.
const ProviderID = "eodhd"

// Provider adapts Client to interfaces.DataProvider.
type Provider struct {
	client *Client
	logger arbor.ILogger
}

// NewProvider wraps client.
func NewProvider(client *Client, logger arbor.ILogger) *Provider {
	return &Provider{client: client, logger: logger}
}

func (p *Provider) ID() string { return ProviderID }

func (p *Provider) RequiresCredentials() bool { return true }

// CallCost counts HTTP requests, not billed units: /fundamentals is one
// request even though EODHD bills it as fundamentalsCallCost.
func (p *Provider) CallCost(req models.FinancialDataRequest) int {
	n := 0
	if req.Wants(models.DataTypeFundamentals) || req.Wants(models.DataTypeStatements) {
		n++
	}
	if req.Wants(models.DataTypePrice) {
		n++
	}
	return n
}

// Fetch calls /fundamentals for FUNDAMENTALS or STATEMENTS and /real-time for
// PRICE. Any failed call fails the fetch.
func (p *Provider) Fetch(ctx context.Context, req models.FinancialDataRequest) (*models.RawPayload, error) {
	symbol := common.ParseTicker(req.Ticker).EODHDSymbol()
	payload := &models.RawPayload{
		Source:   ProviderID,
		Ticker:   req.Ticker,
		Snapshot: map[string]interface{}{},
	}

	if req.Wants(models.DataTypeFundamentals) || req.Wants(models.DataTypeStatements) {
		f, err := p.client.GetFundamentals(ctx, symbol)
		if err != nil {
			return nil, err
		}
		payload.CallsUsed += fundamentalsCallCost
		payload.CompanyName = f.General.Name
		payload.Currency = f.General.CurrencyCode

		if req.Wants(models.DataTypeFundamentals) {
			setIfPresent(payload.Snapshot, "MarketCapitalization", f.Highlights.MarketCapitalization)
			setIfPresent(payload.Snapshot, "SharesOutstanding", f.SharesStats.SharesOutstanding)
		}
		if req.Wants(models.DataTypeStatements) && f.Financials != nil {
			payload.Periods = yearlyPeriods(f.Financials)
		}
	}

	if req.Wants(models.DataTypePrice) {
		q, err := p.client.GetRealTimeQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		payload.CallsUsed++
		setIfPresent(payload.Snapshot, "close", q.Close)
		setIfPresent(payload.Snapshot, "previousClose", q.PreviousClose)
	}

	if payload.Empty() {
		return nil, models.Errorf(models.KindNoData, "fetch", "no data for %s", symbol).WithProvider(ProviderID)
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("symbol", symbol).
			Int("periods", len(payload.Periods)).
			Int("calls", payload.CallsUsed).
			Msg("EODHD fetch complete")
	}
	return payload, nil
}

func yearlyPeriods(f *Financials) []models.RawPeriod {
	set := providers.NewPeriodSet()
	for _, stmt := range []FinancialStatement{f.IncomeStatement, f.BalanceSheet, f.CashFlow} {
		for date, row := range stmt.Yearly {
			end, ok := providers.ParseDate(date)
			if !ok {
				continue
			}
			set.Add(end, row)
		}
	}
	return set.Periods(providers.DefaultHistoryYears)
}

func setIfPresent(dst map[string]interface{}, key string, v interface{}) {
	if v == nil {
		return
	}
	if s, ok := v.(string); ok && (s == "" || s == "NA") {
		return
	}
	dst[key] = v
}

var _ interfaces.DataProvider = (*Provider)(nil)
