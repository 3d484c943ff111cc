package fmp

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/providers"
)

// ProviderID identifies FMP in configuration and responses.
const ProviderID = "fmp"

var statements = []string{"income-statement", "balance-sheet-statement", "cash-flow-statement"}

var quoteKeys = []string{"price", "marketCap", "sharesOutstanding"}

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

func (p *Provider) CallCost(req models.FinancialDataRequest) int {
	n := 0
	if req.Wants(models.DataTypePrice) || req.Wants(models.DataTypeFundamentals) {
		n++
	}
	if req.Wants(models.DataTypeFundamentals) {
		n++
	}
	if req.Wants(models.DataTypeStatements) {
		n += len(statements)
	}
	return n
}

// Fetch uses /quote for PRICE and FUNDAMENTALS, /profile for FUNDAMENTALS and
// the three annual statement endpoints for STATEMENTS.
func (p *Provider) Fetch(ctx context.Context, req models.FinancialDataRequest) (*models.RawPayload, error) {
	symbol := common.ParseTicker(req.Ticker).YahooSymbol()
	payload := &models.RawPayload{
		Source:   ProviderID,
		Ticker:   req.Ticker,
		Snapshot: map[string]interface{}{},
	}

	if req.Wants(models.DataTypePrice) || req.Wants(models.DataTypeFundamentals) {
		quote, err := p.client.Quote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		payload.CallsUsed++
		copyKeys(payload.Snapshot, quote, quoteKeys...)
		if name, ok := quote["name"].(string); ok {
			payload.CompanyName = name
		}
	}

	if req.Wants(models.DataTypeFundamentals) {
		profile, err := p.client.Profile(ctx, symbol)
		if err != nil {
			return nil, err
		}
		payload.CallsUsed++
		copyKeys(payload.Snapshot, profile, "mktCap")
		if name, ok := profile["companyName"].(string); ok && name != "" {
			payload.CompanyName = name
		}
		payload.Currency, _ = profile["currency"].(string)
	}

	if req.Wants(models.DataTypeStatements) {
		set := providers.NewPeriodSet()
		for _, statement := range statements {
			rows, err := p.client.Statement(ctx, statement, symbol, providers.DefaultHistoryYears)
			if err != nil {
				return nil, err
			}
			payload.CallsUsed++
			for _, row := range rows {
				date, _ := row["date"].(string)
				end, ok := providers.ParseDate(date)
				if !ok {
					continue
				}
				if payload.Currency == "" {
					payload.Currency, _ = row["reportedCurrency"].(string)
				}
				set.Add(end, row)
			}
		}
		payload.Periods = set.Periods(providers.DefaultHistoryYears)
	}

	if payload.Empty() {
		return nil, models.Errorf(models.KindNoData, "fetch", "no data for %s", symbol).WithProvider(ProviderID)
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("symbol", symbol).
			Int("periods", len(payload.Periods)).
			Int("calls", payload.CallsUsed).
			Msg("FMP fetch complete")
	}
	return payload, nil
}

func copyKeys(dst map[string]interface{}, src Row, keys ...string) {
	for _, k := range keys {
		if v, ok := src[k]; ok && v != nil {
			dst[k] = v
		}
	}
}

var _ interfaces.DataProvider = (*Provider)(nil)
