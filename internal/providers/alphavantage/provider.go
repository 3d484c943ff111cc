package alphavantage

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/providers"
)

// ProviderID identifies Alpha Vantage in configuration and responses.
const ProviderID = "alphavantage"

var statementFunctions = []string{"INCOME_STATEMENT", "BALANCE_SHEET", "CASH_FLOW"}

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

// CallCost counts the functions Fetch will query for req.
func (p *Provider) CallCost(req models.FinancialDataRequest) int {
	n := 0
	if req.Wants(models.DataTypeStatements) {
		n += len(statementFunctions)
	}
	if req.Wants(models.DataTypeFundamentals) {
		n++
	}
	if req.Wants(models.DataTypePrice) {
		n++
	}
	return n
}

// Fetch issues one query per function the request needs: the three
// statements for STATEMENTS, OVERVIEW for FUNDAMENTALS and GLOBAL_QUOTE for PRICE.
func (p *Provider) Fetch(ctx context.Context, req models.FinancialDataRequest) (*models.RawPayload, error) {
	symbol := common.ParseTicker(req.Ticker).YahooSymbol()
	payload := &models.RawPayload{
		Source:   ProviderID,
		Ticker:   req.Ticker,
		Snapshot: map[string]interface{}{},
	}

	if req.Wants(models.DataTypeStatements) {
		set := providers.NewPeriodSet()
		for _, fn := range statementFunctions {
			rows, err := p.client.AnnualReports(ctx, fn, symbol)
			if err != nil {
				return nil, err
			}
			payload.CallsUsed++
			for _, row := range rows {
				date, _ := row["fiscalDateEnding"].(string)
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

	if req.Wants(models.DataTypeFundamentals) {
		overview, err := p.client.Overview(ctx, symbol)
		if err != nil {
			return nil, err
		}
		payload.CallsUsed++
		if name, ok := overview["Name"].(string); ok {
			payload.CompanyName = name
		}
		if currency, ok := overview["Currency"].(string); ok && currency != "" {
			payload.Currency = currency
		}
		for _, key := range []string{"MarketCapitalization", "SharesOutstanding"} {
			if v, ok := overview[key]; ok {
				payload.Snapshot[key] = v
			}
		}
	}

	if req.Wants(models.DataTypePrice) {
		quote, err := p.client.GlobalQuote(ctx, symbol)
		if err != nil {
			return nil, err
		}
		payload.CallsUsed++
		if v, ok := quote["05. price"]; ok {
			payload.Snapshot["05. price"] = v
		}
	}

	if payload.Empty() {
		return nil, models.Errorf(models.KindNoData, "fetch", "no data for %s", symbol).WithProvider(ProviderID)
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("symbol", symbol).
			Int("periods", len(payload.Periods)).
			Int("calls", payload.CallsUsed).
			Msg("Alpha Vantage fetch complete")
	}
	return payload, nil
}

var _ interfaces.DataProvider = (*Provider)(nil)
