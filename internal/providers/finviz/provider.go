package finviz

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

// ProviderID identifies Finviz in configuration and responses.
const ProviderID = "finviz"

// snapshotLabels are the table cells the normalizer maps.
var snapshotLabels = []string{"Price", "Market Cap", "Shs Outstand"}

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

func (p *Provider) RequiresCredentials() bool { return false }

func (p *Provider) CallCost(models.FinancialDataRequest) int { return 1 }

// Fetch scrapes one quote page. STATEMENTS-only requests get NO_DATA without
// a network call.
func (p *Provider) Fetch(ctx context.Context, req models.FinancialDataRequest) (*models.RawPayload, error) {
	ticker := common.ParseTicker(req.Ticker)
	if !ticker.IsUS() {
		return nil, errNotUS.WithProvider(ProviderID)
	}
	if !req.Wants(models.DataTypePrice) && !req.Wants(models.DataTypeFundamentals) {
		return nil, models.Errorf(models.KindNoData, "fetch", "no statements available").WithProvider(ProviderID)
	}

	symbol := ticker.YahooSymbol()
	snap, err := p.client.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if snap.notFound() {
		return nil, models.Errorf(models.KindInvalidTicker, "quote", "no snapshot table for %s", symbol).WithProvider(ProviderID)
	}

	payload := &models.RawPayload{
		Source:      ProviderID,
		Ticker:      req.Ticker,
		CompanyName: snap.Company,
		Currency:    "USD",
		Snapshot:    map[string]interface{}{},
		CallsUsed:   1,
	}
	for _, label := range snapshotLabels {
		if label == "Price" && !req.Wants(models.DataTypePrice) {
			continue
		}
		if label != "Price" && !req.Wants(models.DataTypeFundamentals) {
			continue
		}
		if v, ok := snap.Fields[label]; ok && v != "-" {
			payload.Snapshot[label] = v
		}
	}

	if payload.Empty() {
		return nil, models.Errorf(models.KindNoData, "fetch", "no data for %s", symbol).WithProvider(ProviderID)
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("symbol", symbol).
			Int("fields", len(payload.Snapshot)).
			Msg("Finviz fetch complete")
	}
	return payload, nil
}

var _ interfaces.DataProvider = (*Provider)(nil)
