package yahoo

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/providers"
)

// ProviderID identifies Yahoo in configuration and responses.
const ProviderID = "yahoo"

// statementModules maps each history module to the list key inside it.
var statementModules = map[string]string{
	"incomeStatementHistory":   "incomeStatementHistory",
	"balanceSheetHistory":      "balanceSheetStatements",
	"cashflowStatementHistory": "cashflowStatements",
}

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

// Fetch asks for every needed module in a single quoteSummary call.
func (p *Provider) Fetch(ctx context.Context, req models.FinancialDataRequest) (*models.RawPayload, error) {
	symbol := common.ParseTicker(req.Ticker).YahooSymbol()

	modules := []string{"price"}
	if req.Wants(models.DataTypeFundamentals) {
		modules = append(modules, "defaultKeyStatistics", "financialData")
	}
	if req.Wants(models.DataTypeStatements) {
		modules = append(modules, "incomeStatementHistory", "balanceSheetHistory", "cashflowStatementHistory")
	}

	result, err := p.client.QuoteSummary(ctx, symbol, modules...)
	if err != nil {
		return nil, err
	}

	payload := &models.RawPayload{
		Source:    ProviderID,
		Ticker:    req.Ticker,
		Snapshot:  map[string]interface{}{},
		CallsUsed: 1,
	}

	price := result["price"]
	payload.CompanyName = firstString(price, "longName", "shortName")
	payload.Currency = firstString(price, "currency")
	if req.Wants(models.DataTypePrice) {
		copyKeys(payload.Snapshot, price, "regularMarketPrice")
	}
	if req.Wants(models.DataTypeFundamentals) {
		copyKeys(payload.Snapshot, price, "marketCap")
		copyKeys(payload.Snapshot, result["defaultKeyStatistics"], "sharesOutstanding")
		copyKeys(payload.Snapshot, result["financialData"], "totalRevenue", "totalDebt", "totalCash")
		if v, ok := payload.Snapshot["totalCash"]; ok {
			payload.Snapshot["cash"] = v
			delete(payload.Snapshot, "totalCash")
		}
	}
	if req.Wants(models.DataTypeStatements) {
		payload.Periods = statementPeriods(result)
	}

	if payload.Empty() {
		return nil, models.Errorf(models.KindNoData, "fetch", "no data for %s", symbol).WithProvider(ProviderID)
	}

	if p.logger != nil {
		p.logger.Debug().
			Str("symbol", symbol).
			Int("periods", len(payload.Periods)).
			Msg("Yahoo fetch complete")
	}
	return payload, nil
}

func statementPeriods(result map[string]Module) []models.RawPeriod {
	set := providers.NewPeriodSet()
	for module, listKey := range statementModules {
		list, _ := result[module][listKey].([]interface{})
		for _, item := range list {
			row, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			end, ok := endDate(row["endDate"])
			if !ok {
				continue
			}
			set.Add(end, row)
		}
	}
	return set.Periods(providers.DefaultHistoryYears)
}

// endDate reads {"raw": unix, "fmt": "2006-01-02"}, preferring fmt.
func endDate(v interface{}) (t time.Time, ok bool) {
	obj, isObj := v.(map[string]interface{})
	if !isObj {
		return t, false
	}
	if s, isStr := obj["fmt"].(string); isStr {
		if t, ok = providers.ParseDate(s); ok {
			return t, true
		}
	}
	if raw, isNum := obj["raw"].(float64); isNum && raw > 0 {
		u := time.Unix(int64(raw), 0).UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return t, false
}

func firstString(m Module, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// copyKeys keeps only values that carry a number; Yahoo sends {} for missing.
func copyKeys(dst map[string]interface{}, src Module, keys ...string) {
	for _, k := range keys {
		v, ok := src[k]
		if !ok || v == nil {
			continue
		}
		if obj, isObj := v.(map[string]interface{}); isObj {
			if _, hasRaw := obj["raw"]; !hasRaw {
				continue
			}
		}
		dst[k] = v
	}
}

var _ interfaces.DataProvider = (*Provider)(nil)
