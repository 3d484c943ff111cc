package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/calculator"
)

// Fetcher is the adapter capability the pipeline needs.
type Fetcher interface {
	FetchData(ctx context.Context, req models.FinancialDataRequest) *models.FinancialDataResponse
}

// Request asks for a full valuation of one ticker.
type Request struct {
	Ticker        string
	FCFKind       models.FCFKind
	Assumptions   models.DCFAssumptions
	DiscountRates []float64
	GrowthRates   []float64
	ForceRefresh  bool
}

// Report is everything a valuation produced, ready for display or export.
type Report struct {
	AnalysisDate time.Time                          `json:"analysis_date"`
	Ticker       string                             `json:"ticker"`
	CompanyName  string                             `json:"company_name,omitempty"`
	Currency     string                             `json:"currency,omitempty"`
	SourceUsed   string                             `json:"source_used"`
	Degraded     bool                               `json:"degraded"`
	Quality      models.QualityMetrics              `json:"quality"`
	FCF          models.FCFSet                      `json:"fcf"`
	Growth       []models.GrowthRate                `json:"growth"`
	Market       models.MarketContext               `json:"market"`
	Result       *models.DCFResult                  `json:"result"`
	History      []models.NormalizedFinancialRecord `json:"-"`
}

// Pipeline chains fetch, FCF calculation, DCF and sensitivity.
type Pipeline struct {
	fetcher Fetcher
	calc    *calculator.Service
	dcf     *Service
	logger  arbor.ILogger
	now     func() time.Time
}

// NewPipeline wires the stages.
func NewPipeline(fetcher Fetcher, calc *calculator.Service, dcf *Service, logger arbor.ILogger) *Pipeline {
	return &Pipeline{fetcher: fetcher, calc: calc, dcf: dcf, logger: logger, now: time.Now}
}

// Run values req.Ticker. A failed fetch is reported as INSUFFICIENT_DATA
// carrying the adapter's error kind in the message.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	kind := req.FCFKind
	if kind == "" {
		kind = models.FCFF
	}

	resp := p.fetcher.FetchData(ctx, models.NewRequest(req.Ticker, req.ForceRefresh))
	if !resp.Success || resp.Record == nil {
		return nil, models.Errorf(models.KindInsufficientData, "valuation",
			"no financial data for %s: %s %s", req.Ticker, resp.Error, resp.ErrorMessage)
	}

	set, err := p.calc.CalculateAllFCFTypes(resp.History)
	if err != nil && !errors.Is(err, models.ErrInsufficientData) {
		return nil, err
	}
	series, ok := set.Get(kind)
	if !ok {
		return nil, models.Errorf(models.KindInvalidAssumptions, "valuation", "unknown FCF type %q", kind)
	}
	series.Kind = kind

	record := *resp.Record
	netDebt, method := EstimateNetDebt(netDebtHistory(resp.History, record), p.dcf.netDebtMethod())
	market := models.MarketContext{
		Ticker:        record.Ticker,
		CompanyName:   record.CompanyName,
		NetDebt:       &netDebt,
		NetDebtMethod: method,
	}
	market.SharesOutstanding, _ = record.Get(models.FieldSharesOutstanding)
	market.CurrentPrice, _ = record.Get(models.FieldCurrentPrice)

	result, err := p.dcf.CalculateDCF(series, req.Assumptions, market)
	if err != nil {
		return nil, err
	}

	if len(req.DiscountRates) > 0 && len(req.GrowthRates) > 0 {
		matrix, err := p.dcf.SensitivityAnalysis(ctx, series, req.Assumptions, market, req.DiscountRates, req.GrowthRates)
		if err != nil {
			return nil, err
		}
		result.SensitivityMatrix = matrix
	}

	if p.logger != nil {
		p.logger.Info().
			Str("ticker", record.Ticker).
			Str("source", resp.SourceUsed).
			Str("fcf_kind", string(kind)).
			Bool("degraded", resp.Degraded).
			Msg("Valuation complete")
	}

	return &Report{
		AnalysisDate: p.now(),
		Ticker:       record.Ticker,
		CompanyName:  record.CompanyName,
		Currency:     record.Currency,
		SourceUsed:   resp.SourceUsed,
		Degraded:     resp.Degraded,
		Quality:      resp.Quality,
		FCF:          set,
		Growth:       calculator.GrowthRates(series),
		Market:       market,
		Result:       result,
		History:      resp.History,
	}, nil
}

// netDebtHistory adds the merged latest record only when it carries a balance
// sheet. Its financing fields repeat the last history period, so they are
// dropped from the appended copy.
func netDebtHistory(history []models.NormalizedFinancialRecord, latest models.NormalizedFinancialRecord) []models.NormalizedFinancialRecord {
	if len(history) == 0 {
		return []models.NormalizedFinancialRecord{latest}
	}
	if !latest.HasAll(models.FieldTotalDebt, models.FieldCashAndEquivalents) {
		return history
	}
	snapshot := latest.Clone()
	delete(snapshot.Values, models.FieldLongTermDebtIssued)
	delete(snapshot.Values, models.FieldLongTermDebtRepaid)

	out := make([]models.NormalizedFinancialRecord, 0, len(history)+1)
	out = append(out, history...)
	return append(out, snapshot)
}
