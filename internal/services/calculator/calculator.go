// Package calculator derives free-cash-flow series, growth rates and
// effective tax rates from normalized statement history.
package calculator

import (
	"math"
	"sort"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
)

// Default tax settings.
const (
	DefaultTaxRate = 0.25
	MaxTaxRate     = 0.35
)

// Options configures the calculator.
type Options struct {
	DefaultTaxRate float64
	MaxTaxRate     float64
}

// DefaultOptions returns the documented tax defaults.
func DefaultOptions() Options {
	return Options{DefaultTaxRate: DefaultTaxRate, MaxTaxRate: MaxTaxRate}
}

// Service computes FCF series. It holds no per-call state.
type Service struct {
	opts   Options
	logger arbor.ILogger
}

// NewService creates a calculator.
func NewService(opts Options, logger arbor.ILogger) *Service {
	if opts.MaxTaxRate <= 0 {
		opts.MaxTaxRate = MaxTaxRate
	}
	return &Service{opts: opts, logger: logger}
}

var (
	workingCapitalFields = []models.Field{
		models.FieldTotalCurrentAssets,
		models.FieldTotalCurrentLiabilities,
	}
	fcffFields = append([]models.Field{
		models.FieldEBIT,
		models.FieldDepreciationAmortization,
		models.FieldCapitalExpenditures,
	}, workingCapitalFields...)
	fcfeFields = append([]models.Field{
		models.FieldNetIncome,
		models.FieldDepreciationAmortization,
		models.FieldCapitalExpenditures,
	}, workingCapitalFields...)
	lfcfFields = []models.Field{
		models.FieldOperatingCashFlow,
		models.FieldCapitalExpenditures,
	}
)

// TaxRate returns clamp(|tax| / |ebt|, 0, max). It reports defaulted=true
// and the configured default when ebt or tax expense is absent or ebt is zero.
func (s *Service) TaxRate(r models.NormalizedFinancialRecord) (rate float64, defaulted bool) {
	ebt, hasEBT := r.Get(models.FieldEBT)
	tax, hasTax := r.Get(models.FieldIncomeTaxExpense)
	if !hasEBT || !hasTax || ebt == 0 {
		return s.opts.DefaultTaxRate, true
	}
	rate = math.Abs(tax) / math.Abs(ebt)
	return math.Min(math.Max(rate, 0), s.opts.MaxTaxRate), false
}

// WorkingCapital returns current assets minus current liabilities.
func WorkingCapital(r models.NormalizedFinancialRecord) (float64, bool) {
	if !r.HasAll(workingCapitalFields...) {
		return 0, false
	}
	return r.Values[models.FieldTotalCurrentAssets] - r.Values[models.FieldTotalCurrentLiabilities], true
}

// WorkingCapitalDelta returns WC(cur) - WC(prev).
func WorkingCapitalDelta(prev, cur models.NormalizedFinancialRecord) (float64, bool) {
	p, ok := WorkingCapital(prev)
	if !ok {
		return 0, false
	}
	c, ok := WorkingCapital(cur)
	if !ok {
		return 0, false
	}
	return c - p, true
}

// FCFF is ebit*(1-tax) + D&A - dWC - |capex|.
func (s *Service) FCFF(history []models.NormalizedFinancialRecord) models.FCFSeries {
	return series(models.FCFF, history, fcffFields, func(prev, cur models.NormalizedFinancialRecord) (float64, bool) {
		tax, _ := s.TaxRate(cur)
		dwc, _ := WorkingCapitalDelta(prev, cur)
		v := cur.Values
		return v[models.FieldEBIT]*(1-tax) + v[models.FieldDepreciationAmortization] - dwc - math.Abs(v[models.FieldCapitalExpenditures]), true
	})
}

// FCFE is net income + D&A - dWC - |capex| + net borrowing. A period that
// reports neither debt issued nor debt repaid has no FCFE point.
func (s *Service) FCFE(history []models.NormalizedFinancialRecord) models.FCFSeries {
	return series(models.FCFE, history, fcfeFields, func(prev, cur models.NormalizedFinancialRecord) (float64, bool) {
		borrowing, ok := NetBorrowing(cur)
		if !ok {
			return 0, false
		}
		dwc, _ := WorkingCapitalDelta(prev, cur)
		v := cur.Values
		return v[models.FieldNetIncome] + v[models.FieldDepreciationAmortization] - dwc - math.Abs(v[models.FieldCapitalExpenditures]) + borrowing, true
	})
}

// LFCF is operating cash flow - |capex|.
func (s *Service) LFCF(history []models.NormalizedFinancialRecord) models.FCFSeries {
	return series(models.LFCF, history, lfcfFields, func(_, cur models.NormalizedFinancialRecord) (float64, bool) {
		v := cur.Values
		return v[models.FieldOperatingCashFlow] - math.Abs(v[models.FieldCapitalExpenditures]), true
	})
}

// NetBorrowing is debt issued minus |debt repaid|. Providers list only the
// flows that occurred, so one side may be absent and counts as zero; with
// both absent the borrowing is unknown and ok is false.
func NetBorrowing(r models.NormalizedFinancialRecord) (borrowing float64, ok bool) {
	issued, hasIssued := r.Get(models.FieldLongTermDebtIssued)
	repaid, hasRepaid := r.Get(models.FieldLongTermDebtRepaid)
	if !hasIssued && !hasRepaid {
		return 0, false
	}
	return issued - math.Abs(repaid), true
}

// CalculateAllFCFTypes computes FCFF, FCFE and LFCF over the same history.
// It fails with INSUFFICIENT_DATA when fewer than two periods are given or no
// series has a single point.
func (s *Service) CalculateAllFCFTypes(history []models.NormalizedFinancialRecord) (models.FCFSet, error) {
	if len(history) < 2 {
		return models.FCFSet{}, models.Errorf(models.KindInsufficientData, "calculate fcf",
			"need at least 2 periods, got %d", len(history))
	}

	set := models.FCFSet{
		FCFF: s.FCFF(history),
		FCFE: s.FCFE(history),
		LFCF: s.LFCF(history),
	}
	if set.FCFF.Len() == 0 && set.FCFE.Len() == 0 && set.LFCF.Len() == 0 {
		return set, models.Errorf(models.KindInsufficientData, "calculate fcf",
			"no period has the inputs for any FCF type")
	}

	if s.logger != nil {
		s.logger.Debug().
			Int("periods", len(history)).
			Int("fcff", set.FCFF.Len()).
			Int("fcfe", set.FCFE.Len()).
			Int("lfcf", set.LFCF.Len()).
			Msg("FCF series calculated")
	}
	return set, nil
}

// series evaluates fn for every period t where both t and t-1 carry all
// required fields and fn reports ok. Amounts are converted from units to
// millions.
func series(kind models.FCFKind, history []models.NormalizedFinancialRecord, required []models.Field, fn func(prev, cur models.NormalizedFinancialRecord) (float64, bool)) models.FCFSeries {
	sorted := chronological(history)
	out := models.FCFSeries{Kind: kind, Values: []models.FCFPoint{}}
	for t := 1; t < len(sorted); t++ {
		prev, cur := sorted[t-1], sorted[t]
		if !prev.HasAll(required...) || !cur.HasAll(required...) {
			continue
		}
		value, ok := fn(prev, cur)
		if !ok {
			continue
		}
		amount := models.Units(value)
		out.Values = append(out.Values, models.FCFPoint{
			Period: cur.ReportPeriodEnd,
			Amount: models.Millions(amount.In(models.ScaleMillions)),
		})
	}
	return out
}

func chronological(history []models.NormalizedFinancialRecord) []models.NormalizedFinancialRecord {
	sorted := append([]models.NormalizedFinancialRecord(nil), history...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReportPeriodEnd.Before(sorted[j].ReportPeriodEnd)
	})
	return sorted
}

// CAGR returns (|end|/|start|)^(1/years) - 1. It is undefined when start is
// zero, years is not positive or the values have opposite signs.
func CAGR(start, end float64, years int) (float64, bool) {
	if start == 0 || years <= 0 || start*end < 0 {
		return 0, false
	}
	return math.Pow(math.Abs(end)/math.Abs(start), 1/float64(years)) - 1, true
}

// GrowthRates returns the year-over-year rates of a series followed by its
// compound rate over the whole span. Undefined rates have a nil Rate.
func GrowthRates(s models.FCFSeries) []models.GrowthRate {
	if s.Len() < 2 {
		return nil
	}
	values := s.AmountsIn(models.ScaleMillions)
	rates := make([]models.GrowthRate, 0, s.Len())
	for i := 1; i < len(values); i++ {
		rates = append(rates, growth(periodLabel(s, i-1, i), 1, values[i-1], values[i]))
	}
	last := len(values) - 1
	rates = append(rates, growth("CAGR "+periodLabel(s, 0, last), last, values[0], values[last]))
	return rates
}

func growth(label string, years int, start, end float64) models.GrowthRate {
	g := models.GrowthRate{Label: label, Years: years}
	if r, ok := CAGR(start, end, years); ok {
		g.Rate = &r
	}
	return g
}

func periodLabel(s models.FCFSeries, from, to int) string {
	return strconv.Itoa(s.Values[from].Period.Year()) + "-" + strconv.Itoa(s.Values[to].Period.Year())
}
