// Package valuation projects free cash flow and discounts it to a fair value
// per share. Every calculation is a pure function of its inputs.
package valuation

import (
	"fmt"
	"math"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/models"
)

// Sanity bounds for fair value relative to the market price.
const (
	MinSaneRatio = 0.01
	MaxSaneRatio = 100.0
)

// Options configures the valuator.
type Options struct {
	// DefaultBaseFCF, in millions, replaces the base FCF of an empty series.
	// Nil makes an empty series an INSUFFICIENT_DATA error.
	DefaultBaseFCF *float64
	// NetDebtMethod is NetDebtFinancing (the default when empty) or
	// NetDebtBalanceSheet.
	NetDebtMethod string
}

// Service runs DCF valuations.
type Service struct {
	opts   Options
	logger arbor.ILogger
}

// NewService creates a valuator.
func NewService(opts Options, logger arbor.ILogger) *Service {
	return &Service{opts: opts, logger: logger}
}

func (s *Service) netDebtMethod() string {
	if s.opts.NetDebtMethod == "" {
		return NetDebtFinancing
	}
	return s.opts.NetDebtMethod
}

// baseFCF returns the latest series value in millions, or the configured
// default when the series is empty.
func (s *Service) baseFCF(series models.FCFSeries) (models.Amount, bool, error) {
	if latest, ok := series.Latest(); ok {
		return models.Millions(latest.Amount.In(models.ScaleMillions)), false, nil
	}
	if s.opts.DefaultBaseFCF != nil {
		return models.Millions(*s.opts.DefaultBaseFCF), true, nil
	}
	return models.Amount{}, false, models.Errorf(models.KindInsufficientData, "calculate dcf",
		"%s series is empty and no default base FCF is configured", series.Kind)
}

// CalculateDCF values the series under the assumptions. market supplies
// shares outstanding, price and net debt for the per-share step.
func (s *Service) CalculateDCF(series models.FCFSeries, a models.DCFAssumptions, market models.MarketContext) (*models.DCFResult, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	base, defaulted, err := s.baseFCF(series)
	if err != nil {
		return nil, err
	}

	result, err := value(base, a, market)
	if err != nil {
		return nil, err
	}
	result.FCFKind = series.Kind
	result.BaseFCFDefaulted = defaulted

	if s.logger != nil {
		s.logger.Debug().
			Str("ticker", market.Ticker).
			Str("fcf_kind", string(series.Kind)).
			Str("enterprise_value_m", fmt.Sprintf("%.2f", result.EnterpriseValue.Value)).
			Str("fair_value", fmt.Sprintf("%.4f", result.FairValuePerShare)).
			Bool("base_defaulted", defaulted).
			Msg("DCF calculated")
		if result.SanityWarning != "" {
			s.logger.Warn().Str("ticker", market.Ticker).Msg(result.SanityWarning)
		}
	}
	return result, nil
}

// value runs steps 2 to 6 for a validated base and assumptions. All money is
// in millions until perShare.
func value(base models.Amount, a models.DCFAssumptions, market models.MarketContext) (*models.DCFResult, error) {
	r := a.DiscountRate
	g := a.TerminalGrowthRate
	if !(r > g) {
		return nil, models.Errorf(models.KindInvalidAssumptions, "calculate dcf",
			"discount rate %v must exceed terminal growth rate %v", r, g)
	}

	result := &models.DCFResult{
		Assumptions:  a,
		BaseFCF:      base,
		ProjectedFCF: make([]models.ProjectedYear, 0, a.ProjectionYears),
	}

	stage1 := a.Stage1Horizon()
	fcf := base.In(models.ScaleMillions)
	var sumPV float64
	for t := 1; t <= a.ProjectionYears; t++ {
		growth := a.GrowthRateStage2
		if t <= stage1 {
			growth = a.GrowthRateStage1
		}
		fcf *= 1 + growth
		factor := 1 / math.Pow(1+r, float64(t))
		pv := fcf * factor
		sumPV += pv
		result.ProjectedFCF = append(result.ProjectedFCF, models.ProjectedYear{
			Year:           t,
			FCF:            models.Millions(fcf),
			GrowthRate:     growth,
			DiscountFactor: factor,
			PresentValue:   models.Millions(pv),
		})
	}

	terminal := fcf * (1 + g) / (r - g)
	pvTerminal := terminal / math.Pow(1+r, float64(a.ProjectionYears))
	if math.IsInf(terminal, 0) || math.IsNaN(terminal) {
		return nil, models.Errorf(models.KindInvalidAssumptions, "calculate dcf", "terminal value is not finite")
	}

	ev := sumPV + pvTerminal
	netDebt := 0.0
	if market.NetDebt != nil {
		netDebt = market.NetDebt.In(models.ScaleMillions)
	}
	equity := models.Millions(ev - netDebt)

	result.TerminalValue = models.Millions(terminal)
	result.PVTerminalValue = models.Millions(pvTerminal)
	result.EnterpriseValue = models.Millions(ev)
	result.NetDebt = models.Millions(netDebt)
	result.EquityValue = equity

	perShareValue, err := perShare(equity, market.SharesOutstanding)
	if err != nil {
		return nil, err
	}
	result.FairValuePerShare = perShareValue
	result.CurrentPrice = market.CurrentPrice
	if market.CurrentPrice > 0 {
		upside := (perShareValue/market.CurrentPrice - 1) * 100
		result.UpsidePct = &upside
		result.SanityWarning = sanityCheck(perShareValue, market.CurrentPrice)
	}
	return result, nil
}

// perShare divides equity by a raw share count after converting equity to
// base currency units. This is the only place scales meet.
func perShare(equity models.Amount, shares float64) (float64, error) {
	if shares <= 0 || math.IsNaN(shares) {
		return 0, models.Errorf(models.KindInsufficientData, "fair value per share",
			"shares outstanding is required, got %v", shares)
	}
	return equity.In(models.ScaleUnits) / shares, nil
}

// sanityCheck flags fair values far outside the market price.
func sanityCheck(fairValue, price float64) string {
	ratio := fairValue / price
	if ratio < MinSaneRatio || ratio > MaxSaneRatio {
		return fmt.Sprintf("fair value %.4f is %.4gx the market price %.4f; check share count and FCF units", fairValue, ratio, price)
	}
	return ""
}
