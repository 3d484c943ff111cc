package models

import (
	"github.com/go-playground/validator/v10"
)

// TerminalMethod selects how terminal value is computed.
type TerminalMethod string

const (
	TerminalGordon TerminalMethod = "gordon_growth"
)

// DCFAssumptions are the valuation inputs. DiscountRate must exceed
// TerminalGrowthRate.
type DCFAssumptions struct {
	DiscountRate       float64        `json:"discount_rate" toml:"discount_rate" validate:"gt=0,lt=1"`
	TerminalGrowthRate float64        `json:"terminal_growth_rate" toml:"terminal_growth_rate" validate:"gt=-1,lt=1,ltfield=DiscountRate"`
	GrowthRateStage1   float64        `json:"growth_rate_stage1" toml:"growth_rate_stage1" validate:"gt=-1"`
	GrowthRateStage2   float64        `json:"growth_rate_stage2" toml:"growth_rate_stage2" validate:"gt=-1"`
	ProjectionYears    int            `json:"projection_years" toml:"projection_years" validate:"gte=1,lte=30"`
	Stage1Years        int            `json:"stage1_years,omitempty" toml:"stage1_years" validate:"gte=0,ltefield=ProjectionYears"`
	TerminalMethod     TerminalMethod `json:"terminal_method" toml:"terminal_method" validate:"omitempty,oneof=gordon_growth"`
}

// DefaultAssumptions returns a conservative starting point.
func DefaultAssumptions() DCFAssumptions {
	return DCFAssumptions{
		DiscountRate:       0.10,
		TerminalGrowthRate: 0.025,
		GrowthRateStage1:   0.05,
		GrowthRateStage2:   0.03,
		ProjectionYears:    10,
		TerminalMethod:     TerminalGordon,
	}
}

// Stage1Horizon returns the number of years that use stage-1 growth,
// defaulting to half the projection horizon.
func (a DCFAssumptions) Stage1Horizon() int {
	if a.Stage1Years > 0 {
		if a.Stage1Years > a.ProjectionYears {
			return a.ProjectionYears
		}
		return a.Stage1Years
	}
	return a.ProjectionYears / 2
}

var assumptionValidator = validator.New()

// Validate returns an INVALID_ASSUMPTIONS error when any input is out of range.
// A discount rate at or below terminal growth is always rejected.
func (a DCFAssumptions) Validate() error {
	if !(a.DiscountRate > a.TerminalGrowthRate) {
		return Errorf(KindInvalidAssumptions, "validate assumptions",
			"discount rate %v must exceed terminal growth rate %v", a.DiscountRate, a.TerminalGrowthRate)
	}
	if err := assumptionValidator.Struct(a); err != nil {
		return NewError(KindInvalidAssumptions, "validate assumptions", err)
	}
	return nil
}

// MarketContext carries the company facts needed to go from enterprise value
// to a per-share figure.
type MarketContext struct {
	Ticker            string  `json:"ticker"`
	CompanyName       string  `json:"company_name,omitempty"`
	SharesOutstanding float64 `json:"shares_outstanding"` // raw share count
	CurrentPrice      float64 `json:"current_price"`      // per share, currency units
	NetDebt           *Amount `json:"net_debt,omitempty"`
	NetDebtMethod     string  `json:"net_debt_method,omitempty"`
}

// ProjectedYear is one row of the explicit projection.
type ProjectedYear struct {
	Year           int     `json:"year"`
	FCF            Amount  `json:"fcf"`
	GrowthRate     float64 `json:"growth_rate"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   Amount  `json:"present_value"`
}

// SensitivityCell is one grid point of a sensitivity analysis.
type SensitivityCell struct {
	DiscountRate float64   `json:"discount_rate"`
	GrowthRate   float64   `json:"growth_rate"`
	FairValue    float64   `json:"fair_value"`
	Valid        bool      `json:"valid"`
	Error        ErrorKind `json:"error,omitempty"`
}

// SensitivityMatrix is indexed [discount rate][growth rate].
type SensitivityMatrix struct {
	DiscountRates []float64           `json:"discount_rates"`
	GrowthRates   []float64           `json:"growth_rates"`
	Cells         [][]SensitivityCell `json:"cells"`
}

// DCFResult is the immutable output of one valuation.
type DCFResult struct {
	FCFKind           FCFKind            `json:"fcf_kind"`
	Assumptions       DCFAssumptions     `json:"assumptions"`
	BaseFCF           Amount             `json:"base_fcf"`
	BaseFCFDefaulted  bool               `json:"base_fcf_defaulted"`
	ProjectedFCF      []ProjectedYear    `json:"projected_fcf"`
	TerminalValue     Amount             `json:"terminal_value"`
	PVTerminalValue   Amount             `json:"pv_terminal_value"`
	EnterpriseValue   Amount             `json:"enterprise_value"`
	NetDebt           Amount             `json:"net_debt"`
	EquityValue       Amount             `json:"equity_value"`
	FairValuePerShare float64            `json:"fair_value_per_share"`
	CurrentPrice      float64            `json:"current_price,omitempty"`
	UpsidePct         *float64           `json:"upside_pct,omitempty"`
	SanityWarning     string             `json:"sanity_warning,omitempty"`
	SensitivityMatrix *SensitivityMatrix `json:"sensitivity_matrix,omitempty"`
}
