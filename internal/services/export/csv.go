// Package export writes valuation results in the sectioned CSV layout used
// for relational import, one target table per section.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/valuation"
)

// DateLayout is the timestamp format of every date column.
const DateLayout = "2006-01-02 15:04:05"

// Section headers, in output order.
const (
	SectionMetadata    = "# ANALYSIS METADATA"
	SectionSummary     = "# KEY RESULTS SUMMARY"
	SectionAssumptions = "# ASSUMPTIONS"
	SectionGrowth      = "# HISTORICAL GROWTH RATES"
	SectionProjections = "# YEAR-BY-YEAR PROJECTIONS"
)

// Units used in the value/unit sections.
const (
	UnitMillions = "millions"
	UnitPerShare = "per_share"
	UnitDecimal  = "decimal"
	UnitPercent  = "percent"
	UnitYears    = "years"
)

var (
	metadataHeader   = []string{"analysis_date", "ticker_symbol", "company_name", "fcf_type_used", "calculated_enterprise_value", "calculated_fair_value_per_share", "current_market_price", "assumptions"}
	summaryHeader    = []string{"metric", "value", "unit"}
	assumptionHeader = []string{"assumption_type", "value", "unit"}
	growthHeader     = []string{"period", "growth_rate", "unit"}
	projectionHeader = []string{"analysis_date", "ticker_symbol", "company_name", "fcf_type", "Year", "Projected FCF", "Growth Rate", "Present Value", "Discount_Factor"}
)

// Row is a metric, value and unit triple.
type Row struct {
	Name  string
	Value string
	Unit  string
}

// Report is the flattened content of one export.
type Report struct {
	AnalysisDate    time.Time
	Ticker          string
	CompanyName     string
	FCFKind         models.FCFKind
	EnterpriseValue float64
	FairValue       float64
	CurrentPrice    float64
	Summary         []Row
	Assumptions     []Row
	Growth          []Row
	Projections     []models.ProjectedYear
}

// FromValuation flattens a valuation report. Money is in millions.
func FromValuation(r *valuation.Report) Report {
	res := r.Result
	a := res.Assumptions

	out := Report{
		AnalysisDate:    r.AnalysisDate,
		Ticker:          r.Ticker,
		CompanyName:     r.CompanyName,
		FCFKind:         res.FCFKind,
		EnterpriseValue: res.EnterpriseValue.In(models.ScaleMillions),
		FairValue:       res.FairValuePerShare,
		CurrentPrice:    res.CurrentPrice,
		Projections:     res.ProjectedFCF,
	}

	out.Summary = []Row{
		{"base_fcf", num(res.BaseFCF.In(models.ScaleMillions)), UnitMillions},
		{"enterprise_value", num(res.EnterpriseValue.In(models.ScaleMillions)), UnitMillions},
		{"terminal_value", num(res.TerminalValue.In(models.ScaleMillions)), UnitMillions},
		{"pv_terminal_value", num(res.PVTerminalValue.In(models.ScaleMillions)), UnitMillions},
		{"net_debt", num(res.NetDebt.In(models.ScaleMillions)), UnitMillions},
		{"equity_value", num(res.EquityValue.In(models.ScaleMillions)), UnitMillions},
		{"fair_value_per_share", num(res.FairValuePerShare), UnitPerShare},
		{"current_market_price", num(res.CurrentPrice), UnitPerShare},
	}
	if res.UpsidePct != nil {
		out.Summary = append(out.Summary, Row{"upside", num(*res.UpsidePct), UnitPercent})
	}

	out.Assumptions = []Row{
		{"discount_rate", num(a.DiscountRate), UnitDecimal},
		{"terminal_growth_rate", num(a.TerminalGrowthRate), UnitDecimal},
		{"growth_rate_stage1", num(a.GrowthRateStage1), UnitDecimal},
		{"growth_rate_stage2", num(a.GrowthRateStage2), UnitDecimal},
		{"projection_years", strconv.Itoa(a.ProjectionYears), UnitYears},
		{"stage1_years", strconv.Itoa(a.Stage1Horizon()), UnitYears},
	}

	for _, g := range r.Growth {
		v := ""
		if g.Rate != nil {
			v = num(*g.Rate)
		}
		out.Growth = append(out.Growth, Row{g.Label, v, UnitDecimal})
	}
	return out
}

// WriteCSV writes the five sections in order.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	date := r.AnalysisDate.Format(DateLayout)
	kind := string(r.FCFKind)

	records := [][]string{
		{SectionMetadata},
		metadataHeader,
		{date, r.Ticker, r.CompanyName, kind, num(r.EnterpriseValue), num(r.FairValue), num(r.CurrentPrice), r.AssumptionsText()},
		{SectionSummary},
		summaryHeader,
	}
	records = appendRows(records, r.Summary)
	records = append(records, []string{SectionAssumptions}, assumptionHeader)
	records = appendRows(records, r.Assumptions)
	records = append(records, []string{SectionGrowth}, growthHeader)
	records = appendRows(records, r.Growth)
	records = append(records, []string{SectionProjections}, projectionHeader)
	for _, p := range r.Projections {
		records = append(records, []string{
			date, r.Ticker, r.CompanyName, kind,
			strconv.Itoa(p.Year),
			num(p.FCF.In(models.ScaleMillions)),
			num(p.GrowthRate),
			num(p.PresentValue.In(models.ScaleMillions)),
			num(p.DiscountFactor),
		})
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// AssumptionsText is the single-cell form of the assumptions used in the
// metadata row.
func (r Report) AssumptionsText() string {
	parts := make([]string, 0, len(r.Assumptions))
	for _, row := range r.Assumptions {
		parts = append(parts, row.Name+"="+row.Value)
	}
	return strings.Join(parts, ";")
}

func appendRows(records [][]string, rows []Row) [][]string {
	for _, row := range rows {
		records = append(records, []string{row.Name, row.Value, row.Unit})
	}
	return records
}

// num renders v in plain decimal notation, never exponent form.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
