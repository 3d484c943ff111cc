package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/calculator"
	"github.com/ternarybob/valuer/internal/services/valuation"
)

// formatFinancials formats an adapter response as markdown
func formatFinancials(resp *models.FinancialDataResponse) string {
	var sb strings.Builder
	rec := resp.Record
	sb.WriteString(fmt.Sprintf("## %s", rec.Ticker))
	if rec.CompanyName != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", rec.CompanyName))
	}
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("**Source:** %s", resp.SourceUsed))
	if resp.FromCache {
		sb.WriteString(" (cache)")
	}
	if resp.Degraded {
		sb.WriteString(" (degraded)")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("**Quality:** %.2f %s\n", resp.Quality.OverallScore, resp.Quality.CompletenessBucket))
	if len(resp.Quality.MissingFields) > 0 {
		missing := make([]string, len(resp.Quality.MissingFields))
		for i, f := range resp.Quality.MissingFields {
			missing[i] = string(f)
		}
		sb.WriteString(fmt.Sprintf("**Missing:** %s\n", strings.Join(missing, ", ")))
	}
	sb.WriteString("\n| Field | Value |\n|---|---|\n")
	for _, f := range rec.PresentFields() {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", f, formatValue(f, rec.Values[f])))
	}
	sb.WriteString(fmt.Sprintf("\n%d annual periods of history.\n", len(resp.History)))
	return sb.String()
}

func formatValue(f models.Field, v float64) string {
	if f.IsMonetary() {
		return fmt.Sprintf("%.2fm", models.Units(v).In(models.ScaleMillions))
	}
	return fmt.Sprintf("%.2f", v)
}

// formatFCF formats the three FCF series as markdown
func formatFCF(ticker, source string, set models.FCFSet) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Free cash flow for %s (source: %s, millions)\n\n", ticker, source))
	for _, series := range []models.FCFSeries{set.FCFF, set.FCFE, set.LFCF} {
		sb.WriteString(fmt.Sprintf("### %s\n", series.Kind))
		if series.Len() == 0 {
			sb.WriteString("Not enough data.\n\n")
			continue
		}
		for _, p := range series.Values {
			sb.WriteString(fmt.Sprintf("- %d: %.2f\n", p.Period.Year(), p.Amount.In(models.ScaleMillions)))
		}
		for _, g := range calculator.GrowthRates(series) {
			if g.Rate == nil {
				sb.WriteString(fmt.Sprintf("- growth %s: n/a\n", g.Label))
				continue
			}
			sb.WriteString(fmt.Sprintf("- growth %s: %.1f%%\n", g.Label, *g.Rate*100))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatValuation formats a valuation report as markdown
func formatValuation(report *valuation.Report) string {
	res := report.Result
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## DCF valuation: %s\n\n", report.Ticker))
	sb.WriteString(fmt.Sprintf("**FCF type:** %s  \n", res.FCFKind))
	sb.WriteString(fmt.Sprintf("**Base FCF:** %.2fm\n", res.BaseFCF.In(models.ScaleMillions)))
	sb.WriteString(fmt.Sprintf("**Enterprise value:** %.2fm\n", res.EnterpriseValue.In(models.ScaleMillions)))
	sb.WriteString(fmt.Sprintf("**Net debt:** %.2fm (%s)\n", res.NetDebt.In(models.ScaleMillions), report.Market.NetDebtMethod))
	sb.WriteString(fmt.Sprintf("**Equity value:** %.2fm\n", res.EquityValue.In(models.ScaleMillions)))
	sb.WriteString(fmt.Sprintf("**Fair value per share:** %.2f\n", res.FairValuePerShare))
	if res.UpsidePct != nil {
		sb.WriteString(fmt.Sprintf("**Market price:** %.2f (upside %+.1f%%)\n", res.CurrentPrice, *res.UpsidePct))
	}
	if res.SanityWarning != "" {
		sb.WriteString(fmt.Sprintf("\n> Warning: %s\n", res.SanityWarning))
	}

	sb.WriteString("\n| Year | FCF (m) | Growth | PV (m) |\n|---|---|---|---|\n")
	for _, y := range res.ProjectedFCF {
		sb.WriteString(fmt.Sprintf("| %d | %.2f | %.1f%% | %.2f |\n",
			y.Year, y.FCF.In(models.ScaleMillions), y.GrowthRate*100, y.PresentValue.In(models.ScaleMillions)))
	}

	if m := res.SensitivityMatrix; m != nil {
		sb.WriteString("\n### Sensitivity (fair value per share)\n\n| r \\ g |")
		for _, g := range m.GrowthRates {
			sb.WriteString(fmt.Sprintf(" %.1f%% |", g*100))
		}
		sb.WriteString("\n|---|" + strings.Repeat("---|", len(m.GrowthRates)) + "\n")
		for i, r := range m.DiscountRates {
			sb.WriteString(fmt.Sprintf("| %.1f%% |", r*100))
			for _, c := range m.Cells[i] {
				if c.Valid {
					sb.WriteString(fmt.Sprintf(" %.2f |", c.FairValue))
				} else {
					sb.WriteString(" n/a |")
				}
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// formatUsage formats the usage report as markdown
func formatUsage(report interfaces.UsageReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Provider usage for %s\n\n", report.Month))
	sb.WriteString("| Provider | Calls | OK | Failed | Rate limited | Cache hits | Month | Window left | Cost |\n|---|---|---|---|---|---|---|---|---|\n")
	for _, p := range report.Providers {
		month := fmt.Sprintf("%d", p.MonthCalls)
		if p.MonthlyQuota != nil {
			month = fmt.Sprintf("%d/%d", p.MonthCalls, *p.MonthlyQuota)
		}
		window := "unlimited"
		if p.WindowRemaining != nil {
			window = fmt.Sprintf("%d", *p.WindowRemaining)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %s | %s | %s |\n",
			p.Provider, p.Calls, p.Successes, p.Failures, p.RateLimited, p.CacheHits, month, window, p.TotalCost.StringFixed(4)))
	}
	sb.WriteString(fmt.Sprintf("\n**Total:** %d calls, cost %s\n", report.TotalCalls, report.TotalCost.StringFixed(4)))
	return sb.String()
}
