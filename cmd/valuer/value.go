package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/export"
	"github.com/ternarybob/valuer/internal/services/valuation"
)

var valueCmd = &cobra.Command{
	Use:   "value <TICKER>",
	Short: "Run a DCF valuation for a ticker",
	Long:  `Fetches the ticker, computes FCFF, FCFE and levered FCF, and discounts the selected series to a fair value per share. Flags override the [valuation.assumptions] defaults.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValue,
}

var (
	valueFCFType     string
	valueDiscount    float64
	valueTerminal    float64
	valueStage1      float64
	valueStage2      float64
	valueYears       int
	valueStage1Years int
	valueSensitivity bool
	valueExport      string
	valueJSON        bool
	valueRefresh     bool
)

func init() {
	f := valueCmd.Flags()
	f.StringVar(&valueFCFType, "fcf-type", "", "FCF measure: FCFF, FCFE or LFCF")
	f.Float64Var(&valueDiscount, "discount-rate", 0, "Discount rate, e.g. 0.1")
	f.Float64Var(&valueTerminal, "terminal-growth", 0, "Terminal growth rate")
	f.Float64Var(&valueStage1, "growth-stage1", 0, "Stage-1 growth rate")
	f.Float64Var(&valueStage2, "growth-stage2", 0, "Stage-2 growth rate")
	f.IntVar(&valueYears, "years", 0, "Projection years")
	f.IntVar(&valueStage1Years, "stage1-years", 0, "Years of stage-1 growth (default half the projection)")
	f.BoolVar(&valueSensitivity, "sensitivity", false, "Add a discount rate x growth rate sensitivity grid")
	f.StringVar(&valueExport, "export", "", "Write the sectioned CSV export to this file")
	f.BoolVar(&valueJSON, "json", false, "Print the full report as JSON")
	f.BoolVar(&valueRefresh, "refresh", false, "Bypass fresh cache entries")
}

func runValue(cmd *cobra.Command, args []string) error {
	req, err := valuationRequest(cmd, args[0])
	if err != nil {
		return err
	}

	application, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := application.Pipeline.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	if valueExport != "" {
		if err := writeExport(valueExport, report); err != nil {
			return err
		}
		logger.Info().Str("file", valueExport).Msg("CSV export written")
	}

	out := cmd.OutOrStdout()
	if valueJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report)
}

// valuationRequest layers changed flags over the configured defaults.
func valuationRequest(cmd *cobra.Command, ticker string) (valuation.Request, error) {
	defaults := config.Valuation
	a := defaults.Assumptions
	f := cmd.Flags()
	if f.Changed("discount-rate") {
		a.DiscountRate = valueDiscount
	}
	if f.Changed("terminal-growth") {
		a.TerminalGrowthRate = valueTerminal
	}
	if f.Changed("growth-stage1") {
		a.GrowthRateStage1 = valueStage1
	}
	if f.Changed("growth-stage2") {
		a.GrowthRateStage2 = valueStage2
	}
	if f.Changed("years") {
		a.ProjectionYears = valueYears
	}
	if f.Changed("stage1-years") {
		a.Stage1Years = valueStage1Years
	}

	kind := models.FCFKind(strings.ToUpper(valueFCFType))
	if kind == "" {
		kind = models.FCFKind(defaults.FCFType)
	}
	if _, ok := (models.FCFSet{}).Get(kind); !ok {
		return valuation.Request{}, fmt.Errorf("unknown --fcf-type %q (want FCFF, FCFE or LFCF)", valueFCFType)
	}

	req := valuation.Request{
		Ticker:       ticker,
		FCFKind:      kind,
		Assumptions:  a,
		ForceRefresh: valueRefresh,
	}
	if valueSensitivity {
		req.DiscountRates = defaults.SensitivityRates
		req.GrowthRates = defaults.SensitivityGrowth
	}
	return req, nil
}

func writeExport(path string, report *valuation.Report) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := export.WriteCSV(file, export.FromValuation(report)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func printReport(out io.Writer, report *valuation.Report) error {
	res := report.Result
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Ticker\t%s\n", report.Ticker)
	if report.CompanyName != "" {
		fmt.Fprintf(tw, "Company\t%s\n", report.CompanyName)
	}
	source := report.SourceUsed
	if report.Degraded {
		source += " (degraded)"
	}
	fmt.Fprintf(tw, "Source\t%s\n", source)
	fmt.Fprintf(tw, "Data quality\t%.2f %s\n", report.Quality.OverallScore, report.Quality.CompletenessBucket)
	fmt.Fprintf(tw, "FCF type\t%s\n", res.FCFKind)
	fmt.Fprintf(tw, "Base FCF\t%.2fm%s\n", res.BaseFCF.In(models.ScaleMillions), defaultedMark(res.BaseFCFDefaulted))
	fmt.Fprintf(tw, "Enterprise value\t%.2fm\n", res.EnterpriseValue.In(models.ScaleMillions))
	fmt.Fprintf(tw, "Net debt\t%.2fm (%s)\n", res.NetDebt.In(models.ScaleMillions), report.Market.NetDebtMethod)
	fmt.Fprintf(tw, "Equity value\t%.2fm\n", res.EquityValue.In(models.ScaleMillions))
	fmt.Fprintf(tw, "Fair value / share\t%.2f %s\n", res.FairValuePerShare, report.Currency)
	if res.CurrentPrice > 0 {
		fmt.Fprintf(tw, "Market price\t%.2f\n", res.CurrentPrice)
	}
	if res.UpsidePct != nil {
		fmt.Fprintf(tw, "Upside\t%+.1f%%\n", *res.UpsidePct)
	}
	if res.SanityWarning != "" {
		fmt.Fprintf(tw, "Warning\t%s\n", res.SanityWarning)
	}

	if m := res.SensitivityMatrix; m != nil {
		fmt.Fprintln(tw)
		fmt.Fprint(tw, "r \\ g")
		for _, g := range m.GrowthRates {
			fmt.Fprintf(tw, "\t%.1f%%", g*100)
		}
		fmt.Fprintln(tw)
		for i, r := range m.DiscountRates {
			fmt.Fprintf(tw, "%.1f%%", r*100)
			for _, c := range m.Cells[i] {
				if c.Valid {
					fmt.Fprintf(tw, "\t%.2f", c.FairValue)
				} else {
					fmt.Fprint(tw, "\tn/a")
				}
			}
			fmt.Fprintln(tw)
		}
	}
	return tw.Flush()
}

func defaultedMark(defaulted bool) string {
	if defaulted {
		return " (configured default)"
	}
	return ""
}
