package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/services/calculator"
	"github.com/ternarybob/valuer/internal/services/valuation"
)

// dataFetcher is the adapter surface the tools use
type dataFetcher interface {
	FetchData(ctx context.Context, req models.FinancialDataRequest) *models.FinancialDataResponse
}

type usageReporter interface {
	GetUsageReport() interfaces.UsageReport
}

type valuator interface {
	Run(ctx context.Context, req valuation.Request) (*valuation.Report, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	result := textResult(fmt.Sprintf(format, args...))
	result.IsError = true
	return result
}

// handleFetchFinancials implements the fetch_financials tool
func handleFetchFinancials(fetcher dataFetcher, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		resp := fetcher.FetchData(ctx, models.NewRequest(ticker, request.GetBool("refresh", false)))
		if !resp.Success {
			logger.Warn().Str("ticker", ticker).Str("kind", string(resp.Error)).Msg("Fetch failed")
			return errorResult("Fetch failed (%s): %s", resp.Error, resp.ErrorMessage), nil
		}
		return textResult(formatFinancials(resp)), nil
	}
}

// handleCalculateFCF implements the calculate_fcf tool
func handleCalculateFCF(fetcher dataFetcher, calc *calculator.Service, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		resp := fetcher.FetchData(ctx, models.NewRequest(ticker, false, models.DataTypeStatements))
		if !resp.Success {
			return errorResult("Fetch failed (%s): %s", resp.Error, resp.ErrorMessage), nil
		}

		set, err := calc.CalculateAllFCFTypes(resp.History)
		if err != nil {
			logger.Warn().Err(err).Str("ticker", ticker).Msg("FCF calculation failed")
			return errorResult("FCF calculation failed: %v", err), nil
		}
		return textResult(formatFCF(strings.ToUpper(ticker), resp.SourceUsed, set)), nil
	}
}

// handleCalculateDCF implements the calculate_dcf tool
func handleCalculateDCF(v valuator, defaults common.ValuationConfig, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ticker, err := request.RequireString("ticker")
		if err != nil || strings.TrimSpace(ticker) == "" {
			return errorResult("Error: ticker parameter is required"), nil
		}

		a := defaults.Assumptions
		a.DiscountRate = request.GetFloat("discount_rate", a.DiscountRate)
		a.TerminalGrowthRate = request.GetFloat("terminal_growth_rate", a.TerminalGrowthRate)
		a.GrowthRateStage1 = request.GetFloat("growth_rate_stage1", a.GrowthRateStage1)
		a.GrowthRateStage2 = request.GetFloat("growth_rate_stage2", a.GrowthRateStage2)
		a.ProjectionYears = request.GetInt("projection_years", a.ProjectionYears)

		req := valuation.Request{
			Ticker:      ticker,
			FCFKind:     models.FCFKind(strings.ToUpper(request.GetString("fcf_type", defaults.FCFType))),
			Assumptions: a,
		}
		if _, ok := (models.FCFSet{}).Get(req.FCFKind); !ok {
			return errorResult("Error: unknown fcf_type %q", req.FCFKind), nil
		}
		if request.GetBool("sensitivity", false) {
			req.DiscountRates = defaults.SensitivityRates
			req.GrowthRates = defaults.SensitivityGrowth
		}

		report, err := v.Run(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Str("ticker", ticker).Msg("Valuation failed")
			return errorResult("Valuation failed (%s): %v", models.KindOf(err), err), nil
		}
		return textResult(formatValuation(report)), nil
	}
}

// handleUsageReport implements the usage_report tool
func handleUsageReport(reporter usageReporter) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(formatUsage(reporter.GetUsageReport())), nil
	}
}
