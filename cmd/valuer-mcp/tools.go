package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createFetchFinancialsTool returns the fetch_financials tool definition
func createFetchFinancialsTool() mcp.Tool {
	return mcp.NewTool("fetch_financials",
		mcp.WithDescription("Fetch normalized price, fundamentals and annual statements for a ticker, falling back across data providers"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol, optionally exchange-qualified (AAPL, ASX:BHP)"),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass fresh cache entries (default: false)"),
		),
	)
}

// createCalculateFCFTool returns the calculate_fcf tool definition
func createCalculateFCFTool() mcp.Tool {
	return mcp.NewTool("calculate_fcf",
		mcp.WithDescription("Compute FCFF, FCFE and levered FCF series (in millions) with year-over-year growth for a ticker"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol"),
		),
	)
}

// createCalculateDCFTool returns the calculate_dcf tool definition
func createCalculateDCFTool() mcp.Tool {
	return mcp.NewTool("calculate_dcf",
		mcp.WithDescription("Run a two-stage DCF valuation and return enterprise value and fair value per share. Omitted assumptions use configured defaults"),
		mcp.WithString("ticker",
			mcp.Required(),
			mcp.Description("Ticker symbol"),
		),
		mcp.WithString("fcf_type",
			mcp.Description("FCFF, FCFE or LFCF"),
			mcp.Enum("FCFF", "FCFE", "LFCF"),
		),
		mcp.WithNumber("discount_rate",
			mcp.Description("Discount rate as a decimal, e.g. 0.1"),
		),
		mcp.WithNumber("terminal_growth_rate",
			mcp.Description("Terminal growth rate as a decimal; must be below the discount rate"),
		),
		mcp.WithNumber("growth_rate_stage1",
			mcp.Description("Stage-1 growth rate as a decimal"),
		),
		mcp.WithNumber("growth_rate_stage2",
			mcp.Description("Stage-2 growth rate as a decimal"),
		),
		mcp.WithNumber("projection_years",
			mcp.Description("Projection horizon in years"),
		),
		mcp.WithBoolean("sensitivity",
			mcp.Description("Include a discount rate x growth rate sensitivity grid"),
		),
	)
}

// createUsageReportTool returns the usage_report tool definition
func createUsageReportTool() mcp.Tool {
	return mcp.NewTool("usage_report",
		mcp.WithDescription("Report API calls, rate-limit refusals, cache hits and cost per data provider this month"),
	)
}
