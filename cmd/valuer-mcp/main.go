package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ternarybob/valuer/internal/app"
	"github.com/ternarybob/valuer/internal/common"
)

func main() {
	common.InstallCrashHandler("")
	defer common.RecoverWithCrashFile()
	common.LoadVersionFromFile()

	configPath := os.Getenv("VALUER_CONFIG")
	if configPath == "" {
		configPath = "valuer.toml"
	}
	var paths []string
	if _, err := os.Stat(configPath); err == nil {
		paths = append(paths, configPath)
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	config.Logging.Level = "warn"
	logger := common.InitLogger(config)

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := newMCPServer(application)

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

// newMCPServer registers the valuation tools against application.
func newMCPServer(application *app.App) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"valuer",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	defaults := application.Config.Valuation
	mcpServer.AddTool(createFetchFinancialsTool(), handleFetchFinancials(application.Adapter, application.Logger))
	mcpServer.AddTool(createCalculateFCFTool(), handleCalculateFCF(application.Adapter, application.Calculator, application.Logger))
	mcpServer.AddTool(createCalculateDCFTool(), handleCalculateDCF(application.Pipeline, defaults, application.Logger))
	mcpServer.AddTool(createUsageReportTool(), handleUsageReport(application.Adapter))
	return mcpServer
}
