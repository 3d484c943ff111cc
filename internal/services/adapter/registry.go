package adapter

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
	"github.com/ternarybob/valuer/internal/providers/alphavantage"
	"github.com/ternarybob/valuer/internal/providers/eodhd"
	"github.com/ternarybob/valuer/internal/providers/finviz"
	"github.com/ternarybob/valuer/internal/providers/fmp"
	"github.com/ternarybob/valuer/internal/providers/yahoo"
)

// Factory builds a provider from its configuration.
type Factory func(cfg models.ProviderConfig, httpClient *http.Client, logger arbor.ILogger) interfaces.DataProvider

// DefaultFactories returns a factory for every built-in provider, keyed by id.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		eodhd.ProviderID: func(cfg models.ProviderConfig, hc *http.Client, logger arbor.ILogger) interfaces.DataProvider {
			client := eodhd.NewClient(cfg.APIKey(), eodhd.WithBaseURL(cfg.BaseURL), eodhd.WithHTTPClient(hc), eodhd.WithLogger(logger))
			return eodhd.NewProvider(client, logger)
		},
		alphavantage.ProviderID: func(cfg models.ProviderConfig, hc *http.Client, logger arbor.ILogger) interfaces.DataProvider {
			client := alphavantage.NewClient(cfg.APIKey(), alphavantage.WithBaseURL(cfg.BaseURL), alphavantage.WithHTTPClient(hc), alphavantage.WithLogger(logger))
			return alphavantage.NewProvider(client, logger)
		},
		fmp.ProviderID: func(cfg models.ProviderConfig, hc *http.Client, logger arbor.ILogger) interfaces.DataProvider {
			client := fmp.NewClient(cfg.APIKey(), fmp.WithBaseURL(cfg.BaseURL), fmp.WithHTTPClient(hc), fmp.WithLogger(logger))
			return fmp.NewProvider(client, logger)
		},
		yahoo.ProviderID: func(cfg models.ProviderConfig, hc *http.Client, logger arbor.ILogger) interfaces.DataProvider {
			client := yahoo.NewClient(yahoo.WithBaseURL(cfg.BaseURL), yahoo.WithHTTPClient(hc), yahoo.WithLogger(logger))
			return yahoo.NewProvider(client, logger)
		},
		finviz.ProviderID: func(cfg models.ProviderConfig, hc *http.Client, logger arbor.ILogger) interfaces.DataProvider {
			client := finviz.NewClient(finviz.WithBaseURL(cfg.BaseURL), finviz.WithHTTPClient(hc), finviz.WithLogger(logger))
			return finviz.NewProvider(client, logger)
		},
	}
}

// ProviderConfigs converts the enabled [providers.<id>] tables into adapter
// configs in priority order, resolving each API key from the environment, the
// KV store or the file. A missing key is left empty; ConfigureSource drops
// providers that need one.
func ProviderConfigs(ctx context.Context, cfg *common.Config, kv interfaces.KeyValueStorage, logger arbor.ILogger) ([]models.ProviderConfig, error) {
	var configs []models.ProviderConfig
	for _, id := range cfg.ProviderIDs() {
		settings := cfg.Providers[id]

		apiKey, err := common.ResolveAPIKey(ctx, kv, id, settings.APIKey)
		if err != nil {
			logger.Debug().Str("provider", id).Msg("No API key configured")
			apiKey = ""
		}

		pc, err := settings.ProviderConfig(id, apiKey)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", id, err)
		}
		configs = append(configs, pc)
	}
	return configs, nil
}
