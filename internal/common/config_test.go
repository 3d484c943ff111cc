package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/valuer/internal/interfaces"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valuer.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.Adapter.AcceptanceThreshold)
	assert.Equal(t, 0.25, cfg.Valuation.DefaultTaxRate)
	assert.Equal(t, 0.35, cfg.Valuation.MaxTaxRate)
	assert.Nil(t, cfg.Valuation.DefaultBaseFCF)
	assert.Equal(t, "financing_flows", cfg.Valuation.NetDebtMethod)
	assert.Equal(t, []string{"eodhd", "fmp", "alphavantage", "yahoo", "finviz"}, cfg.ProviderIDs())
}

func TestLoadFromFiles_ShippedExample(t *testing.T) {
	cfg, err := LoadFromFiles(filepath.Join("..", "..", "valuer.toml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig().Valuation.Assumptions, cfg.Valuation.Assumptions)
	assert.Equal(t, []string{"eodhd", "fmp", "alphavantage", "yahoo", "finviz"}, cfg.ProviderIDs())
	assert.Equal(t, []string{"AAPL", "MSFT", "ASX:BHP"}, cfg.Warmer.Tickers)
	assert.False(t, cfg.Warmer.Enabled)
	assert.Equal(t, "financing_flows", cfg.Valuation.NetDebtMethod)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfig(t, `
[server]
port = 9000

[adapter]
acceptance_threshold = 0.6

[valuation]
default_base_fcf = 250.0
net_debt_method = "balance_sheet"
`)
	override := writeConfig(t, `
[server]
port = 9100

[providers.custom]
enabled = true
priority = 0
max_calls = 10
window = "30s"
cache_ttl = "2h"
cost_per_call = "0.0025"
`)

	cfg, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Adapter.AcceptanceThreshold)
	require.NotNil(t, cfg.Valuation.DefaultBaseFCF)
	assert.Equal(t, 250.0, *cfg.Valuation.DefaultBaseFCF)
	assert.Equal(t, "balance_sheet", cfg.Valuation.NetDebtMethod)
	assert.Equal(t, "custom", cfg.ProviderIDs()[0])

	pc, err := cfg.Providers["custom"].ProviderConfig("custom", "k")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, pc.Window)
	assert.Equal(t, 2*time.Hour, pc.CacheTTL)
	require.NotNil(t, pc.CostPerCall)
	assert.Equal(t, "0.0025", pc.CostPerCall.String())
	assert.Equal(t, "k", pc.Credentials["api_key"])
	assert.Nil(t, pc.MonthlyQuota)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000
`)
	t.Setenv("VALUER_SERVER_PORT", "9200")
	t.Setenv("VALUER_LOG_OUTPUT", "stdout, file")
	t.Setenv("VALUER_FINVIZ_DISABLED", "true")
	t.Setenv("VALUER_NET_DEBT_METHOD", "balance_sheet")

	cfg, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, []string{"stdout", "file"}, cfg.Logging.Output)
	assert.NotContains(t, cfg.ProviderIDs(), "finviz")
	assert.Equal(t, "balance_sheet", cfg.Valuation.NetDebtMethod)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"parse error", "[server\nport = 1"},
		{"threshold out of range", "[adapter]\nacceptance_threshold = 1.5"},
		{"bad duration", "[providers.eodhd]\nenabled = true\nwindow = \"soon\""},
		{"bad cost", "[providers.eodhd]\nenabled = true\ncost_per_call = \"cheap\""},
		{"discount below terminal growth", "[valuation.assumptions]\ndiscount_rate = 0.02\nterminal_growth_rate = 0.03"},
		{"unknown net debt method", "[valuation]\nnet_debt_method = \"market\""},
		{"bad schedule", "[warmer]\nenabled = true\nschedule = \"every day\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFiles(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := NewDefaultConfig()
	ApplyFlagOverrides(cfg, 0, "")
	assert.Equal(t, 8086, cfg.Server.Port)

	ApplyFlagOverrides(cfg, 7000, "0.0.0.0")
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

type mapKV map[string]string

func (m mapKV) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}

func (m mapKV) Set(ctx context.Context, key, value, description string) error {
	m[key] = value
	return nil
}

func (m mapKV) Delete(ctx context.Context, key string) error {
	delete(m, key)
	return nil
}

func (m mapKV) ListByPrefix(ctx context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	return nil, nil
}

func TestResolveAPIKey_Precedence(t *testing.T) {
	ctx := context.Background()
	kv := mapKV{"fmp_api_key": "from-kv"}

	key, err := ResolveAPIKey(ctx, kv, "fmp", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-kv", key)

	t.Setenv("FMP_API_KEY", "from-plain-env")
	key, err = ResolveAPIKey(ctx, kv, "fmp", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-plain-env", key)

	t.Setenv("VALUER_FMP_API_KEY", "from-env")
	key, err = ResolveAPIKey(ctx, kv, "fmp", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	key, err = ResolveAPIKey(ctx, nil, "eodhd", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	_, err = ResolveAPIKey(ctx, mapKV{}, "alphavantage", "")
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseDuration("90s", 0)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("-1s", 0)
	assert.Error(t, err)
}
