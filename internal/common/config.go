package common

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string                      `toml:"environment"`
	EnvFile     string                      `toml:"env_file"` // .env file loaded into the KV store at startup
	Server      ServerConfig                `toml:"server"`
	Storage     StorageConfig               `toml:"storage"`
	Logging     LoggingConfig               `toml:"logging"`
	Adapter     AdapterConfig               `toml:"adapter"`
	Providers   map[string]ProviderSettings `toml:"providers" validate:"dive"`
	Valuation   ValuationConfig             `toml:"valuation"`
	Warmer      WarmerConfig                `toml:"warmer"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Enabled        bool   `toml:"enabled"`          // Persist cache, credentials and usage counters
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// AdapterConfig controls the provider fallback loop
type AdapterConfig struct {
	AcceptanceThreshold float64     `toml:"acceptance_threshold" validate:"gte=0,lte=1"`
	DegradedFallback    bool        `toml:"degraded_fallback"`              // Return below-threshold or stale data when nothing better exists
	MaxProviders        int         `toml:"max_providers" validate:"gte=0"` // 0 = all configured providers
	Timeout             string      `toml:"timeout"`                        // Per-call transport timeout, e.g. "30s"
	RequiredFields      []string    `toml:"required_fields"`
	Retry               RetryConfig `toml:"retry"`
}

// RetryConfig is the backoff policy for transient provider failures
type RetryConfig struct {
	MaxAttempts    int    `toml:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
}

// ProviderSettings is one [providers.<id>] table
type ProviderSettings struct {
	Enabled        bool    `toml:"enabled"`
	Priority       int     `toml:"priority" validate:"gte=0"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url" validate:"omitempty,url"`
	MaxCalls       int     `toml:"max_calls" validate:"gte=0"`
	Window         string  `toml:"window"`
	BurstPerSecond float64 `toml:"burst_per_second" validate:"gte=0"`
	MonthlyQuota   int     `toml:"monthly_quota" validate:"gte=0"` // 0 = no quota
	CostPerCall    string  `toml:"cost_per_call"`                  // Decimal string, empty = free
	CacheTTL       string  `toml:"cache_ttl"`
}

// ValuationConfig holds calculator and DCF defaults
type ValuationConfig struct {
	DefaultTaxRate    float64               `toml:"default_tax_rate" validate:"gte=0,lte=1"`
	MaxTaxRate        float64               `toml:"max_tax_rate" validate:"gte=0,lte=1"`
	DefaultBaseFCF    *float64              `toml:"default_base_fcf"` // Millions; unset = fail on empty series
	FCFType           string                `toml:"fcf_type" validate:"oneof=FCFF FCFE LFCF"`
	NetDebtMethod     string                `toml:"net_debt_method" validate:"omitempty,oneof=financing_flows balance_sheet"`
	Assumptions       models.DCFAssumptions `toml:"assumptions"`
	SensitivityRates  []float64             `toml:"sensitivity_discount_rates"`
	SensitivityGrowth []float64             `toml:"sensitivity_growth_rates"`
}

// WarmerConfig schedules background cache refreshes
type WarmerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schedule string   `toml:"schedule"`
	Tickers  []string `toml:"tickers"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		EnvFile:     ".env",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Enabled: true,
				Path:    "./data/valuer",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Adapter: AdapterConfig{
			AcceptanceThreshold: 0.5,
			DegradedFallback:    true,
			Timeout:             "30s",
			Retry: RetryConfig{
				MaxAttempts:    1,
				InitialBackoff: "500ms",
				MaxBackoff:     "5s",
			},
		},
		Providers: map[string]ProviderSettings{
			"eodhd": {
				Enabled:  true,
				Priority: 1,
				MaxCalls: 1000,
				Window:   "1m",
				CacheTTL: "24h",
			},
			"fmp": {
				Enabled:  true,
				Priority: 2,
				MaxCalls: 250,
				Window:   "24h",
				CacheTTL: "24h",
			},
			"alphavantage": {
				Enabled:      true,
				Priority:     3,
				MaxCalls:     5,
				Window:       "1m",
				MonthlyQuota: 750,
				CacheTTL:     "24h",
			},
			"yahoo": {
				Enabled:        true,
				Priority:       4,
				MaxCalls:       60,
				Window:         "1m",
				BurstPerSecond: 2,
				CacheTTL:       "6h",
			},
			"finviz": {
				Enabled:  true,
				Priority: 5,
				MaxCalls: 30,
				Window:   "1m",
				CacheTTL: "1h",
			},
		},
		Valuation: ValuationConfig{
			DefaultTaxRate:    0.25,
			MaxTaxRate:        0.35,
			FCFType:           string(models.FCFF),
			NetDebtMethod:     "financing_flows",
			Assumptions:       models.DefaultAssumptions(),
			SensitivityRates:  []float64{0.08, 0.09, 0.10, 0.11, 0.12},
			SensitivityGrowth: []float64{0.02, 0.04, 0.06, 0.08, 0.10},
		},
		Warmer: WarmerConfig{
			Enabled:  false,
			Schedule: "0 6 * * 1-5",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied separately by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies VALUER_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VALUER_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("VALUER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VALUER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("VALUER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("VALUER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VALUER_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if threshold := os.Getenv("VALUER_ADAPTER_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Adapter.AcceptanceThreshold = t
		}
	}
	if timeout := os.Getenv("VALUER_ADAPTER_TIMEOUT"); timeout != "" {
		config.Adapter.Timeout = timeout
	}

	if method := os.Getenv("VALUER_NET_DEBT_METHOD"); method != "" {
		config.Valuation.NetDebtMethod = method
	}

	if schedule := os.Getenv("VALUER_WARMER_SCHEDULE"); schedule != "" {
		config.Warmer.Schedule = schedule
	}
	if tickers := os.Getenv("VALUER_WARMER_TICKERS"); tickers != "" {
		config.Warmer.Tickers = splitList(tickers)
	}

	// VALUER_<ID>_DISABLED=true removes a provider without editing files
	for id, p := range config.Providers {
		if v := os.Getenv("VALUER_" + strings.ToUpper(id) + "_DISABLED"); v != "" {
			if disabled, err := strconv.ParseBool(v); err == nil && disabled {
				p.Enabled = false
				config.Providers[id] = p
			}
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

var validate = validator.New()

// Validate checks struct constraints, durations and the warmer schedule
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := ParseDuration(c.Adapter.Timeout, 0); err != nil {
		return fmt.Errorf("invalid adapter timeout: %w", err)
	}
	for id, p := range c.Providers {
		if _, err := ParseDuration(p.Window, 0); err != nil {
			return fmt.Errorf("invalid window for provider %s: %w", id, err)
		}
		if _, err := ParseDuration(p.CacheTTL, 0); err != nil {
			return fmt.Errorf("invalid cache_ttl for provider %s: %w", id, err)
		}
		if p.CostPerCall != "" {
			if _, err := decimal.NewFromString(p.CostPerCall); err != nil {
				return fmt.Errorf("invalid cost_per_call for provider %s: %w", id, err)
			}
		}
	}
	if c.Warmer.Enabled {
		if err := ValidateSchedule(c.Warmer.Schedule); err != nil {
			return err
		}
	}
	return nil
}

// ProviderIDs returns enabled provider ids in ascending priority, ties broken by id
func (c *Config) ProviderIDs() []string {
	ids := make([]string, 0, len(c.Providers))
	for id, p := range c.Providers {
		if p.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := c.Providers[ids[i]].Priority, c.Providers[ids[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ProviderConfig converts a [providers.<id>] table into the adapter's form.
// apiKey is the already-resolved credential and may be empty.
func (p ProviderSettings) ProviderConfig(id, apiKey string) (models.ProviderConfig, error) {
	window, err := ParseDuration(p.Window, time.Minute)
	if err != nil {
		return models.ProviderConfig{}, err
	}
	ttl, err := ParseDuration(p.CacheTTL, 24*time.Hour)
	if err != nil {
		return models.ProviderConfig{}, err
	}

	pc := models.ProviderConfig{
		SourceID:    id,
		Priority:    p.Priority,
		MaxCalls:    p.MaxCalls,
		Window:      window,
		BurstPerSec: p.BurstPerSecond,
		CacheTTL:    ttl,
		Credentials: map[string]string{},
		BaseURL:     p.BaseURL,
	}
	if apiKey != "" {
		pc.Credentials["api_key"] = apiKey
	}
	if p.MonthlyQuota > 0 {
		q := p.MonthlyQuota
		pc.MonthlyQuota = &q
	}
	if p.CostPerCall != "" {
		cost, err := decimal.NewFromString(p.CostPerCall)
		if err != nil {
			return models.ProviderConfig{}, fmt.Errorf("invalid cost_per_call: %w", err)
		}
		pc.CostPerCall = &cost
	}
	return pc, nil
}

// ParseDuration parses s, returning fallback when s is empty
func ParseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

// APIKeyName returns the KV store key holding a provider's credential
func APIKeyName(providerID string) string {
	return strings.ToLower(providerID) + "_api_key"
}

// ResolveAPIKey resolves a provider credential.
// Resolution order: VALUER_<ID>_API_KEY -> <ID>_API_KEY -> KV store -> config fallback -> error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, providerID string, configFallback string) (string, error) {
	upper := strings.ToUpper(providerID)
	for _, envVarName := range []string{"VALUER_" + upper + "_API_KEY", upper + "_API_KEY"} {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	name := APIKeyName(providerID)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a standard five-field cron expression
func ValidateSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("warmer schedule is empty")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
