package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/valuer/internal/common"
	"github.com/ternarybob/valuer/internal/handlers"
	"github.com/ternarybob/valuer/internal/interfaces"
	"github.com/ternarybob/valuer/internal/services/adapter"
	"github.com/ternarybob/valuer/internal/services/cache"
	"github.com/ternarybob/valuer/internal/services/calculator"
	"github.com/ternarybob/valuer/internal/services/normalize"
	"github.com/ternarybob/valuer/internal/services/ratelimit"
	"github.com/ternarybob/valuer/internal/services/valuation"
	"github.com/ternarybob/valuer/internal/services/warmer"
	"github.com/ternarybob/valuer/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage is nil when [storage.badger] is disabled
	Storage *badger.Manager
	KV      interfaces.KeyValueStorage
	Cache   interfaces.CacheStore

	Limiter    *ratelimit.SlidingWindow
	Usage      *adapter.UsageTracker
	Adapter    *adapter.Service
	Calculator *calculator.Service
	Valuator   *valuation.Service
	Pipeline   *valuation.Pipeline
	Warmer     *warmer.Service

	// HTTP handlers
	FinancialsHandler *handlers.FinancialsHandler
	ValuationHandler  *handlers.ValuationHandler
	StatusHandler     *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if logger == nil {
		logger = common.GetLogger()
	}
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Strs("sources", app.Adapter.Sources()).
		Bool("persistent", app.Storage != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens Badger and loads the .env file into the KV store
func (a *App) initStorage() error {
	if !a.Config.Storage.Badger.Enabled {
		a.Logger.Debug().Msg("Badger storage disabled, using memory cache only")
		return nil
	}

	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.Storage = manager
	a.KV = manager.KeyValueStorage()

	// API keys stored in .env land in the KV store before providers resolve them
	if a.Config.EnvFile != "" {
		count, err := manager.LoadEnvFile(context.Background(), a.Config.EnvFile)
		if err != nil {
			a.Logger.Warn().Err(err).Str("path", a.Config.EnvFile).Msg("Failed to load .env file")
		} else if count > 0 {
			a.Logger.Debug().Int("count", count).Msg("Loaded variables from .env file")
		}
	}
	return nil
}

// initServices builds the adapter stack and the valuation services
func (a *App) initServices() error {
	ctx := context.Background()

	memory := cache.NewMemoryStore(cache.WithLogger(a.Logger))
	if a.Storage != nil {
		a.Cache = cache.NewTieredStore(memory, a.Storage.CacheStorage(), a.Logger)
	} else {
		a.Cache = memory
	}

	normalizer, err := normalize.New()
	if err != nil {
		return fmt.Errorf("failed to load field mappings: %w", err)
	}

	opts, err := adapter.OptionsFromConfig(a.Config.Adapter)
	if err != nil {
		return err
	}

	a.Limiter = ratelimit.New(ratelimit.WithLogger(a.Logger))
	a.Usage = adapter.NewUsageTracker(a.KV, a.Logger)
	a.Adapter = adapter.NewService(opts, a.Limiter, a.Cache, normalizer, a.Usage, a.Logger)

	configs, err := adapter.ProviderConfigs(ctx, a.Config, a.KV, a.Logger)
	if err != nil {
		return err
	}
	for _, pc := range configs {
		if err := a.Adapter.ConfigureSource(ctx, pc); err != nil {
			return err
		}
	}
	if len(a.Adapter.Sources()) == 0 {
		a.Logger.Warn().Msg("No providers configured; every fetch will fail")
	}

	a.Calculator = calculator.NewService(calculator.Options{
		DefaultTaxRate: a.Config.Valuation.DefaultTaxRate,
		MaxTaxRate:     a.Config.Valuation.MaxTaxRate,
	}, a.Logger)
	a.Valuator = valuation.NewService(valuation.Options{
		DefaultBaseFCF: a.Config.Valuation.DefaultBaseFCF,
		NetDebtMethod:  a.Config.Valuation.NetDebtMethod,
	}, a.Logger)
	a.Pipeline = valuation.NewPipeline(a.Adapter, a.Calculator, a.Valuator, a.Logger)

	a.Warmer = warmer.NewService(a.Adapter, a.Config.Warmer, a.Logger).
		WithPurger(memory, warmer.DefaultPurgeGrace)
	return nil
}

func (a *App) initHandlers() {
	a.FinancialsHandler = handlers.NewFinancialsHandler(a.Adapter, a.Logger)
	a.ValuationHandler = handlers.NewValuationHandler(a.Pipeline, a.Config.Valuation, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Adapter, a.Warmer, a.Logger)
}

// StartBackground starts the cache warmer when it is enabled
func (a *App) StartBackground() error {
	if !a.Config.Warmer.Enabled {
		return nil
	}
	if len(a.Config.Warmer.Tickers) == 0 {
		a.Logger.Warn().Msg("Cache warmer enabled without tickers, not started")
		return nil
	}
	if a.Warmer.IsRunning() {
		return nil
	}
	return a.Warmer.Start()
}

// Close stops background work and closes storage
func (a *App) Close() error {
	if a.Warmer != nil {
		a.Warmer.Stop()
	}
	if a.Storage != nil {
		if _, err := a.Storage.CollectGarbage(); err != nil {
			a.Logger.Warn().Err(err).Msg("Value log GC failed")
		}
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Debug().Msg("Storage closed")
	}
	return nil
}
