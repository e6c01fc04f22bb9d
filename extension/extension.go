// Package extension provides the Forge extension adapter for folio.
//
// It implements the forge.Extension interface to integrate the billing
// engine into a Forge application with DI registration and lifecycle
// management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.folio" or "folio" keys.
package extension

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/folio"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store"
	"github.com/xraph/folio/store/memory"
	"github.com/xraph/folio/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "folio"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Hotel billing ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts folio as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config    Config
	engine    *folio.Folio
	store     store.Store
	stays     stay.Source
	folioOpts []folio.Option
}

// New creates a new folio Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Folio instance.
// This is nil until Register is called.
func (e *Extension) Engine() *folio.Folio { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the billing engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}
	if e.stays == nil {
		e.stays = stay.NewMemorySource()
	}

	e.engine = folio.New(e.store, e.stays, e.buildFolioOpts()...)

	return vessel.Provide(fapp.Container(), func() (*folio.Folio, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("folio: extension not initialized")
	}
	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("folio: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildFolioOpts constructs folio.Option values from the resolved config.
func (e *Extension) buildFolioOpts() []folio.Option {
	cfg := e.config
	opts := make([]folio.Option, 0, len(e.folioOpts)+5)

	opts = append(opts,
		folio.WithCurrency(cfg.Currency),
		folio.WithTaxRate(decimal.NewFromFloat(cfg.TaxRate)),
		folio.WithDefaultNightlyRate(types.New(cfg.DefaultNightlyRate, cfg.Currency)),
	)
	if cfg.PaymentTermsDays > 0 {
		opts = append(opts, folio.WithPaymentTerms(time.Duration(cfg.PaymentTermsDays)*24*time.Hour))
	}
	if cfg.DisableMigrate {
		opts = append(opts, folio.WithoutMigrate())
	}

	return append(opts, e.folioOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("folio: configuration is required but not found in config files; " +
				"ensure 'extensions.folio' or 'folio' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("folio: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("currency", e.config.Currency),
		forge.F("tax_rate", e.config.TaxRate),
		forge.F("default_nightly_rate", e.config.DefaultNightlyRate),
		forge.F("payment_terms_days", e.config.PaymentTermsDays),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.folio", "folio"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("folio: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("folio: loaded config from file",
			forge.F("key", key),
		)
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults. A zero tax rate
// therefore means the default; pass folio.WithTaxRate through
// WithFolioOption to bill without tax.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.TaxRate == 0 {
		cfg.TaxRate = defaults.TaxRate
	}
	if cfg.DefaultNightlyRate == 0 {
		cfg.DefaultNightlyRate = defaults.DefaultNightlyRate
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.TaxRate == 0 {
		yamlConfig.TaxRate = programmaticConfig.TaxRate
	}
	if yamlConfig.DefaultNightlyRate == 0 {
		yamlConfig.DefaultNightlyRate = programmaticConfig.DefaultNightlyRate
	}
	if yamlConfig.PaymentTermsDays == 0 {
		yamlConfig.PaymentTermsDays = programmaticConfig.PaymentTermsDays
	}

	return mergeWithDefaults(yamlConfig)
}
