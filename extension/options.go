package extension

import (
	"github.com/xraph/folio"
	"github.com/xraph/folio/plugin"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store"
)

// Option configures the folio Forge extension.
type Option func(*Extension)

// WithStore sets the store for the folio engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithStaySource sets where stays are read from when invoices are generated.
func WithStaySource(src stay.Source) Option {
	return func(e *Extension) {
		e.stays = src
	}
}

// WithFolioOption passes a folio.Option through to the underlying engine.
// Pass-through options are applied after config-derived ones.
func WithFolioOption(opt folio.Option) Option {
	return func(e *Extension) {
		e.folioOpts = append(e.folioOpts, opt)
	}
}

// WithPlugin registers a folio plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.folioOpts = append(e.folioOpts, folio.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithCurrency sets the billing currency.
func WithCurrency(currency string) Option {
	return func(e *Extension) { e.config.Currency = currency }
}

// WithTaxRate sets the flat tax rate.
func WithTaxRate(rate float64) Option {
	return func(e *Extension) { e.config.TaxRate = rate }
}

// WithDefaultNightlyRate sets the fallback nightly rate in minor units.
func WithDefaultNightlyRate(cents int64) Option {
	return func(e *Extension) { e.config.DefaultNightlyRate = cents }
}

// WithPaymentTermsDays sets the number of days until an invoice is due.
func WithPaymentTermsDays(days int) Option {
	return func(e *Extension) { e.config.PaymentTermsDays = days }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
