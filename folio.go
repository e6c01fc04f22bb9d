package folio

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/folio/charge"
	"github.com/xraph/folio/plugin"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store"
	"github.com/xraph/folio/types"
)

// DefaultCurrency is the ledger currency when none is configured.
const DefaultCurrency = "usd"

// Folio is the billing engine. It turns stays into invoices, records
// payments and refunds against them and keeps every invoice reconciled
// with its payment set.
type Folio struct {
	store   store.Store
	stays   stay.Source
	plugins *plugin.Registry
	logger  *slog.Logger
	calc    *charge.Calculator

	// Configuration
	currency     string
	taxRate      decimal.Decimal
	nightlyRate  *types.Money
	paymentTerms time.Duration
	clock        func() time.Time
	skipMigrate  bool
}

// New creates a new Folio instance.
func New(s store.Store, stays stay.Source, opts ...Option) *Folio {
	f := &Folio{
		store:    s,
		stays:    stays,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		currency: DefaultCurrency,
		taxRate:  charge.DefaultTaxRate,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	rate := types.New(charge.DefaultNightlyRate.Amount, f.currency)
	if f.nightlyRate != nil {
		rate = *f.nightlyRate
	}
	f.calc = charge.New(
		charge.WithDefaultNightlyRate(rate),
		charge.WithTaxRate(f.taxRate),
		charge.WithClock(f.clock),
	)

	return f
}

// Option configures a Folio instance.
type Option func(*Folio)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Folio) {
		f.logger = logger
		f.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(f *Folio) {
		_ = f.plugins.Register(p) //nolint:errcheck // duplicate names are logged by the registry
	}
}

// WithCurrency sets the single currency this ledger bills in.
func WithCurrency(currency string) Option {
	return func(f *Folio) {
		if currency != "" {
			f.currency = types.Zero(currency).Currency
		}
	}
}

// WithTaxRate sets the flat tax rate, e.g. decimal.RequireFromString("0.10").
func WithTaxRate(rate decimal.Decimal) Option {
	return func(f *Folio) { f.taxRate = rate }
}

// WithDefaultNightlyRate sets the rate billed for stays without one.
func WithDefaultNightlyRate(rate types.Money) Option {
	return func(f *Folio) { f.nightlyRate = &rate }
}

// WithPaymentTerms sets the due date offset for new invoices. Zero means no
// due date.
func WithPaymentTerms(d time.Duration) Option {
	return func(f *Folio) { f.paymentTerms = d }
}

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(f *Folio) {
		if clock != nil {
			f.clock = clock
		}
	}
}

// WithoutMigrate makes Start skip store migration.
func WithoutMigrate() Option {
	return func(f *Folio) { f.skipMigrate = true }
}

// Start migrates the store and initializes plugins.
func (f *Folio) Start(ctx context.Context) error {
	if !f.skipMigrate {
		if err := f.store.Migrate(ctx); err != nil {
			return err
		}
	}

	f.plugins.EmitInit(ctx, f)

	f.logger.Info("folio started",
		"currency", f.currency,
		"tax_rate", f.taxRate.String(),
		"payment_terms", f.paymentTerms,
		"plugins", f.plugins.Count(),
	)
	return nil
}

// Stop notifies plugins and closes the store.
func (f *Folio) Stop() error {
	f.plugins.EmitShutdown(context.Background())
	return f.store.Close()
}

// Store returns the underlying store.
func (f *Folio) Store() store.Store { return f.store }

// Plugins returns the plugin registry.
func (f *Folio) Plugins() *plugin.Registry { return f.plugins }

// Calculator returns the charge calculator in use.
func (f *Folio) Calculator() *charge.Calculator { return f.calc }

// Currency returns the ledger currency.
func (f *Folio) Currency() string { return f.currency }

func (f *Folio) now() time.Time { return f.clock().UTC() }
