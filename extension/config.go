package extension

// Config holds the folio extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.folio" or "folio" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Currency is the billing currency code (default: "usd").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// TaxRate is the flat tax rate applied to room and incidental charges
	// (default: 0.10).
	TaxRate float64 `json:"tax_rate" mapstructure:"tax_rate" yaml:"tax_rate"`

	// DefaultNightlyRate is the nightly rate in minor units used when a stay
	// carries none (default: 10000).
	DefaultNightlyRate int64 `json:"default_nightly_rate" mapstructure:"default_nightly_rate" yaml:"default_nightly_rate"`

	// PaymentTermsDays sets an invoice due date this many days after issue.
	// Zero leaves invoices without a due date.
	PaymentTermsDays int `json:"payment_terms_days" mapstructure:"payment_terms_days" yaml:"payment_terms_days"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Currency:           "usd",
		TaxRate:            0.10,
		DefaultNightlyRate: 10000,
	}
}
