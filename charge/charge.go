// Package charge computes the amounts billed for a stay: room nights,
// incidentals and tax. It is pure; nothing here touches storage.
package charge

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/types"
)

// DefaultNightlyRate is billed when a stay carries no rate of its own.
var DefaultNightlyRate = types.USD(10000)

// DefaultTaxRate is the flat tax applied to room and incidental charges.
var DefaultTaxRate = decimal.RequireFromString("0.10")

// Breakdown is the full set of charge components for one stay.
type Breakdown struct {
	Nights            int             `json:"nights"`
	RoomCharges       types.Money     `json:"room_charges"`
	IncidentalCharges types.Money     `json:"incidental_charges"`
	Subtotal          types.Money     `json:"subtotal"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	Taxes             types.Money     `json:"taxes"`
}

// Total returns subtotal plus tax.
func (b Breakdown) Total() types.Money { return b.Subtotal.Add(b.Taxes) }

// Calculator turns stays into charge breakdowns.
type Calculator struct {
	nightlyRate types.Money
	taxRate     decimal.Decimal
	clock       func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithDefaultNightlyRate sets the fallback nightly rate.
func WithDefaultNightlyRate(m types.Money) Option {
	return func(c *Calculator) { c.nightlyRate = m }
}

// WithTaxRate sets the flat tax rate (0.10 is ten percent).
func WithTaxRate(rate decimal.Decimal) Option {
	return func(c *Calculator) { c.taxRate = rate }
}

// WithClock sets the time source used for stays that have not checked out.
func WithClock(clock func() time.Time) Option {
	return func(c *Calculator) { c.clock = clock }
}

// New returns a Calculator billing DefaultNightlyRate and DefaultTaxRate
// unless overridden by opts.
func New(opts ...Option) *Calculator {
	c := &Calculator{
		nightlyRate: DefaultNightlyRate,
		taxRate:     DefaultTaxRate,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Currency is the currency of the fallback nightly rate.
func (c *Calculator) Currency() string { return c.nightlyRate.Currency }

// TaxRate returns the configured tax rate.
func (c *Calculator) TaxRate() decimal.Decimal { return c.taxRate }

// Nights counts calendar days from check-in to check-out, or to now for a
// guest still in house. A same-day stay counts as one night.
func (c *Calculator) Nights(s *stay.Stay) int {
	end := c.clock()
	if s.CheckOut != nil {
		end = *s.CheckOut
	}
	n := calendarDays(s.CheckIn, end)
	if n < 1 {
		return 1
	}
	return n
}

// RoomCharges is nights times the stay's nightly rate.
func (c *Calculator) RoomCharges(s *stay.Stay) types.Money {
	rate := c.nightlyRate
	if s.NightlyRate != nil {
		rate = *s.NightlyRate
	}
	return rate.Multiply(int64(c.Nights(s)))
}

// IncidentalTotal sums the stay's non-voided incidentals.
func (c *Calculator) IncidentalTotal(s *stay.Stay) types.Money {
	total := types.Zero(c.stayCurrency(s))
	for _, inc := range s.Incidentals {
		if inc.Voided {
			continue
		}
		total = total.Add(inc.Amount)
	}
	return total
}

// Tax applies the configured rate to subtotal.
func (c *Calculator) Tax(subtotal types.Money) types.Money {
	return Tax(subtotal, c.taxRate)
}

// Tax returns subtotal times rate rounded to the smallest currency unit.
// Non-positive rates and subtotals yield zero.
func Tax(subtotal types.Money, rate decimal.Decimal) types.Money {
	if !rate.IsPositive() || !subtotal.IsPositive() {
		return types.Zero(subtotal.Currency)
	}
	return subtotal.MulRate(rate)
}

// Compute returns the full breakdown for a stay. The stay's rate and
// billable incidentals must share one currency.
func (c *Calculator) Compute(s *stay.Stay) Breakdown {
	room := c.RoomCharges(s)
	incidentals := c.IncidentalTotal(s)
	subtotal := room.Add(incidentals)
	return Breakdown{
		Nights:            c.Nights(s),
		RoomCharges:       room,
		IncidentalCharges: incidentals,
		Subtotal:          subtotal,
		TaxRate:           c.taxRate,
		Taxes:             c.Tax(subtotal),
	}
}

func (c *Calculator) stayCurrency(s *stay.Stay) string {
	if s.NightlyRate != nil {
		return s.NightlyRate.Currency
	}
	return c.nightlyRate.Currency
}

func calendarDays(from, to time.Time) int {
	y1, m1, d1 := from.Date()
	y2, m2, d2 := to.In(from.Location()).Date()
	a := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	b := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
