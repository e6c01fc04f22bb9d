// Package observability provides a metrics extension for folio that records
// billing event counts through a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/plugin"
	"github.com/xraph/folio/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceGenerated     = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceRegenerated   = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid          = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceStatusChanged = (*MetricsExtension)(nil)
	_ plugin.OnDiscountApplied      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRefunded      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records billing metrics.
// Monetary histograms observe major units (dollars, not cents).
type MetricsExtension struct {
	factory MetricFactory

	// Invoice metrics
	InvoiceGenerated   Counter
	InvoiceRegenerated Counter
	InvoicePaid        Counter
	InvoiceOverdue     Counter
	StatusChanges      Counter
	InvoiceTotal       Histogram

	// Discount metrics
	DiscountApplied Counter
	DiscountRemoved Counter
	DiscountAmount  Histogram

	// Payment metrics
	PaymentRecorded Counter
	PaymentRefunded Counter
	PaymentAmount   Histogram
	RefundAmount    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		InvoiceGenerated:   factory.Counter("folio.invoice.generated"),
		InvoiceRegenerated: factory.Counter("folio.invoice.regenerated"),
		InvoicePaid:        factory.Counter("folio.invoice.paid"),
		InvoiceOverdue:     factory.Counter("folio.invoice.overdue"),
		StatusChanges:      factory.Counter("folio.invoice.status_changes"),
		InvoiceTotal:       factory.Histogram("folio.invoice.total_amount"),

		DiscountApplied: factory.Counter("folio.discount.applied"),
		DiscountRemoved: factory.Counter("folio.discount.removed"),
		DiscountAmount:  factory.Histogram("folio.discount.amount"),

		PaymentRecorded: factory.Counter("folio.payment.recorded"),
		PaymentRefunded: factory.Counter("folio.payment.refunded"),
		PaymentAmount:   factory.Histogram("folio.payment.amount"),
		RefundAmount:    factory.Histogram("folio.payment.refund_amount"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated implements plugin.OnInvoiceGenerated.
func (m *MetricsExtension) OnInvoiceGenerated(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceGenerated.Inc()
	m.InvoiceTotal.Observe(major(inv.TotalAmount))
	return nil
}

// OnInvoiceRegenerated implements plugin.OnInvoiceRegenerated.
func (m *MetricsExtension) OnInvoiceRegenerated(_ context.Context, _ *invoice.Invoice, _ types.Money) error {
	m.InvoiceRegenerated.Inc()
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	return nil
}

// OnInvoiceStatusChanged implements plugin.OnInvoiceStatusChanged.
func (m *MetricsExtension) OnInvoiceStatusChanged(_ context.Context, _ *invoice.Invoice, _, to invoice.Status) error {
	m.StatusChanges.Inc()
	if to == invoice.StatusOverdue {
		m.InvoiceOverdue.Inc()
	}
	return nil
}

// OnDiscountApplied implements plugin.OnDiscountApplied.
func (m *MetricsExtension) OnDiscountApplied(_ context.Context, _ *invoice.Invoice, amount types.Money, _ string) error {
	if amount.IsZero() {
		m.DiscountRemoved.Inc()
		return nil
	}
	m.DiscountApplied.Inc()
	m.DiscountAmount.Observe(major(amount))
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _ *invoice.Invoice, p *payment.Payment) error {
	m.PaymentRecorded.Inc()
	m.PaymentAmount.Observe(major(p.Amount))
	return nil
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (m *MetricsExtension) OnPaymentRefunded(_ context.Context, _ *invoice.Invoice, p *payment.Payment) error {
	m.PaymentRefunded.Inc()
	m.RefundAmount.Observe(major(p.Amount))
	return nil
}

func major(m types.Money) float64 {
	f, _ := m.Decimal().Float64()
	return f
}
