// Package plugin lets embedders observe folio's billing lifecycle.
// A plugin implements Plugin plus any subset of the hook interfaces below;
// the Registry discovers which ones once, at registration.
package plugin

import (
	"context"

	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *folio.Folio.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated is called after a new invoice is persisted.
type OnInvoiceGenerated interface {
	Plugin
	OnInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceRegenerated is called after an invoice's charges are recomputed
// from its stay.
type OnInvoiceRegenerated interface {
	Plugin
	OnInvoiceRegenerated(ctx context.Context, inv *invoice.Invoice, previousTotal types.Money) error
}

// OnInvoicePaid is called when an invoice transitions into PAID.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceStatusChanged is called on every status transition, derived or manual.
type OnInvoiceStatusChanged interface {
	Plugin
	OnInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from, to invoice.Status) error
}

// OnDiscountApplied is called when a discount is set or removed. A removal
// reports a zero amount.
type OnDiscountApplied interface {
	Plugin
	OnDiscountApplied(ctx context.Context, inv *invoice.Invoice, amount types.Money, reason string) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called after a payment is appended and the invoice
// reconciled.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error
}

// OnPaymentRefunded is called after a payment is refunded and the invoice
// reconciled.
type OnPaymentRefunded interface {
	Plugin
	OnPaymentRefunded(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error
}
