// Package audithook bridges folio billing events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/plugin"
	"github.com/xraph/folio/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnInvoiceGenerated     = (*Extension)(nil)
	_ plugin.OnInvoiceRegenerated   = (*Extension)(nil)
	_ plugin.OnInvoicePaid          = (*Extension)(nil)
	_ plugin.OnInvoiceStatusChanged = (*Extension)(nil)
	_ plugin.OnDiscountApplied      = (*Extension)(nil)
	_ plugin.OnPaymentRecorded      = (*Extension)(nil)
	_ plugin.OnPaymentRefunded      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single entry in the billing audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges folio lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceGenerated implements plugin.OnInvoiceGenerated.
func (e *Extension) OnInvoiceGenerated(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceGenerated, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		invoiceFields(inv)...,
	)
}

// OnInvoiceRegenerated implements plugin.OnInvoiceRegenerated.
func (e *Extension) OnInvoiceRegenerated(ctx context.Context, inv *invoice.Invoice, previousTotal types.Money) error {
	fields := append(invoiceFields(inv), "previous_total", previousTotal.String())
	return e.record(ctx, ActionInvoiceRegenerated, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		fields...,
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryPayment, nil,
		invoiceFields(inv)...,
	)
}

// OnInvoiceStatusChanged implements plugin.OnInvoiceStatusChanged.
// A manual move to OVERDUE is recorded as a warning.
func (e *Extension) OnInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from, to invoice.Status) error {
	severity := SeverityInfo
	if to == invoice.StatusOverdue {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionInvoiceStatusChanged, severity, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"from", string(from),
		"to", string(to),
	)
}

// OnDiscountApplied implements plugin.OnDiscountApplied.
func (e *Extension) OnDiscountApplied(ctx context.Context, inv *invoice.Invoice, amount types.Money, reason string) error {
	action := ActionDiscountApplied
	if amount.IsZero() {
		action = ActionDiscountRemoved
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, nil,
		"discount", amount.String(),
		"reason", reason,
		"total_amount", inv.TotalAmount.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		paymentFields(inv, p)...,
	)
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded.
func (e *Extension) OnPaymentRefunded(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentRefunded, SeverityWarning, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		paymentFields(inv, p)...,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func invoiceFields(inv *invoice.Invoice) []any {
	fields := []any{
		"status", string(inv.Status),
		"total_amount", inv.TotalAmount.String(),
		"outstanding_balance", inv.OutstandingBalance.String(),
	}
	if inv.StayID != nil {
		fields = append(fields, "stay_id", inv.StayID.String())
	}
	return fields
}

func paymentFields(inv *invoice.Invoice, p *payment.Payment) []any {
	return []any{
		"invoice_id", inv.ID.String(),
		"amount", p.Amount.String(),
		"method", string(p.Method),
		"reference", p.Reference(),
		"invoice_status", string(inv.Status),
		"outstanding_balance", inv.OutstandingBalance.String(),
	}
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
