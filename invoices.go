package folio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/folio/charge"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/reconcile"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store"
	"github.com/xraph/folio/types"
)

// ──────────────────────────────────────────────────
// Invoice generation
// ──────────────────────────────────────────────────

// GenerateInvoice bills a stay: it computes room, incidental and tax
// charges and persists a new UNPAID invoice. Each call creates a new
// invoice; use GetInvoiceByStay to check for an existing one first.
func (f *Folio) GenerateInvoice(ctx context.Context, stayID id.StayID) (*invoice.Invoice, error) {
	s, err := f.getStay(ctx, stayID)
	if err != nil {
		return nil, err
	}

	b := f.calc.Compute(s)

	now := f.now()
	inv := &invoice.Invoice{
		Entity:        types.NewEntityAt(now),
		ID:            id.NewInvoiceID(),
		StayID:        id.Ptr(s.ID),
		ReservationID: s.ReservationID,
		Currency:      f.currency,
		Discounts:     types.Zero(f.currency),
		Status:        invoice.StatusUnpaid,
		IssuedTime:    now,
	}
	applyBreakdown(inv, b)
	if f.paymentTerms > 0 {
		due := now.Add(f.paymentTerms)
		inv.DueDate = &due
	}
	reconcile.Apply(inv, nil, now)

	if err := f.store.CreateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	f.logger.Info("invoice generated",
		"invoice_id", inv.ID.String(),
		"stay_id", s.ID.String(),
		"nights", inv.Nights,
		"total", inv.TotalAmount.String(),
	)

	f.plugins.EmitInvoiceGenerated(ctx, inv)
	return inv, nil
}

// RegenerateInvoice recomputes an invoice's charges from its stay's current
// state, keeping the active discount (capped at the new gross) and
// reconciling against the existing payments. If the stay is gone the
// invoice is returned unchanged together with ErrStayNotFound.
func (f *Folio) RegenerateInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	var (
		inv           *invoice.Invoice
		payments      []*payment.Payment
		previousTotal types.Money
		res           reconcile.Result
	)
	err := f.inTx(ctx, invoiceID, func(ctx context.Context, invs invoice.Store, pays payment.Store) error {
		var err error
		inv, payments, err = load(ctx, invs, pays, invoiceID)
		if err != nil {
			return err
		}

		if inv.StayID == nil {
			return fmt.Errorf("%w: invoice %s has no stay", ErrStayNotFound, invoiceID)
		}
		s, err := f.getStay(ctx, *inv.StayID)
		if err != nil {
			return err
		}

		b := f.calc.Compute(s)
		previousTotal = inv.TotalAmount
		applyBreakdown(inv, b)
		if gross := inv.Gross(); inv.Discounts.GreaterThan(gross) {
			inv.Discounts = gross
		}

		now := f.now()
		res = reconcile.Apply(inv, payments, now)
		inv.TouchAt(now)
		return invs.Update(ctx, inv)
	})
	if err != nil {
		if errors.Is(err, ErrStayNotFound) && inv != nil {
			return withPayments(inv, payments), err
		}
		return nil, err
	}

	f.logger.Info("invoice regenerated",
		"invoice_id", inv.ID.String(),
		"previous_total", previousTotal.String(),
		"total", inv.TotalAmount.String(),
		"status", inv.Status,
	)

	inv = withPayments(inv, payments)
	f.plugins.EmitInvoiceRegenerated(ctx, inv, previousTotal)
	f.emitReconciled(ctx, inv, res)
	return inv, nil
}

// ──────────────────────────────────────────────────
// Charge computation (no persistence)
// ──────────────────────────────────────────────────

// ComputeTotalCharges returns the charge breakdown a new invoice for the
// stay would carry.
func (f *Folio) ComputeTotalCharges(ctx context.Context, stayID id.StayID) (charge.Breakdown, error) {
	s, err := f.getStay(ctx, stayID)
	if err != nil {
		return charge.Breakdown{}, err
	}
	return f.calc.Compute(s), nil
}

// ComputeRoomCharges returns nights times nightly rate for a stay.
func (f *Folio) ComputeRoomCharges(ctx context.Context, stayID id.StayID) (types.Money, error) {
	s, err := f.getStay(ctx, stayID)
	if err != nil {
		return types.Money{}, err
	}
	return f.calc.RoomCharges(s), nil
}

// ComputeTax applies the configured tax rate to subtotal.
func (f *Folio) ComputeTax(subtotal types.Money) types.Money {
	return f.calc.Tax(subtotal)
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetInvoice returns an invoice with its payments.
func (f *Folio) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	inv, payments, err := f.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return withPayments(inv, payments), nil
}

// GetInvoiceByStay returns the most recent invoice for a stay.
func (f *Folio) GetInvoiceByStay(ctx context.Context, stayID id.StayID) (*invoice.Invoice, error) {
	invs, err := f.ListInvoicesByStay(ctx, stayID)
	if err != nil {
		return nil, err
	}
	if len(invs) == 0 {
		return nil, fmt.Errorf("%w: no invoice for stay %s", ErrInvoiceNotFound, stayID)
	}
	return invs[len(invs)-1], nil
}

// ListInvoicesByStay returns every invoice issued for a stay, oldest first.
func (f *Folio) ListInvoicesByStay(ctx context.Context, stayID id.StayID) ([]*invoice.Invoice, error) {
	invs, err := f.store.GetInvoicesByStay(ctx, stayID)
	if err != nil {
		return nil, err
	}
	return f.hydrate(ctx, invs)
}

// ListInvoices returns all invoices ordered by id.
func (f *Folio) ListInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	return f.listInvoices(ctx, invoice.ListOpts{})
}

// ListInvoicesByStatus returns invoices in the given status. The status
// name is matched case-insensitively.
func (f *Folio) ListInvoicesByStatus(ctx context.Context, status string) ([]*invoice.Invoice, error) {
	st, ok := invoice.ParseStatus(status)
	if !ok {
		return nil, invalid("status", ErrInvalidStatus, "unknown invoice status %q", status)
	}
	return f.listInvoices(ctx, invoice.ListOpts{Status: st})
}

// ListUnpaidInvoices returns invoices with nothing paid.
func (f *Folio) ListUnpaidInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	return f.listInvoices(ctx, invoice.ListOpts{Status: invoice.StatusUnpaid})
}

// ListPartiallyPaidInvoices returns invoices with a remaining balance after
// at least one payment.
func (f *Folio) ListPartiallyPaidInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	return f.listInvoices(ctx, invoice.ListOpts{Status: invoice.StatusPartiallyPaid})
}

// TotalRevenue sums the totals of PAID invoices issued in [start, end).
// A zero start or end leaves that side of the range open.
func (f *Folio) TotalRevenue(ctx context.Context, start, end time.Time) (types.Money, error) {
	invs, err := f.store.ListInvoices(ctx, invoice.ListOpts{
		Status:     invoice.StatusPaid,
		IssuedFrom: start,
		IssuedTo:   end,
	})
	if err != nil {
		return types.Money{}, err
	}

	total := types.Zero(f.currency)
	for _, inv := range invs {
		total = total.Add(inv.TotalAmount)
	}
	return total, nil
}

// Audit verifies an invoice's stored amounts and status against its
// payments. A nil error means every ledger invariant holds.
func (f *Folio) Audit(ctx context.Context, invoiceID id.InvoiceID) error {
	inv, payments, err := f.loadInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if err := reconcile.Verify(inv, payments); err != nil {
		f.logger.Warn("invoice failed audit",
			"invoice_id", invoiceID.String(),
			"error", err,
		)
		return err
	}
	return nil
}

// ──────────────────────────────────────────────────
// Adjustments
// ──────────────────────────────────────────────────

// UpdateInvoiceStatus overrides an invoice's status without touching its
// amounts. The next payment or refund re-derives the status.
func (f *Folio) UpdateInvoiceStatus(ctx context.Context, invoiceID id.InvoiceID, status string) (*invoice.Invoice, error) {
	st, ok := invoice.ParseStatus(status)
	if !ok {
		return nil, invalid("status", ErrInvalidStatus, "unknown invoice status %q", status)
	}

	var (
		inv      *invoice.Invoice
		payments []*payment.Payment
		previous invoice.Status
	)
	err := f.inTx(ctx, invoiceID, func(ctx context.Context, invs invoice.Store, pays payment.Store) error {
		var err error
		inv, payments, err = load(ctx, invs, pays, invoiceID)
		if err != nil {
			return err
		}
		previous = inv.Status
		inv.Status = st
		inv.TouchAt(f.now())
		return invs.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("invoice status overridden",
		"invoice_id", inv.ID.String(),
		"from", previous,
		"to", st,
	)

	inv = withPayments(inv, payments)
	if previous != st {
		f.plugins.EmitInvoiceStatusChanged(ctx, inv, previous, st)
	}
	return inv, nil
}

// ApplyDiscount replaces the invoice's discount and re-derives its total,
// outstanding balance and status. The discount may not exceed the
// invoice's charges including tax.
func (f *Folio) ApplyDiscount(ctx context.Context, invoiceID id.InvoiceID, amount types.Money, reason string) (*invoice.Invoice, error) {
	if amount.IsNegative() {
		return nil, invalid("amount", ErrInvalidAmount, "discount must not be negative, got %s", amount)
	}
	if err := f.checkCurrency("amount", amount); err != nil {
		return nil, err
	}

	return f.setDiscount(ctx, invoiceID, reason, func(inv *invoice.Invoice) error {
		if gross := inv.Gross(); amount.GreaterThan(gross) {
			return invalid("amount", ErrInvalidDiscount, "discount %s exceeds charges %s", amount, gross)
		}
		inv.Discounts = amount
		inv.DiscountReason = nil
		if r := strings.TrimSpace(reason); r != "" && amount.IsPositive() {
			inv.DiscountReason = &r
		}
		return nil
	})
}

// RemoveDiscount clears the invoice's discount.
func (f *Folio) RemoveDiscount(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	return f.setDiscount(ctx, invoiceID, "", func(inv *invoice.Invoice) error {
		inv.Discounts = types.Zero(inv.Currency)
		inv.DiscountReason = nil
		return nil
	})
}

// setDiscount applies change to the invoice and reconciles it in one
// invoice transaction.
func (f *Folio) setDiscount(ctx context.Context, invoiceID id.InvoiceID, reason string, change func(*invoice.Invoice) error) (*invoice.Invoice, error) {
	var (
		inv      *invoice.Invoice
		payments []*payment.Payment
		res      reconcile.Result
	)
	err := f.inTx(ctx, invoiceID, func(ctx context.Context, invs invoice.Store, pays payment.Store) error {
		var err error
		inv, payments, err = load(ctx, invs, pays, invoiceID)
		if err != nil {
			return err
		}
		if err := change(inv); err != nil {
			return err
		}
		now := f.now()
		res = reconcile.Apply(inv, payments, now)
		inv.TouchAt(now)
		return invs.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	f.logger.Info("invoice discount set",
		"invoice_id", inv.ID.String(),
		"discount", inv.Discounts.String(),
		"total", inv.TotalAmount.String(),
		"status", inv.Status,
	)

	inv = withPayments(inv, payments)
	f.plugins.EmitDiscountApplied(ctx, inv, inv.Discounts, reason)
	f.emitReconciled(ctx, inv, res)
	return inv, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (f *Folio) getStay(ctx context.Context, stayID id.StayID) (*stay.Stay, error) {
	s, err := f.stays.GetStay(ctx, stayID)
	if err != nil {
		if errors.Is(err, ErrStayNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("folio: load stay %s: %w", stayID, err)
	}
	if err := f.checkStayCurrency(s); err != nil {
		return nil, err
	}
	return s, nil
}

// checkStayCurrency rejects stays whose rate or billable incidentals are not
// in the ledger currency.
func (f *Folio) checkStayCurrency(s *stay.Stay) error {
	rate := f.calc.Currency()
	if s.NightlyRate != nil {
		rate = s.NightlyRate.Currency
	}
	if rate != f.currency {
		return invalid("nightly_rate", ErrCurrencyMismatch, "stay %s is rated in %q, ledger bills in %s", s.ID, rate, f.currency)
	}
	for _, inc := range s.Incidentals {
		if !inc.Voided && inc.Amount.Currency != f.currency {
			return invalid("incidentals", ErrCurrencyMismatch, "incidental %s on stay %s is in %q, ledger bills in %s",
				inc.ID, s.ID, inc.Amount.Currency, f.currency)
		}
	}
	return nil
}

// inTx runs fn inside the store's transaction for the invoice.
func (f *Folio) inTx(ctx context.Context, invoiceID id.InvoiceID, fn func(ctx context.Context, invs invoice.Store, pays payment.Store) error) error {
	return f.store.InvoiceTx(ctx, invoiceID, func(ctx context.Context, tx store.Ledger) error {
		return fn(ctx, store.Invoices(tx), store.Payments(tx))
	})
}

// loadInvoice reads an invoice and its payments outside a transaction.
func (f *Folio) loadInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, []*payment.Payment, error) {
	return load(ctx, store.Invoices(f.store), store.Payments(f.store), invoiceID)
}

// load reads an invoice and its payments in chronological order.
func load(ctx context.Context, invs invoice.Store, pays payment.Store, invoiceID id.InvoiceID) (*invoice.Invoice, []*payment.Payment, error) {
	inv, err := invs.Get(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := pays.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	return inv, payments, nil
}

func (f *Folio) listInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	invs, err := f.store.ListInvoices(ctx, opts)
	if err != nil {
		return nil, err
	}
	return f.hydrate(ctx, invs)
}

func (f *Folio) hydrate(ctx context.Context, invs []*invoice.Invoice) ([]*invoice.Invoice, error) {
	for i, inv := range invs {
		payments, err := f.store.ListPaymentsByInvoice(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		invs[i] = withPayments(inv, payments)
	}
	return invs, nil
}

func withPayments(inv *invoice.Invoice, payments []*payment.Payment) *invoice.Invoice {
	inv.Payments = make([]payment.Payment, 0, len(payments))
	for _, p := range payments {
		inv.Payments = append(inv.Payments, *p)
	}
	return inv
}

func applyBreakdown(inv *invoice.Invoice, b charge.Breakdown) {
	inv.Nights = b.Nights
	inv.RoomCharges = b.RoomCharges
	inv.IncidentalCharges = b.IncidentalCharges
	inv.TaxRate = b.TaxRate.String()
	inv.Taxes = b.Taxes
}

func (f *Folio) checkCurrency(field string, m types.Money) error {
	if m.Currency != f.currency {
		return invalid(field, ErrCurrencyMismatch, "expected %s, got %q", f.currency, m.Currency)
	}
	return nil
}

// emitReconciled fires the status hooks for a reconciliation result.
func (f *Folio) emitReconciled(ctx context.Context, inv *invoice.Invoice, res reconcile.Result) {
	if !res.Changed {
		return
	}
	f.plugins.EmitInvoiceStatusChanged(ctx, inv, res.PreviousStatus, res.Status)
	if res.BecamePaid() {
		f.plugins.EmitInvoicePaid(ctx, inv)
	}
}
