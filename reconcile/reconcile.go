// Package reconcile derives an invoice's paid amount, outstanding balance and
// status from its payments.
//
// Given an invoice and its payment set the derivation is deterministic, so
// running Apply twice on the same snapshot is a no-op.
package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/types"
)

// ErrInvariant is wrapped by every Verify failure.
var ErrInvariant = errors.New("folio: ledger invariant violated")

// Result describes what Apply changed.
type Result struct {
	AmountPaid     types.Money
	Outstanding    types.Money
	Status         invoice.Status
	PreviousStatus invoice.Status
	Changed        bool
}

// BecamePaid reports whether this reconciliation moved the invoice into PAID.
func (r Result) BecamePaid() bool {
	return r.Changed && r.Status == invoice.StatusPaid
}

// AmountPaid sums the completed payments.
func AmountPaid(currency string, payments []*payment.Payment) types.Money {
	paid := types.Zero(currency)
	for _, p := range payments {
		if p.Completed() {
			paid = paid.Add(p.Amount)
		}
	}
	return paid
}

// Outstanding is total minus paid, floored at zero.
func Outstanding(total, paid types.Money) types.Money {
	return types.ClampZero(total.Subtract(paid))
}

// DeriveStatus maps amounts to a status. OVERDUE is never derived.
func DeriveStatus(total, paid types.Money) invoice.Status {
	switch {
	case total.IsPositive() && !paid.LessThan(total):
		return invoice.StatusPaid
	case paid.IsPositive():
		return invoice.StatusPartiallyPaid
	default:
		return invoice.StatusUnpaid
	}
}

// Totals recomputes TotalAmount from the charge components and returns it.
func Totals(inv *invoice.Invoice) types.Money {
	inv.TotalAmount = inv.Gross().Subtract(inv.Discounts)
	return inv.TotalAmount
}

// Apply recomputes the invoice's total and derived fields against payments.
// PaidAt is stamped with now when the invoice first becomes PAID and cleared
// when it leaves PAID.
func Apply(inv *invoice.Invoice, payments []*payment.Payment, now time.Time) Result {
	total := Totals(inv)
	paid := AmountPaid(inv.Currency, payments)
	status := DeriveStatus(total, paid)

	res := Result{
		AmountPaid:     paid,
		Outstanding:    Outstanding(total, paid),
		Status:         status,
		PreviousStatus: inv.Status,
		Changed:        inv.Status != status,
	}

	inv.AmountPaid = res.AmountPaid
	inv.OutstandingBalance = res.Outstanding
	inv.Status = status

	switch {
	case status == invoice.StatusPaid && inv.PaidAt == nil:
		t := now.UTC()
		inv.PaidAt = &t
	case status != invoice.StatusPaid:
		inv.PaidAt = nil
	}
	return res
}

// Verify checks an invoice against its payment set. A manual OVERDUE status
// is accepted while the invoice is not fully paid.
func Verify(inv *invoice.Invoice, payments []*payment.Payment) error {
	for name, m := range map[string]types.Money{
		"room_charges":       inv.RoomCharges,
		"incidental_charges": inv.IncidentalCharges,
		"taxes":              inv.Taxes,
		"discounts":          inv.Discounts,
	} {
		if m.IsNegative() {
			return fmt.Errorf("%w: %s is negative (%s)", ErrInvariant, name, m)
		}
	}

	if inv.Discounts.GreaterThan(inv.Gross()) {
		return fmt.Errorf("%w: discount %s exceeds charges %s", ErrInvariant, inv.Discounts, inv.Gross())
	}

	if want := inv.Gross().Subtract(inv.Discounts); !inv.TotalAmount.Equal(want) {
		return fmt.Errorf("%w: total_amount is %s, components give %s", ErrInvariant, inv.TotalAmount, want)
	}

	for _, p := range payments {
		if !p.InvoiceID.Equal(inv.ID) {
			return fmt.Errorf("%w: payment %s belongs to %s", ErrInvariant, p.ID, p.InvoiceID)
		}
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: payment %s has non-positive amount %s", ErrInvariant, p.ID, p.Amount)
		}
	}

	paid := AmountPaid(inv.Currency, payments)
	if !inv.AmountPaid.Equal(paid) {
		return fmt.Errorf("%w: amount_paid is %s, completed payments sum to %s", ErrInvariant, inv.AmountPaid, paid)
	}

	if want := Outstanding(inv.TotalAmount, paid); !inv.OutstandingBalance.Equal(want) {
		return fmt.Errorf("%w: outstanding_balance is %s, want %s", ErrInvariant, inv.OutstandingBalance, want)
	}

	derived := DeriveStatus(inv.TotalAmount, paid)
	if inv.Status == invoice.StatusOverdue && derived != invoice.StatusPaid {
		return nil
	}
	if inv.Status != derived {
		return fmt.Errorf("%w: status is %s, amounts give %s", ErrInvariant, inv.Status, derived)
	}
	return nil
}
