package folio

import (
	"context"
	"strings"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/reconcile"
	"github.com/xraph/folio/types"
)

// ProcessPayment records a payment against an invoice and reconciles it.
func (f *Folio) ProcessPayment(ctx context.Context, invoiceID id.InvoiceID, amount types.Money, method payment.Method) (*payment.Payment, error) {
	return f.processPayment(ctx, invoiceID, amount, method, "")
}

// ProcessPaymentWithReference records a payment carrying an external
// transaction reference. A non-empty reference may appear only once per
// invoice.
func (f *Folio) ProcessPaymentWithReference(ctx context.Context, invoiceID id.InvoiceID, amount types.Money, method payment.Method, reference string) (*payment.Payment, error) {
	return f.processPayment(ctx, invoiceID, amount, method, reference)
}

func (f *Folio) processPayment(ctx context.Context, invoiceID id.InvoiceID, amount types.Money, method payment.Method, reference string) (*payment.Payment, error) {
	var (
		inv      *invoice.Invoice
		payments []*payment.Payment
		p        *payment.Payment
		res      reconcile.Result
	)
	err := f.inTx(ctx, invoiceID, func(ctx context.Context, invs invoice.Store, pays payment.Store) error {
		var err error
		inv, payments, err = load(ctx, invs, pays, invoiceID)
		if err != nil {
			return err
		}

		if !amount.IsPositive() {
			return invalid("amount", ErrInvalidAmount, "payment amount must be positive, got %s", amount)
		}
		if amount.Currency != inv.Currency {
			return invalid("amount", ErrCurrencyMismatch, "invoice is in %s, payment in %q", inv.Currency, amount.Currency)
		}
		if !method.Valid() {
			return invalid("method", ErrInvalidInput, "payment method is required")
		}

		reference = strings.TrimSpace(reference)
		if reference != "" {
			for _, existing := range payments {
				if existing.Reference() == reference {
					return invalid("transaction_reference", ErrDuplicatePayment,
						"reference %q already recorded as %s", reference, existing.ID)
				}
			}
		}

		paid := reconcile.AmountPaid(inv.Currency, payments)
		if outstanding := reconcile.Outstanding(inv.TotalAmount, paid); amount.GreaterThan(outstanding) {
			return invalid("amount", ErrExceedsBalance, "payment %s exceeds outstanding balance %s", amount, outstanding)
		}

		now := f.now()
		p = &payment.Payment{
			Entity:      types.NewEntityAt(now),
			ID:          id.NewPaymentID(),
			InvoiceID:   inv.ID,
			Amount:      amount,
			Method:      payment.Method(strings.TrimSpace(string(method))),
			Status:      payment.StatusCompleted,
			PaymentTime: now,
		}
		if reference != "" {
			p.TransactionReference = &reference
		}
		if err := pays.Create(ctx, p); err != nil {
			return err
		}

		payments = append(payments, p)
		res = reconcile.Apply(inv, payments, now)
		inv.TouchAt(now)
		return invs.Update(ctx, inv)
	})
	if err != nil {
		if !IsValidationError(err) && !IsNotFound(err) {
			f.logger.Error("payment not recorded",
				"invoice_id", invoiceID.String(),
				"error", err,
			)
		}
		return nil, err
	}

	f.logger.Info("payment recorded",
		"invoice_id", inv.ID.String(),
		"payment_id", p.ID.String(),
		"amount", p.Amount.String(),
		"method", string(p.Method),
		"outstanding", inv.OutstandingBalance.String(),
		"status", inv.Status,
	)

	inv = withPayments(inv, payments)
	f.plugins.EmitPaymentRecorded(ctx, inv, p)
	f.emitReconciled(ctx, inv, res)
	return p, nil
}

// RefundPayment refunds a completed payment and reconciles its invoice.
// A payment can be refunded once.
func (f *Folio) RefundPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	p, err := f.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var (
		inv      *invoice.Invoice
		payments []*payment.Payment
		res      reconcile.Result
	)
	err = f.inTx(ctx, p.InvoiceID, func(ctx context.Context, invs invoice.Store, pays payment.Store) error {
		// Re-read under the invoice lock; a concurrent refund may have won.
		var err error
		p, err = pays.Get(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status == payment.StatusRefunded {
			return ErrPaymentAlreadyRefunded
		}

		now := f.now()
		if err := pays.MarkRefunded(ctx, paymentID, now); err != nil {
			return err
		}
		p.Status = payment.StatusRefunded
		p.RefundedAt = &now
		p.TouchAt(now)

		inv, payments, err = load(ctx, invs, pays, p.InvoiceID)
		if err != nil {
			return err
		}
		res = reconcile.Apply(inv, payments, now)
		inv.TouchAt(now)
		return invs.Update(ctx, inv)
	})
	if err != nil {
		if !IsInvalidState(err) && !IsNotFound(err) {
			f.logger.Error("payment not refunded",
				"payment_id", paymentID.String(),
				"error", err,
			)
		}
		return nil, err
	}

	f.logger.Info("payment refunded",
		"invoice_id", inv.ID.String(),
		"payment_id", p.ID.String(),
		"amount", p.Amount.String(),
		"outstanding", inv.OutstandingBalance.String(),
		"status", inv.Status,
	)

	inv = withPayments(inv, payments)
	f.plugins.EmitPaymentRefunded(ctx, inv, p)
	f.emitReconciled(ctx, inv, res)
	return p, nil
}

// GetPayment returns a payment by id.
func (f *Folio) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return f.store.GetPayment(ctx, paymentID)
}

// ListPayments returns an invoice's payments in chronological order.
func (f *Folio) ListPayments(ctx context.Context, invoiceID id.InvoiceID) ([]*payment.Payment, error) {
	if _, err := f.store.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return f.store.ListPaymentsByInvoice(ctx, invoiceID)
}

// OutstandingBalance returns what is still owed on an invoice.
func (f *Folio) OutstandingBalance(ctx context.Context, invoiceID id.InvoiceID) (types.Money, error) {
	inv, err := f.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return types.Money{}, err
	}
	return inv.OutstandingBalance, nil
}
