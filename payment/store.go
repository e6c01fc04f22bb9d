package payment

import (
	"context"
	"time"

	"github.com/xraph/folio/id"
)

// Store persists payments. A refund flips the status of an existing row
// rather than adding one.
type Store interface {
	// Create inserts a payment for an existing invoice. A nil ID is
	// assigned and a zero PaymentTime becomes now.
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, payID id.PaymentID) (*Payment, error)
	// ListByInvoice returns an invoice's payments in chronological order.
	ListByInvoice(ctx context.Context, invID id.InvoiceID) ([]*Payment, error)
	// MarkRefunded sets the payment's status to REFUNDED, stamped at.
	MarkRefunded(ctx context.Context, payID id.PaymentID, at time.Time) error
}
