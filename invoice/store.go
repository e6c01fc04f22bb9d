package invoice

import (
	"context"
	"time"

	"github.com/xraph/folio/id"
)

// Store persists invoices. Results are ordered by invoice id, which is
// creation order.
type Store interface {
	// Create inserts a new invoice. A nil ID is assigned, an empty status
	// becomes UNPAID and a zero IssuedTime becomes now.
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetByStay(ctx context.Context, stayID id.StayID) ([]*Invoice, error)
	List(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	// Update replaces a stored invoice. It fails with a not-found error when
	// the invoice does not exist.
	Update(ctx context.Context, inv *Invoice) error
}

// ListOpts filters List. Zero values disable a filter.
type ListOpts struct {
	Status     Status
	IssuedFrom time.Time // inclusive
	IssuedTo   time.Time // exclusive
	Limit      int
	Offset     int
}
