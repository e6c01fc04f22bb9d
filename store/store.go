// Package store defines the aggregate persistence interface for folio.
package store

import (
	"context"
	"time"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
)

// Ledger is the set of entity operations. Methods are declared explicitly,
// prefixed by entity, so that the invoice and payment contracts do not
// collide.
type Ledger interface {
	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	GetInvoicesByStay(ctx context.Context, stayID id.StayID) ([]*invoice.Invoice, error)
	ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error

	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error)
	ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error)
	MarkPaymentRefunded(ctx context.Context, payID id.PaymentID, at time.Time) error
}

// TxFunc is the body of an invoice transaction. It must do all of its
// reads and writes through ctx and tx.
type TxFunc func(ctx context.Context, tx Ledger) error

// Store is the unified storage interface for all Folio entities.
type Store interface {
	Ledger

	// InvoiceTx runs fn while holding an exclusive write lock on the
	// invoice, shared by every Store value over the same database. Writes
	// made through tx take effect together when fn returns nil and are
	// undone when it returns an error. It fails with a not-found error
	// when the invoice does not exist.
	InvoiceTx(ctx context.Context, invID id.InvoiceID, fn TxFunc) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Invoices adapts a Ledger to the invoice.Store contract. The engine works
// through these adapters inside invoice transactions.
func Invoices(l Ledger) invoice.Store { return invoiceStore{l} }

// Payments adapts a Ledger to the payment.Store contract.
func Payments(l Ledger) payment.Store { return paymentStore{l} }

type invoiceStore struct{ s Ledger }

func (a invoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	return a.s.CreateInvoice(ctx, inv)
}

func (a invoiceStore) Get(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return a.s.GetInvoice(ctx, invID)
}

func (a invoiceStore) GetByStay(ctx context.Context, stayID id.StayID) ([]*invoice.Invoice, error) {
	return a.s.GetInvoicesByStay(ctx, stayID)
}

func (a invoiceStore) List(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return a.s.ListInvoices(ctx, opts)
}

func (a invoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return a.s.UpdateInvoice(ctx, inv)
}

type paymentStore struct{ s Ledger }

func (a paymentStore) Create(ctx context.Context, p *payment.Payment) error {
	return a.s.CreatePayment(ctx, p)
}

func (a paymentStore) Get(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	return a.s.GetPayment(ctx, payID)
}

func (a paymentStore) ListByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return a.s.ListPaymentsByInvoice(ctx, invID)
}

func (a paymentStore) MarkRefunded(ctx context.Context, payID id.PaymentID, at time.Time) error {
	return a.s.MarkPaymentRefunded(ctx, payID, at)
}
