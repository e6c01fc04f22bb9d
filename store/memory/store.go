// Package memory provides an in-process Store backed by arena slices with
// id-to-index maps. It is safe for concurrent use and returns copies, so
// callers never alias stored state. Invoice transactions hold a per-invoice
// mutex and journal their writes so a failed transaction is undone.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xraph/folio"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/store"
)

var _ store.Store = (*Store)(nil)

// Store is an in-memory store.Store. The zero value is not usable; call New.
type Store struct {
	mu    sync.RWMutex
	locks *keyedMutex

	// Invoice arena, indexed by id and by stay id.
	invoices       []*invoice.Invoice
	invoiceIndex   map[string]int
	invoicesByStay map[string][]int

	// Payment arena, indexed by id and by invoice id.
	payments          []*payment.Payment
	paymentIndex      map[string]int
	paymentsByInvoice map[string][]int

	closed bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		locks:             newKeyedMutex(),
		invoiceIndex:      make(map[string]int),
		invoicesByStay:    make(map[string][]int),
		paymentIndex:      make(map[string]int),
		paymentsByInvoice: make(map[string][]int),
	}
}

// Invoice Store implementation

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return folio.ErrStoreClosed
	}
	if inv.ID.IsNil() {
		inv.ID = id.NewInvoiceID()
	}
	key := inv.ID.String()
	if _, exists := s.invoiceIndex[key]; exists {
		return folio.ErrAlreadyExists
	}
	now := time.Now().UTC()
	if inv.Status == "" {
		inv.Status = invoice.StatusUnpaid
	}
	if inv.IssuedTime.IsZero() {
		inv.IssuedTime = now
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
		inv.UpdatedAt = now
	}

	s.invoices = append(s.invoices, stored(inv))
	idx := len(s.invoices) - 1
	s.invoiceIndex[key] = idx
	if inv.StayID != nil {
		stayKey := inv.StayID.String()
		s.invoicesByStay[stayKey] = append(s.invoicesByStay[stayKey], idx)
	}
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.invoiceIndex[invID.String()]
	if !ok {
		return nil, folio.ErrInvoiceNotFound
	}
	return s.invoices[idx].Clone(), nil
}

func (s *Store) GetInvoicesByStay(_ context.Context, stayID id.StayID) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.invoicesByStay[stayID.String()]
	result := make([]*invoice.Invoice, 0, len(idxs))
	for _, idx := range idxs {
		result = append(result, s.invoices[idx].Clone())
	}
	return result, nil
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range s.invoices {
		if inv == nil {
			continue
		}
		if opts.Status != "" && !strings.EqualFold(string(inv.Status), string(opts.Status)) {
			continue
		}
		if !opts.IssuedFrom.IsZero() && inv.IssuedTime.Before(opts.IssuedFrom) {
			continue
		}
		if !opts.IssuedTo.IsZero() && !inv.IssuedTime.Before(opts.IssuedTo) {
			continue
		}
		result = append(result, inv.Clone())
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.invoiceIndex[inv.ID.String()]
	if !ok {
		return folio.ErrInvoiceNotFound
	}
	existing := s.invoices[idx]
	inv.UpdatedAt = time.Now().UTC()

	next := stored(inv)
	// Identity, stay link and issue time are fixed at creation.
	next.StayID = existing.StayID
	next.IssuedTime = existing.IssuedTime
	next.CreatedAt = existing.CreatedAt
	s.invoices[idx] = next
	return nil
}

// Payment Store implementation

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return folio.ErrStoreClosed
	}
	invKey := p.InvoiceID.String()
	if _, ok := s.invoiceIndex[invKey]; !ok {
		return folio.ErrInvoiceNotFound
	}
	if p.ID.IsNil() {
		p.ID = id.NewPaymentID()
	}
	key := p.ID.String()
	if _, exists := s.paymentIndex[key]; exists {
		return folio.ErrAlreadyExists
	}
	now := time.Now().UTC()
	if p.Status == "" {
		p.Status = payment.StatusCompleted
	}
	if p.PaymentTime.IsZero() {
		p.PaymentTime = now
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
		p.UpdatedAt = now
	}

	s.payments = append(s.payments, p.Clone())
	idx := len(s.payments) - 1
	s.paymentIndex[key] = idx
	s.paymentsByInvoice[invKey] = append(s.paymentsByInvoice[invKey], idx)
	return nil
}

func (s *Store) GetPayment(_ context.Context, payID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.paymentIndex[payID.String()]
	if !ok {
		return nil, folio.ErrPaymentNotFound
	}
	return s.payments[idx].Clone(), nil
}

func (s *Store) ListPaymentsByInvoice(_ context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.paymentsByInvoice[invID.String()]
	result := make([]*payment.Payment, 0, len(idxs))
	for _, idx := range idxs {
		result = append(result, s.payments[idx].Clone())
	}
	return result, nil
}

func (s *Store) MarkPaymentRefunded(_ context.Context, payID id.PaymentID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.paymentIndex[payID.String()]
	if !ok {
		return folio.ErrPaymentNotFound
	}
	p := s.payments[idx]
	refundedAt := at.UTC()
	p.Status = payment.StatusRefunded
	p.RefundedAt = &refundedAt
	p.UpdatedAt = refundedAt
	return nil
}

// Transactions

// InvoiceTx runs fn under the invoice's mutex. Writes made through tx are
// visible to readers as they happen and are reverted in reverse order when
// fn fails.
func (s *Store) InvoiceTx(ctx context.Context, invID id.InvoiceID, fn store.TxFunc) error {
	unlock := s.locks.Lock(invID.String())
	defer unlock()

	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return err
	}

	tx := &txLedger{Store: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// txLedger journals an undo step for every successful write.
type txLedger struct {
	*Store
	undo []func()
}

func (t *txLedger) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if err := t.Store.CreateInvoice(ctx, inv); err != nil {
		return err
	}
	key := inv.ID.String()
	t.undo = append(t.undo, func() { t.Store.deleteInvoice(key) })
	return nil
}

func (t *txLedger) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	prev, err := t.Store.GetInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	if err := t.Store.UpdateInvoice(ctx, inv); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { t.Store.restoreInvoice(prev) })
	return nil
}

func (t *txLedger) CreatePayment(ctx context.Context, p *payment.Payment) error {
	if err := t.Store.CreatePayment(ctx, p); err != nil {
		return err
	}
	key := p.ID.String()
	t.undo = append(t.undo, func() { t.Store.deletePayment(key) })
	return nil
}

func (t *txLedger) MarkPaymentRefunded(ctx context.Context, payID id.PaymentID, at time.Time) error {
	prev, err := t.Store.GetPayment(ctx, payID)
	if err != nil {
		return err
	}
	if err := t.Store.MarkPaymentRefunded(ctx, payID, at); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { t.Store.restorePayment(prev) })
	return nil
}

func (t *txLedger) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *Store) restoreInvoice(inv *invoice.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.invoiceIndex[inv.ID.String()]; ok {
		s.invoices[idx] = stored(inv)
	}
}

func (s *Store) deleteInvoice(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.invoiceIndex[key]
	if !ok {
		return
	}
	if stayID := s.invoices[idx].StayID; stayID != nil {
		stayKey := stayID.String()
		s.invoicesByStay[stayKey] = without(s.invoicesByStay[stayKey], idx)
	}
	s.invoices[idx] = nil
	delete(s.invoiceIndex, key)
}

func (s *Store) restorePayment(p *payment.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.paymentIndex[p.ID.String()]; ok {
		s.payments[idx] = p.Clone()
	}
}

func (s *Store) deletePayment(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.paymentIndex[key]
	if !ok {
		return
	}
	invKey := s.payments[idx].InvoiceID.String()
	s.paymentsByInvoice[invKey] = without(s.paymentsByInvoice[invKey], idx)
	s.payments[idx] = nil
	delete(s.paymentIndex, key)
}

// Lifecycle

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return folio.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// stored copies an invoice for the arena. Payments are hydrated by the
// engine on read and never stored on the invoice row.
func stored(inv *invoice.Invoice) *invoice.Invoice {
	c := inv.Clone()
	c.Payments = nil
	return c
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func without(idxs []int, idx int) []int {
	out := idxs[:0:0]
	for _, i := range idxs {
		if i != idx {
			out = append(out, i)
		}
	}
	return out
}

// keyedMutex serializes work per key. Entries are dropped once no
// goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the lock for key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
