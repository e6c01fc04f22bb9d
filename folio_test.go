package folio_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/folio"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store"
	"github.com/xraph/folio/store/memory"
	"github.com/xraph/folio/types"
)

var checkIn = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	f     *folio.Folio
	store *memory.Store
	stays *stay.MemorySource
	clock *clock
}

func newFixture(t *testing.T, opts ...folio.Option) *fixture {
	t.Helper()
	fx := &fixture{
		store: memory.New(),
		stays: stay.NewMemorySource(),
		clock: &clock{now: checkIn.Add(20 * time.Hour)},
	}
	base := []folio.Option{
		folio.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		folio.WithClock(fx.clock.Now),
	}
	fx.f = folio.New(fx.store, fx.stays, append(base, opts...)...)
	require.NoError(t, fx.f.Start(context.Background()))
	t.Cleanup(func() { _ = fx.f.Stop() })
	return fx
}

// addStay registers a one-night $150 stay with a $50 incidental.
func (fx *fixture) addStay(t *testing.T) id.StayID {
	t.Helper()
	rate := types.USD(15000)
	out := checkIn.Add(20 * time.Hour)
	resv := id.NewReservationID()
	stayID := fx.stays.Put(&stay.Stay{
		ReservationID: &resv,
		RoomNumber:    "204",
		NightlyRate:   &rate,
		CheckIn:       checkIn,
		CheckOut:      &out,
	})
	_, err := fx.stays.AddIncidental(stayID, "Dinner", types.USD(5000), checkIn.Add(4*time.Hour))
	require.NoError(t, err)
	return stayID
}

func (fx *fixture) generate(t *testing.T) *invoice.Invoice {
	t.Helper()
	inv, err := fx.f.GenerateInvoice(context.Background(), fx.addStay(t))
	require.NoError(t, err)
	return inv
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	stayID := fx.addStay(t)

	// 1. Generate: (150 + 50) * 1.10 = 220.
	inv, err := fx.f.GenerateInvoice(ctx, stayID)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Nights)
	assert.Equal(t, types.USD(15000), inv.RoomCharges)
	assert.Equal(t, types.USD(5000), inv.IncidentalCharges)
	assert.Equal(t, types.USD(2000), inv.Taxes)
	assert.Equal(t, types.USD(22000), inv.TotalAmount)
	assert.Equal(t, types.USD(22000), inv.OutstandingBalance)
	assert.Equal(t, invoice.StatusUnpaid, inv.Status)
	assert.Equal(t, "0.1", inv.TaxRate)

	// 6 (before). Unpaid list contains it.
	unpaid, err := fx.f.ListUnpaidInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)
	assert.Equal(t, inv.ID, unpaid[0].ID)

	// 2. Pay $100 by card.
	card, err := fx.f.ProcessPayment(ctx, inv.ID, types.USD(10000), payment.MethodCreditCard)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, card.Status)

	got, err := fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(10000), got.AmountPaid)
	assert.Equal(t, types.USD(12000), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status)

	partial, err := fx.f.ListPartiallyPaidInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, partial, 1)

	// 3. Pay the remaining $120 in cash.
	_, err = fx.f.ProcessPayment(ctx, inv.ID, types.USD(12000), payment.MethodCash)
	require.NoError(t, err)

	got, err = fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(22000), got.AmountPaid)
	assert.Equal(t, types.USD(0), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Len(t, got.Payments, 2)

	// 6 (after). No longer unpaid.
	unpaid, err = fx.f.ListUnpaidInvoices(ctx)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	// 4. One cent more is rejected.
	_, err = fx.f.ProcessPayment(ctx, inv.ID, types.USD(1), payment.MethodCash)
	assert.ErrorIs(t, err, folio.ErrExceedsBalance)

	// 5. Refund the card payment.
	refunded, err := fx.f.RefundPayment(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, refunded.Status)
	assert.NotNil(t, refunded.RefundedAt)

	got, err = fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(12000), got.AmountPaid)
	assert.Equal(t, types.USD(10000), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status)
	assert.Nil(t, got.PaidAt)

	require.NoError(t, fx.f.Audit(ctx, inv.ID))
}

func TestGenerateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("Round trip", func(t *testing.T) {
		fx := newFixture(t)
		inv := fx.generate(t)

		balance, err := fx.f.OutstandingBalance(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, inv.TotalAmount, balance)
		assert.NotNil(t, inv.StayID)
		assert.NotNil(t, inv.ReservationID)
		assert.Nil(t, inv.DueDate)
	})

	t.Run("Missing stay", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.f.GenerateInvoice(ctx, id.NewStayID())
		assert.ErrorIs(t, err, folio.ErrStayNotFound)
		assert.True(t, folio.IsNotFound(err))
	})

	t.Run("Not idempotent", func(t *testing.T) {
		fx := newFixture(t)
		stayID := fx.addStay(t)
		first, err := fx.f.GenerateInvoice(ctx, stayID)
		require.NoError(t, err)
		second, err := fx.f.GenerateInvoice(ctx, stayID)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		all, err := fx.f.ListInvoicesByStay(ctx, stayID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		latest, err := fx.f.GetInvoiceByStay(ctx, stayID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)

		_, err = fx.f.GetInvoiceByStay(ctx, id.NewStayID())
		assert.ErrorIs(t, err, folio.ErrInvoiceNotFound)
	})

	t.Run("Default nightly rate", func(t *testing.T) {
		fx := newFixture(t)
		out := checkIn.Add(44 * time.Hour)
		stayID := fx.stays.Put(&stay.Stay{RoomNumber: "101", CheckIn: checkIn, CheckOut: &out})

		room, err := fx.f.ComputeRoomCharges(ctx, stayID)
		require.NoError(t, err)
		assert.Equal(t, types.USD(20000), room)

		b, err := fx.f.ComputeTotalCharges(ctx, stayID)
		require.NoError(t, err)
		assert.Equal(t, 2, b.Nights)
		assert.Equal(t, types.USD(22000), b.Total())
	})

	t.Run("Payment terms", func(t *testing.T) {
		fx := newFixture(t, folio.WithPaymentTerms(30*24*time.Hour))
		inv := fx.generate(t)
		require.NotNil(t, inv.DueDate)
		assert.Equal(t, inv.IssuedTime.Add(30*24*time.Hour), *inv.DueDate)
	})
}

func TestComputeTax(t *testing.T) {
	fx := newFixture(t)
	assert.Equal(t, types.USD(2000), fx.f.ComputeTax(types.USD(20000)))
	assert.Equal(t, types.USD(0), fx.f.ComputeTax(types.USD(0)))
}

func TestPaymentValidation(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	tests := []struct {
		name    string
		invoice id.InvoiceID
		amount  types.Money
		method  payment.Method
		want    error
	}{
		{"Unknown invoice", id.NewInvoiceID(), types.USD(100), payment.MethodCash, folio.ErrInvoiceNotFound},
		{"Zero amount", inv.ID, types.USD(0), payment.MethodCash, folio.ErrInvalidAmount},
		{"Negative amount", inv.ID, types.USD(-500), payment.MethodCash, folio.ErrInvalidAmount},
		{"Wrong currency", inv.ID, types.EUR(100), payment.MethodCash, folio.ErrCurrencyMismatch},
		{"Blank method", inv.ID, types.USD(100), "  ", folio.ErrInvalidInput},
		{"Exceeds balance", inv.ID, types.USD(22001), payment.MethodCash, folio.ErrExceedsBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.f.ProcessPayment(ctx, tt.invoice, tt.amount, tt.method)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	payments, err := fx.f.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments, "rejected payments are never stored")

	_, err = fx.f.ListPayments(ctx, id.NewInvoiceID())
	assert.ErrorIs(t, err, folio.ErrInvoiceNotFound)
}

func TestOpenPaymentMethod(t *testing.T) {
	fx := newFixture(t)
	inv := fx.generate(t)

	p, err := fx.f.ProcessPayment(context.Background(), inv.ID, types.USD(500), "Voucher")
	require.NoError(t, err)
	assert.Equal(t, payment.Method("Voucher"), p.Method)
}

func TestDuplicateReference(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	first, err := fx.f.ProcessPaymentWithReference(ctx, inv.ID, types.USD(5000), payment.MethodCreditCard, "TXN-1001")
	require.NoError(t, err)
	assert.Equal(t, "TXN-1001", first.Reference())

	_, err = fx.f.ProcessPaymentWithReference(ctx, inv.ID, types.USD(5000), payment.MethodCreditCard, "TXN-1001")
	assert.ErrorIs(t, err, folio.ErrDuplicatePayment)
	assert.True(t, folio.IsValidationError(err))

	other := fx.generate(t)
	_, err = fx.f.ProcessPaymentWithReference(ctx, other.ID, types.USD(5000), payment.MethodCreditCard, "TXN-1001")
	assert.NoError(t, err, "references are scoped to one invoice")

	got, err := fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(5000), got.AmountPaid)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	p, err := fx.f.ProcessPayment(ctx, inv.ID, types.USD(22000), payment.MethodCash)
	require.NoError(t, err)

	_, err = fx.f.RefundPayment(ctx, p.ID)
	require.NoError(t, err)

	_, err = fx.f.RefundPayment(ctx, p.ID)
	assert.ErrorIs(t, err, folio.ErrPaymentAlreadyRefunded)
	assert.True(t, folio.IsInvalidState(err))

	got, err := fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(0), got.AmountPaid)
	assert.Equal(t, types.USD(22000), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusUnpaid, got.Status)

	_, err = fx.f.RefundPayment(ctx, id.NewPaymentID())
	assert.ErrorIs(t, err, folio.ErrPaymentNotFound)

	stored, err := fx.f.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, stored.Status)
}

func TestDiscount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	got, err := fx.f.ApplyDiscount(ctx, inv.ID, types.USD(2000), "loyalty")
	require.NoError(t, err)
	assert.Equal(t, types.USD(20000), got.TotalAmount)
	assert.Equal(t, types.USD(20000), got.OutstandingBalance)
	require.NotNil(t, got.DiscountReason)
	assert.Equal(t, "loyalty", *got.DiscountReason)

	_, err = fx.f.ProcessPayment(ctx, inv.ID, types.USD(20000), payment.MethodCash)
	require.NoError(t, err)
	got, err = fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, got.Status)

	got, err = fx.f.RemoveDiscount(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(22000), got.TotalAmount)
	assert.Equal(t, types.USD(2000), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status)
	assert.Nil(t, got.DiscountReason)

	_, err = fx.f.ApplyDiscount(ctx, inv.ID, types.USD(-1), "")
	assert.ErrorIs(t, err, folio.ErrInvalidAmount)

	_, err = fx.f.ApplyDiscount(ctx, inv.ID, types.USD(22001), "")
	assert.ErrorIs(t, err, folio.ErrInvalidDiscount)

	require.NoError(t, fx.f.Audit(ctx, inv.ID))
}

func TestRegenerateInvoice(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	stayID := fx.addStay(t)

	inv, err := fx.f.GenerateInvoice(ctx, stayID)
	require.NoError(t, err)
	_, err = fx.f.ProcessPayment(ctx, inv.ID, types.USD(22000), payment.MethodCash)
	require.NoError(t, err)

	_, err = fx.stays.AddIncidental(stayID, "Laundry", types.USD(3000), checkIn.Add(6*time.Hour))
	require.NoError(t, err)

	got, err := fx.f.RegenerateInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(8000), got.IncidentalCharges)
	assert.Equal(t, types.USD(2300), got.Taxes)
	assert.Equal(t, types.USD(25300), got.TotalAmount)
	assert.Equal(t, types.USD(3300), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status)
	assert.Equal(t, inv.IssuedTime, got.IssuedTime)

	fx.stays.Delete(stayID)
	unchanged, err := fx.f.RegenerateInvoice(ctx, inv.ID)
	assert.ErrorIs(t, err, folio.ErrStayNotFound)
	require.NotNil(t, unchanged)
	assert.Equal(t, types.USD(25300), unchanged.TotalAmount)

	require.NoError(t, fx.f.Audit(ctx, inv.ID))
}

func TestRegenerateCapsDiscount(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	stayID := fx.addStay(t)

	inv, err := fx.f.GenerateInvoice(ctx, stayID)
	require.NoError(t, err)
	_, err = fx.f.ApplyDiscount(ctx, inv.ID, types.USD(22000), "comp")
	require.NoError(t, err)

	stored, err := fx.stays.GetStay(ctx, stayID)
	require.NoError(t, err)
	require.NoError(t, fx.stays.VoidIncidental(stayID, stored.Incidentals[0].ID))

	got, err := fx.f.RegenerateInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(16500), got.Discounts)
	assert.Equal(t, types.USD(0), got.TotalAmount)
	require.NoError(t, fx.f.Audit(ctx, inv.ID))
}

func TestUpdateInvoiceStatus(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	got, err := fx.f.UpdateInvoiceStatus(ctx, inv.ID, "overdue")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusOverdue, got.Status)
	assert.Equal(t, inv.TotalAmount, got.TotalAmount)
	require.NoError(t, fx.f.Audit(ctx, inv.ID))

	overdue, err := fx.f.ListInvoicesByStatus(ctx, "Overdue")
	require.NoError(t, err)
	assert.Len(t, overdue, 1)

	_, err = fx.f.UpdateInvoiceStatus(ctx, inv.ID, "VOID")
	assert.ErrorIs(t, err, folio.ErrInvalidStatus)
	_, err = fx.f.ListInvoicesByStatus(ctx, "VOID")
	assert.ErrorIs(t, err, folio.ErrInvalidStatus)

	_, err = fx.f.UpdateInvoiceStatus(ctx, id.NewInvoiceID(), "PAID")
	assert.ErrorIs(t, err, folio.ErrInvoiceNotFound)

	_, err = fx.f.ProcessPayment(ctx, inv.ID, types.USD(100), payment.MethodCash)
	require.NoError(t, err)
	got, err = fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status, "the next payment re-derives status")
}

func TestAuditDetectsDrift(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	_, err := fx.f.UpdateInvoiceStatus(ctx, inv.ID, "PAID")
	require.NoError(t, err)
	assert.ErrorIs(t, fx.f.Audit(ctx, inv.ID), folio.ErrInvariant)
}

func TestTotalRevenue(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	day := 24 * time.Hour

	dayOne := fx.clock.Now()
	a := fx.generate(t)
	fx.clock.Advance(day)
	fx.generate(t)
	fx.clock.Advance(day)
	c := fx.generate(t)

	for _, inv := range []*invoice.Invoice{a, c} {
		_, err := fx.f.ProcessPayment(ctx, inv.ID, inv.TotalAmount, payment.MethodCash)
		require.NoError(t, err)
	}

	all, err := fx.f.TotalRevenue(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, types.USD(44000), all)

	window, err := fx.f.TotalRevenue(ctx, dayOne.Add(day), dayOne.Add(3*day))
	require.NoError(t, err)
	assert.Equal(t, types.USD(22000), window)

	before, err := fx.f.TotalRevenue(ctx, time.Time{}, dayOne)
	require.NoError(t, err)
	assert.Equal(t, types.USD(0), before)
}

func TestListInvoices(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	first := fx.generate(t)
	second := fx.generate(t)

	all, err := fx.f.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	unpaid, err := fx.f.ListInvoicesByStatus(ctx, "unpaid")
	require.NoError(t, err)
	assert.Len(t, unpaid, 2)
}

func TestConcurrentPayments(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.f.ProcessPayment(ctx, inv.ID, types.USD(1000), payment.MethodCash)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			assert.ErrorIs(t, err, folio.ErrExceedsBalance)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 22, accepted)
	assert.Equal(t, 18, rejected)

	got, err := fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(22000), got.AmountPaid)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	require.NoError(t, fx.f.Audit(ctx, inv.ID))
}

type events struct {
	mu   sync.Mutex
	seen []string
}

func (e *events) Name() string { return "events" }

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = append(e.seen, s)
}

func (e *events) OnInit(context.Context, any) error { e.add("init"); return nil }

func (e *events) OnInvoiceGenerated(context.Context, *invoice.Invoice) error {
	e.add("generated")
	return nil
}

func (e *events) OnPaymentRecorded(_ context.Context, _ *invoice.Invoice, p *payment.Payment) error {
	e.add("payment " + p.Amount.String())
	return nil
}

func (e *events) OnPaymentRefunded(_ context.Context, _ *invoice.Invoice, p *payment.Payment) error {
	e.add("refund " + p.Amount.String())
	return nil
}

func (e *events) OnInvoiceStatusChanged(_ context.Context, _ *invoice.Invoice, from, to invoice.Status) error {
	e.add(string(from) + "->" + string(to))
	return nil
}

func (e *events) OnInvoicePaid(context.Context, *invoice.Invoice) error {
	e.add("paid")
	return nil
}

func TestPluginEvents(t *testing.T) {
	ctx := context.Background()
	ev := &events{}
	fx := newFixture(t, folio.WithPlugin(ev))
	inv := fx.generate(t)

	p, err := fx.f.ProcessPayment(ctx, inv.ID, types.USD(22000), payment.MethodCash)
	require.NoError(t, err)
	_, err = fx.f.RefundPayment(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"init",
		"generated",
		"payment $220.00",
		"UNPAID->PAID",
		"paid",
		"refund $220.00",
		"PAID->UNPAID",
	}, ev.seen)
}

func TestStop(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, fx.f.Stop())
	assert.ErrorIs(t, fx.store.Ping(context.Background()), folio.ErrStoreClosed)
}

type failingMigrate struct {
	*memory.Store
}

func (failingMigrate) Migrate(context.Context) error { return folio.ErrMigrationFailed }

func TestWithoutMigrate(t *testing.T) {
	s := failingMigrate{memory.New()}

	f := folio.New(s, stay.NewMemorySource())
	assert.ErrorIs(t, f.Start(context.Background()), folio.ErrMigrationFailed)

	f = folio.New(s, stay.NewMemorySource(), folio.WithoutMigrate())
	assert.NoError(t, f.Start(context.Background()))
}

// wrappedStore decorates the ledger handed to invoice transactions.
type wrappedStore struct {
	*memory.Store
	wrap func(store.Ledger) store.Ledger
}

func (s wrappedStore) InvoiceTx(ctx context.Context, invID id.InvoiceID, fn store.TxFunc) error {
	return s.Store.InvoiceTx(ctx, invID, func(ctx context.Context, tx store.Ledger) error {
		return fn(ctx, s.wrap(tx))
	})
}

// slowLedger widens the gap between reading payments and writing one.
type slowLedger struct{ store.Ledger }

func (l slowLedger) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	time.Sleep(10 * time.Millisecond)
	return l.Ledger.ListPaymentsByInvoice(ctx, invID)
}

var errUpdate = errors.New("update failed")

type failingLedger struct{ store.Ledger }

func (failingLedger) UpdateInvoice(context.Context, *invoice.Invoice) error { return errUpdate }

func quietLogger() folio.Option {
	return folio.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFacadesShareInvoiceLock(t *testing.T) {
	ctx := context.Background()
	st := wrappedStore{
		Store: memory.New(),
		wrap:  func(l store.Ledger) store.Ledger { return slowLedger{l} },
	}
	stays := stay.NewMemorySource()
	front := folio.New(st, stays, quietLogger())
	back := folio.New(st, stays, quietLogger())

	rate := types.USD(15000)
	out := checkIn.Add(20 * time.Hour)
	stayID := stays.Put(&stay.Stay{RoomNumber: "101", NightlyRate: &rate, CheckIn: checkIn, CheckOut: &out})
	inv, err := front.GenerateInvoice(ctx, stayID)
	require.NoError(t, err)
	require.Equal(t, types.USD(16500), inv.TotalAmount)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, f := range []*folio.Folio{front, back} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.ProcessPayment(ctx, inv.ID, types.USD(16500), payment.MethodCreditCard)
		}()
	}
	wg.Wait()

	var accepted int
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, folio.ErrExceedsBalance)
	}
	assert.Equal(t, 1, accepted)

	payments, err := back.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	got, err := front.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(16500), got.AmountPaid)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	require.NoError(t, back.Audit(ctx, inv.ID))
}

func TestFailedReconcileRollsBack(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	inv := fx.generate(t)

	first, err := fx.f.ProcessPayment(ctx, inv.ID, types.USD(5000), payment.MethodCash)
	require.NoError(t, err)

	broken := folio.New(wrappedStore{
		Store: fx.store,
		wrap:  func(l store.Ledger) store.Ledger { return failingLedger{l} },
	}, fx.stays, quietLogger())

	_, err = broken.ProcessPayment(ctx, inv.ID, types.USD(5000), payment.MethodCash)
	assert.ErrorIs(t, err, errUpdate)

	payments, err := fx.f.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, first.ID, payments[0].ID)

	_, err = broken.RefundPayment(ctx, first.ID)
	assert.ErrorIs(t, err, errUpdate)

	p, err := fx.f.GetPayment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Nil(t, p.RefundedAt)

	_, err = broken.ApplyDiscount(ctx, inv.ID, types.USD(1000), "goodwill")
	assert.ErrorIs(t, err, errUpdate)

	got, err := fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(5000), got.AmountPaid)
	assert.True(t, got.Discounts.IsZero())
	require.NoError(t, fx.f.Audit(ctx, inv.ID))
}

func TestStayCurrencyMismatch(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	stayID := fx.stays.Put(&stay.Stay{RoomNumber: "310", CheckIn: checkIn})
	_, err := fx.stays.AddIncidental(stayID, "Spa", types.EUR(500), checkIn.Add(time.Hour))
	require.NoError(t, err)

	_, err = fx.f.GenerateInvoice(ctx, stayID)
	assert.ErrorIs(t, err, folio.ErrCurrencyMismatch)
	_, err = fx.f.ComputeTotalCharges(ctx, stayID)
	assert.ErrorIs(t, err, folio.ErrCurrencyMismatch)

	eur := types.EUR(9000)
	rated := fx.stays.Put(&stay.Stay{RoomNumber: "311", NightlyRate: &eur, CheckIn: checkIn})
	_, err = fx.f.ComputeRoomCharges(ctx, rated)
	assert.ErrorIs(t, err, folio.ErrCurrencyMismatch)

	validStay := fx.addStay(t)
	inv, err := fx.f.GenerateInvoice(ctx, validStay)
	require.NoError(t, err)
	_, err = fx.stays.AddIncidental(validStay, "Spa", types.EUR(500), checkIn.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = fx.f.RegenerateInvoice(ctx, inv.ID)
	assert.ErrorIs(t, err, folio.ErrCurrencyMismatch)
	assert.True(t, folio.IsValidationError(err))

	got, err := fx.f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.TotalAmount, got.TotalAmount)
}
