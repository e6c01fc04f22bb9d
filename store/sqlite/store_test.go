package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/folio"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/stay"
	"github.com/xraph/folio/store"
	"github.com/xraph/folio/store/sqlite"
	"github.com/xraph/folio/types"
)

var checkIn = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

// newStore opens a private in-memory database and migrates it.
func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, sdb.Open(ctx, dsn))
	db, err := grove.Open(sdb)
	require.NoError(t, err)

	s := sqlite.New(db)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func newEngine(t *testing.T, s *sqlite.Store) (*folio.Folio, *stay.MemorySource) {
	t.Helper()
	stays := stay.NewMemorySource()
	f := folio.New(s, stays,
		folio.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		folio.WithClock(func() time.Time { return checkIn.Add(20 * time.Hour) }),
	)
	require.NoError(t, f.Start(context.Background()))
	return f, stays
}

func addStay(t *testing.T, stays *stay.MemorySource) id.StayID {
	t.Helper()
	rate := types.USD(15000)
	out := checkIn.Add(20 * time.Hour)
	stayID := stays.Put(&stay.Stay{RoomNumber: "204", NightlyRate: &rate, CheckIn: checkIn, CheckOut: &out})
	_, err := stays.AddIncidental(stayID, "Dinner", types.USD(5000), checkIn.Add(4*time.Hour))
	require.NoError(t, err)
	return stayID
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	f, stays := newEngine(t, newStore(t))

	inv, err := f.GenerateInvoice(ctx, addStay(t, stays))
	require.NoError(t, err)
	assert.Equal(t, types.USD(22000), inv.TotalAmount)
	assert.Equal(t, invoice.StatusUnpaid, inv.Status)

	stored, err := f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.IssuedTime.Equal(stored.IssuedTime))
	require.NotNil(t, stored.StayID)
	assert.Equal(t, *inv.StayID, *stored.StayID)

	unpaid, err := f.ListUnpaidInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, unpaid, 1)

	card, err := f.ProcessPayment(ctx, inv.ID, types.USD(10000), payment.MethodCreditCard)
	require.NoError(t, err)
	got, err := f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(12000), got.OutstandingBalance)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status)

	_, err = f.ProcessPayment(ctx, inv.ID, types.USD(12000), payment.MethodCash)
	require.NoError(t, err)
	got, err = f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
	assert.Len(t, got.Payments, 2)

	_, err = f.ProcessPayment(ctx, inv.ID, types.USD(1), payment.MethodCash)
	assert.ErrorIs(t, err, folio.ErrExceedsBalance)

	refunded, err := f.RefundPayment(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, refunded.Status)
	_, err = f.RefundPayment(ctx, card.ID)
	assert.ErrorIs(t, err, folio.ErrPaymentAlreadyRefunded)

	got, err = f.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.USD(12000), got.AmountPaid)
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Status)
	assert.Nil(t, got.PaidAt)

	require.NoError(t, f.Audit(ctx, inv.ID))
}

func TestUpdateMissingInvoice(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.UpdateInvoice(ctx, &invoice.Invoice{ID: id.NewInvoiceID(), Currency: "usd", Status: invoice.StatusUnpaid})
	assert.ErrorIs(t, err, folio.ErrInvoiceNotFound)

	err = s.InvoiceTx(ctx, id.NewInvoiceID(), func(context.Context, store.Ledger) error { return nil })
	assert.ErrorIs(t, err, folio.ErrInvoiceNotFound)
}

func TestInvoiceTxRollback(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	f, stays := newEngine(t, s)

	inv, err := f.GenerateInvoice(ctx, addStay(t, stays))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InvoiceTx(ctx, inv.ID, func(ctx context.Context, tx store.Ledger) error {
		p := &payment.Payment{InvoiceID: inv.ID, Amount: types.USD(5000), Method: payment.MethodCash}
		require.NoError(t, tx.CreatePayment(ctx, p))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	payments, err := s.ListPaymentsByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
	require.NoError(t, f.Audit(ctx, inv.ID))
}
