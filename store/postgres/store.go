// Package postgres implements store.Store on PostgreSQL through the grove
// ORM and its pgdriver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	// Registers the "pg" migration executor used by Migrate.
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"

	"github.com/xraph/folio"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	foliostore "github.com/xraph/folio/store"
)

// compile-time interface check
var _ foliostore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
	q  querier
}

// querier builds queries against the pool or an open transaction.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{db: db, pg: pg, q: pg}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("folio/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", folio.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InvoiceTx runs fn in a transaction that holds the invoice row
// with SELECT ... FOR UPDATE until commit.
func (s *Store) InvoiceTx(ctx context.Context, invID id.InvoiceID, fn foliostore.TxFunc) error {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("folio/postgres: begin invoice tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	locked := new(invoiceModel)
	err = tx.NewSelect(locked).
		Where("id = $1", invID.String()).
		ForUpdate().
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return folio.ErrInvoiceNotFound
		}
		return fmt.Errorf("folio/postgres: lock invoice: %w", err)
	}

	if err := fn(ctx, &Store{db: s.db, pg: s.pg, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("folio/postgres: commit invoice tx: %w", err)
	}
	return nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	prepareInvoice(inv)
	if _, err := s.q.NewInsert(toInvoiceModel(inv)).Exec(ctx); err != nil {
		return fmt.Errorf("folio/postgres: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.q.NewSelect(m).
		Where("id = $1", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, folio.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("folio/postgres: get invoice: %w", err)
	}
	return fromInvoiceModel(m)
}

func (s *Store) GetInvoicesByStay(ctx context.Context, stayID id.StayID) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.q.NewSelect(&models).
		Where("stay_id = $1", stayID.String()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("folio/postgres: invoices by stay: %w", err)
	}
	return fromInvoiceModels(models)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.q.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), strings.ToUpper(string(opts.Status)))
	}
	if !opts.IssuedFrom.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("issued_time >= $%d", argIdx), opts.IssuedFrom.UTC())
	}
	if !opts.IssuedTo.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("issued_time < $%d", argIdx), opts.IssuedTo.UTC())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("folio/postgres: list invoices: %w", err)
	}
	return fromInvoiceModels(models)
}

// UpdateInvoice rewrites the mutable columns of an invoice. The stay link,
// issue time and metadata are fixed at creation.
func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	inv.UpdatedAt = now()
	m := toInvoiceModel(inv)
	res, err := s.q.NewUpdate((*invoiceModel)(nil)).
		Set("nights = $1", m.Nights).
		Set("room_charges_cents = $2", m.RoomChargesCents).
		Set("incidental_charges_cents = $3", m.IncidentalChargesCents).
		Set("tax_rate = $4", m.TaxRate).
		Set("taxes_cents = $5", m.TaxesCents).
		Set("discounts_cents = $6", m.DiscountsCents).
		Set("discount_reason = $7", m.DiscountReason).
		Set("total_amount_cents = $8", m.TotalAmountCents).
		Set("amount_paid_cents = $9", m.AmountPaidCents).
		Set("outstanding_balance_cents = $10", m.OutstandingBalanceCents).
		Set("status = $11", m.Status).
		Set("due_date = $12", m.DueDate).
		Set("paid_at = $13", m.PaidAt).
		Set("updated_at = $14", m.UpdatedAt).
		Where("id = $15", m.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("folio/postgres: update invoice: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return folio.ErrInvoiceNotFound
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	if _, err := s.GetInvoice(ctx, p.InvoiceID); err != nil {
		return err
	}
	preparePayment(p)
	if _, err := s.q.NewInsert(toPaymentModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("folio/postgres: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.q.NewSelect(m).
		Where("id = $1", payID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, folio.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("folio/postgres: get payment: %w", err)
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.q.NewSelect(&models).
		Where("invoice_id = $1", invID.String()).
		OrderExpr("payment_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("folio/postgres: list payments: %w", err)
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) MarkPaymentRefunded(ctx context.Context, payID id.PaymentID, at time.Time) error {
	res, err := s.q.NewUpdate((*paymentModel)(nil)).
		Set("status = $1", string(payment.StatusRefunded)).
		Set("refunded_at = $2", at.UTC()).
		Set("updated_at = $3", now()).
		Where("id = $4", payID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("folio/postgres: refund payment: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return folio.ErrPaymentNotFound
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func prepareInvoice(inv *invoice.Invoice) {
	t := now()
	if inv.ID.IsNil() {
		inv.ID = id.NewInvoiceID()
	}
	if inv.Status == "" {
		inv.Status = invoice.StatusUnpaid
	}
	if inv.IssuedTime.IsZero() {
		inv.IssuedTime = t
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = t
		inv.UpdatedAt = t
	}
	if inv.Metadata == nil {
		inv.Metadata = map[string]string{}
	}
}

func preparePayment(p *payment.Payment) {
	t := now()
	if p.ID.IsNil() {
		p.ID = id.NewPaymentID()
	}
	if p.Status == "" {
		p.Status = payment.StatusCompleted
	}
	if p.PaymentTime.IsZero() {
		p.PaymentTime = t
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t
		p.UpdatedAt = t
	}
}

func fromInvoiceModels(models []invoiceModel) ([]*invoice.Invoice, error) {
	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
