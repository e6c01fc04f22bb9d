package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/folio"
	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	foliostore "github.com/xraph/folio/store"
)

// Collection name constants.
const (
	colInvoices = "folio_invoices"
	colPayments = "folio_payments"
)

// compile-time interface check
var _ foliostore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all folio collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo: %s indexes: %w", folio.ErrMigrationFailed, col, err)
		}
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

// InvoiceTx runs fn in a multi-document transaction. Its first write stamps
// locked_at on the invoice document, so a concurrent transaction on the same
// invoice hits a write conflict and is retried by the driver once this one
// ends. Transactions need a replica set or sharded cluster.
func (s *Store) InvoiceTx(ctx context.Context, invID id.InvoiceID, fn foliostore.TxFunc) error {
	sess, err := s.mdb.Client().StartSession()
	if err != nil {
		return fmt.Errorf("folio/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
			Filter(bson.M{"_id": invID.String()}).
			Set("locked_at", now()).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("folio/mongo: lock invoice: %w", err)
		}
		if res.MatchedCount() == 0 {
			return nil, folio.ErrInvoiceNotFound
		}
		return nil, fn(ctx, s)
	})
	return err
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	prepareInvoice(inv)
	_, err := s.mdb.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return folio.ErrAlreadyExists
		}
		return fmt.Errorf("folio/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, folio.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("folio/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) GetInvoicesByStay(ctx context.Context, stayID id.StayID) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"stay_id": stayID.String()}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("folio/mongo: invoices by stay: %w", err)
	}
	return fromInvoiceModels(models)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = strings.ToUpper(string(opts.Status))
	}
	issued := bson.M{}
	if !opts.IssuedFrom.IsZero() {
		issued["$gte"] = opts.IssuedFrom.UTC()
	}
	if !opts.IssuedTo.IsZero() {
		issued["$lt"] = opts.IssuedTo.UTC()
	}
	if len(issued) > 0 {
		filter["issued_time"] = issued
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("folio/mongo: list invoices: %w", err)
	}
	return fromInvoiceModels(models)
}

// UpdateInvoice sets the mutable fields of an invoice. The stay link,
// issue time and metadata are fixed at creation.
func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	inv.UpdatedAt = now()
	m := toInvoiceModel(inv)

	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("nights", m.Nights).
		Set("room_charges_cents", m.RoomChargesCents).
		Set("incidental_charges_cents", m.IncidentalChargesCents).
		Set("tax_rate", m.TaxRate).
		Set("taxes_cents", m.TaxesCents).
		Set("discounts_cents", m.DiscountsCents).
		Set("discount_reason", m.DiscountReason).
		Set("total_amount_cents", m.TotalAmountCents).
		Set("amount_paid_cents", m.AmountPaidCents).
		Set("outstanding_balance_cents", m.OutstandingBalanceCents).
		Set("status", m.Status).
		Set("due_date", m.DueDate).
		Set("paid_at", m.PaidAt).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("folio/mongo: update invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
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
	_, err := s.mdb.NewInsert(toPaymentModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return folio.ErrDuplicatePayment
		}
		return fmt.Errorf("folio/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": payID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, folio.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("folio/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"invoice_id": invID.String()}).
		Sort(bson.D{{Key: "payment_time", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("folio/mongo: list payments: %w", err)
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
	res, err := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": payID.String()}).
		Set("status", string(payment.StatusRefunded)).
		Set("refunded_at", at.UTC()).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("folio/mongo: refund payment: %w", err)
	}
	if res.MatchedCount() == 0 {
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all folio collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvoices: {
			{Keys: bson.D{{Key: "stay_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "issued_time", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "payment_time", Value: 1}}},
			{
				Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "transaction_reference", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"transaction_reference": bson.M{"$type": "string"}}),
			},
		},
	}
}
