package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/invoice"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/types"
)

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:folio_invoices"`

	ID                      string            `grove:"id,pk"                     bson:"_id"`
	StayID                  *string           `grove:"stay_id"                   bson:"stay_id,omitempty"`
	ReservationID           *string           `grove:"reservation_id"            bson:"reservation_id,omitempty"`
	Currency                string            `grove:"currency"                  bson:"currency"`
	Nights                  int               `grove:"nights"                    bson:"nights"`
	RoomChargesCents        int64             `grove:"room_charges_cents"        bson:"room_charges_cents"`
	IncidentalChargesCents  int64             `grove:"incidental_charges_cents"  bson:"incidental_charges_cents"`
	TaxRate                 string            `grove:"tax_rate"                  bson:"tax_rate"`
	TaxesCents              int64             `grove:"taxes_cents"               bson:"taxes_cents"`
	DiscountsCents          int64             `grove:"discounts_cents"           bson:"discounts_cents"`
	DiscountReason          *string           `grove:"discount_reason"           bson:"discount_reason,omitempty"`
	TotalAmountCents        int64             `grove:"total_amount_cents"        bson:"total_amount_cents"`
	AmountPaidCents         int64             `grove:"amount_paid_cents"         bson:"amount_paid_cents"`
	OutstandingBalanceCents int64             `grove:"outstanding_balance_cents" bson:"outstanding_balance_cents"`
	Status                  string            `grove:"status"                    bson:"status"`
	IssuedTime              time.Time         `grove:"issued_time"               bson:"issued_time"`
	DueDate                 *time.Time        `grove:"due_date"                  bson:"due_date,omitempty"`
	PaidAt                  *time.Time        `grove:"paid_at"                   bson:"paid_at,omitempty"`
	Metadata                map[string]string `grove:"metadata"                  bson:"metadata,omitempty"`
	CreatedAt               time.Time         `grove:"created_at"                bson:"created_at"`
	UpdatedAt               time.Time         `grove:"updated_at"                bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:                      inv.ID.String(),
		StayID:                  optionalID(inv.StayID),
		ReservationID:           optionalID(inv.ReservationID),
		Currency:                inv.Currency,
		Nights:                  inv.Nights,
		RoomChargesCents:        inv.RoomCharges.Amount,
		IncidentalChargesCents:  inv.IncidentalCharges.Amount,
		TaxRate:                 inv.TaxRate,
		TaxesCents:              inv.Taxes.Amount,
		DiscountsCents:          inv.Discounts.Amount,
		DiscountReason:          inv.DiscountReason,
		TotalAmountCents:        inv.TotalAmount.Amount,
		AmountPaidCents:         inv.AmountPaid.Amount,
		OutstandingBalanceCents: inv.OutstandingBalance.Amount,
		Status:                  string(inv.Status),
		IssuedTime:              inv.IssuedTime.UTC(),
		DueDate:                 inv.DueDate,
		PaidAt:                  inv.PaidAt,
		Metadata:                inv.Metadata,
		CreatedAt:               inv.CreatedAt,
		UpdatedAt:               inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	stayID, err := parseOptional(m.StayID, id.PrefixStay)
	if err != nil {
		return nil, err
	}
	resvID, err := parseOptional(m.ReservationID, id.PrefixReservation)
	if err != nil {
		return nil, err
	}

	money := func(cents int64) types.Money { return types.New(cents, m.Currency) }

	return &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 invID,
		StayID:             stayID,
		ReservationID:      resvID,
		Currency:           m.Currency,
		Nights:             m.Nights,
		RoomCharges:        money(m.RoomChargesCents),
		IncidentalCharges:  money(m.IncidentalChargesCents),
		TaxRate:            m.TaxRate,
		Taxes:              money(m.TaxesCents),
		Discounts:          money(m.DiscountsCents),
		DiscountReason:     m.DiscountReason,
		TotalAmount:        money(m.TotalAmountCents),
		AmountPaid:         money(m.AmountPaidCents),
		OutstandingBalance: money(m.OutstandingBalanceCents),
		Status:             invoice.Status(m.Status),
		IssuedTime:         m.IssuedTime,
		DueDate:            m.DueDate,
		PaidAt:             m.PaidAt,
		Metadata:           m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:folio_payments"`

	ID                   string     `grove:"id,pk"                 bson:"_id"`
	InvoiceID            string     `grove:"invoice_id"            bson:"invoice_id"`
	AmountCents          int64      `grove:"amount_cents"          bson:"amount_cents"`
	Currency             string     `grove:"currency"              bson:"currency"`
	Method               string     `grove:"method"                bson:"method"`
	TransactionReference *string    `grove:"transaction_reference" bson:"transaction_reference,omitempty"`
	Status               string     `grove:"status"                bson:"status"`
	PaymentTime          time.Time  `grove:"payment_time"          bson:"payment_time"`
	RefundedAt           *time.Time `grove:"refunded_at"           bson:"refunded_at,omitempty"`
	CreatedAt            time.Time  `grove:"created_at"            bson:"created_at"`
	UpdatedAt            time.Time  `grove:"updated_at"            bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:                   p.ID.String(),
		InvoiceID:            p.InvoiceID.String(),
		AmountCents:          p.Amount.Amount,
		Currency:             p.Amount.Currency,
		Method:               string(p.Method),
		TransactionReference: p.TransactionReference,
		Status:               string(p.Status),
		PaymentTime:          p.PaymentTime.UTC(),
		RefundedAt:           p.RefundedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   payID,
		InvoiceID:            invID,
		Amount:               types.New(m.AmountCents, m.Currency),
		Method:               payment.Method(m.Method),
		TransactionReference: m.TransactionReference,
		Status:               payment.Status(m.Status),
		PaymentTime:          m.PaymentTime,
		RefundedAt:           m.RefundedAt,
	}, nil
}

// ==================== Helpers ====================

func optionalID(i *id.ID) *string {
	if i == nil || i.IsNil() {
		return nil
	}
	s := i.String()
	return &s
}

func parseOptional(s *string, prefix id.Prefix) (*id.ID, error) {
	if s == nil {
		return nil, nil
	}
	return id.ParseOptional(*s, prefix)
}
