// Package invoice defines the folio invoice entity and its persistence contract.
package invoice

import (
	"strings"
	"time"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/payment"
	"github.com/xraph/folio/types"
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusUnpaid        Status = "UNPAID"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusOverdue       Status = "OVERDUE"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusUnpaid, StatusPartiallyPaid, StatusPaid, StatusOverdue}

// ParseStatus resolves a status name case-insensitively.
func ParseStatus(s string) (Status, bool) {
	want := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Statuses {
		if st == want {
			return st, true
		}
	}
	return "", false
}

// Invoice is the bill issued for one stay.
//
// TotalAmount is always RoomCharges + IncidentalCharges + Taxes - Discounts.
// AmountPaid, OutstandingBalance and Status are derived from the invoice's
// completed payments.
type Invoice struct {
	types.Entity
	ID                 id.InvoiceID      `json:"id"`
	StayID             *id.StayID        `json:"stay_id,omitempty"`
	ReservationID      *id.ReservationID `json:"reservation_id,omitempty"`
	Currency           string            `json:"currency"`
	Nights             int               `json:"nights"`
	RoomCharges        types.Money       `json:"room_charges"`
	IncidentalCharges  types.Money       `json:"incidental_charges"`
	TaxRate            string            `json:"tax_rate"`
	Taxes              types.Money       `json:"taxes"`
	Discounts          types.Money       `json:"discounts"`
	DiscountReason     *string           `json:"discount_reason,omitempty"`
	TotalAmount        types.Money       `json:"total_amount"`
	AmountPaid         types.Money       `json:"amount_paid"`
	OutstandingBalance types.Money       `json:"outstanding_balance"`
	Status             Status            `json:"status"`
	IssuedTime         time.Time         `json:"issued_time"`
	DueDate            *time.Time        `json:"due_date,omitempty"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	Payments           []payment.Payment `json:"payments,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Gross returns the charges before any discount.
func (inv *Invoice) Gross() types.Money {
	return inv.RoomCharges.Add(inv.IncidentalCharges).Add(inv.Taxes)
}

// Clone returns a deep copy of the invoice.
func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	if inv.StayID != nil {
		v := *inv.StayID
		c.StayID = &v
	}
	if inv.ReservationID != nil {
		v := *inv.ReservationID
		c.ReservationID = &v
	}
	if inv.DiscountReason != nil {
		v := *inv.DiscountReason
		c.DiscountReason = &v
	}
	if inv.DueDate != nil {
		v := *inv.DueDate
		c.DueDate = &v
	}
	if inv.PaidAt != nil {
		v := *inv.PaidAt
		c.PaidAt = &v
	}
	if inv.Payments != nil {
		c.Payments = make([]payment.Payment, len(inv.Payments))
		for i := range inv.Payments {
			c.Payments[i] = *inv.Payments[i].Clone()
		}
	}
	if inv.Metadata != nil {
		c.Metadata = make(map[string]string, len(inv.Metadata))
		for k, v := range inv.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
