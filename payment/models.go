// Package payment defines payments recorded against folio invoices.
package payment

import (
	"strings"
	"time"

	"github.com/xraph/folio/id"
	"github.com/xraph/folio/types"
)

// Status of a payment. The only transition is COMPLETED to REFUNDED.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusRefunded  Status = "REFUNDED"
)

// Method is how a guest paid. The set is open; these are the common ones.
type Method string

const (
	MethodCash         Method = "Cash"
	MethodCreditCard   Method = "Credit Card"
	MethodDebitCard    Method = "Debit Card"
	MethodBankTransfer Method = "Bank Transfer"
	MethodMobileWallet Method = "Mobile Wallet"
)

// Valid reports whether the method is non-blank.
func (m Method) Valid() bool { return strings.TrimSpace(string(m)) != "" }

type Payment struct {
	types.Entity
	ID                   id.PaymentID `json:"id"`
	InvoiceID            id.InvoiceID `json:"invoice_id"`
	Amount               types.Money  `json:"amount"`
	Method               Method       `json:"method"`
	TransactionReference *string      `json:"transaction_reference,omitempty"`
	Status               Status       `json:"status"`
	PaymentTime          time.Time    `json:"payment_time"`
	RefundedAt           *time.Time   `json:"refunded_at,omitempty"`
}

// Completed reports whether the payment counts toward the invoice balance.
func (p *Payment) Completed() bool { return p.Status == StatusCompleted }

// Reference returns the transaction reference or "".
func (p *Payment) Reference() string {
	if p.TransactionReference == nil {
		return ""
	}
	return *p.TransactionReference
}

func (p *Payment) Clone() *Payment {
	c := *p
	if p.TransactionReference != nil {
		v := *p.TransactionReference
		c.TransactionReference = &v
	}
	if p.RefundedAt != nil {
		v := *p.RefundedAt
		c.RefundedAt = &v
	}
	return &c
}
