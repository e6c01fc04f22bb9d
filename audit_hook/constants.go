package audithook

// Action constants for audit events.
const (
	// Invoice actions
	ActionInvoiceGenerated     = "invoice.generated"
	ActionInvoiceRegenerated   = "invoice.regenerated"
	ActionInvoicePaid          = "invoice.paid"
	ActionInvoiceStatusChanged = "invoice.status_changed"
	ActionDiscountApplied      = "invoice.discount_applied"
	ActionDiscountRemoved      = "invoice.discount_removed"

	// Payment actions
	ActionPaymentRecorded = "payment.recorded"
	ActionPaymentRefunded = "payment.refunded"
)

// Resource constants for audit events.
const (
	ResourceInvoice = "invoice"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryBilling = "billing"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
