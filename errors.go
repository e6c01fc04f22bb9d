package folio

import (
	"errors"
	"fmt"

	"github.com/xraph/folio/reconcile"
	"github.com/xraph/folio/stay"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("folio: not found")
	ErrAlreadyExists = errors.New("folio: already exists")
	ErrInvalidInput  = errors.New("folio: invalid input")

	// Invoice errors
	ErrInvoiceNotFound = errors.New("folio: invoice not found")
	ErrInvalidStatus   = errors.New("folio: invalid invoice status")
	ErrInvalidDiscount = errors.New("folio: invalid discount")

	// Payment errors
	ErrPaymentNotFound        = errors.New("folio: payment not found")
	ErrInvalidAmount          = errors.New("folio: invalid amount")
	ErrExceedsBalance         = errors.New("folio: payment exceeds outstanding balance")
	ErrInvalidState           = errors.New("folio: invalid state")
	ErrPaymentAlreadyRefunded = fmt.Errorf("%w: payment already refunded", ErrInvalidState)
	ErrDuplicatePayment       = errors.New("folio: duplicate transaction reference")
	ErrCurrencyMismatch       = errors.New("folio: currency mismatch")

	// Stay errors
	ErrStayNotFound = stay.ErrNotFound

	// Ledger integrity
	ErrInvariant = reconcile.ErrInvariant

	// Store errors
	ErrStoreNotReady   = errors.New("folio: store not ready")
	ErrStoreClosed     = errors.New("folio: store is closed")
	ErrMigrationFailed = errors.New("folio: migration failed")
)

// ValidationError represents a validation failure with details. It unwraps
// to the sentinel that classifies it.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("folio: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidInput
	}
	return e.Err
}

func invalid(field string, sentinel error, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrStayNotFound)
}

// IsValidationError returns true if the request was rejected for bad input.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrExceedsBalance) ||
		errors.Is(err, ErrInvalidDiscount) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrDuplicatePayment) ||
		errors.Is(err, ErrCurrencyMismatch)
}

// IsInvalidState returns true if the target is not in a state that allows
// the operation.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
