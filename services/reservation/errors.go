package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrInvalidOfferingPeriod = errors.New("offering period must cover at least one day")
	ErrMissingPaymentMode    = errors.New("payment mode is required")
	ErrInvalidPaymentMode    = errors.New("unsupported payment mode")
)

var (
	ErrSessionClosed      = errors.New("reservation session is closed")
	ErrSubmissionInFlight = errors.New("a reservation request is already in flight")
	ErrAlreadyReserved    = errors.New("session already holds a reservation")
	ErrNotReserved        = errors.New("session holds no active reservation")
	ErrConfirmInFlight    = errors.New("a payment confirmation is already in flight")
	ErrStaleResult        = errors.New("result arrived after the session moved on")
)

// FieldError is a client-side validation failure on one form field.
type FieldError struct {
	Field   string
	Message string
	Cause   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

// ReserveRejectedError is a backend refusal of a reservation. Message is shown verbatim.
type ReserveRejectedError struct {
	Message string
	Err     error
}

func (e *ReserveRejectedError) Error() string {
	return "reservation rejected: " + e.Message
}

func (e *ReserveRejectedError) Unwrap() error { return e.Err }

// ConfirmRejectedError is a backend refusal of a payment confirmation, e.g. the reservation
// already expired server-side. Message is shown verbatim.
type ConfirmRejectedError struct {
	Message string
	Err     error
}

func (e *ConfirmRejectedError) Error() string {
	return "payment confirmation rejected: " + e.Message
}

func (e *ConfirmRejectedError) Unwrap() error { return e.Err }
