package booking

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the booking service.
var (
	ErrValidation             = errors.New("validation failed")
	ErrVenueNotFound          = errors.New("venue not found")
	ErrFieldNotFound          = errors.New("field not found")
	ErrSlotNotFound           = errors.New("time slot not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrSlotAlreadyBooked      = errors.New("slot already booked")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAlreadyPaid            = errors.New("payment already verified")
	ErrInvalidSignature       = errors.New("invalid callback signature")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrGatewayRejected        = errors.New("payment gateway rejected transaction")
	ErrGatewayProtocol        = errors.New("unexpected payment gateway response")
	ErrBookingNumberExhausted = errors.New("booking number generation exhausted")
	ErrInvalidBookingStatus   = errors.New("invalid booking status")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrInvalidDate            = errors.New("invalid date")
	ErrInvalidClock           = errors.New("invalid time of day")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
	ErrInvalidNotification    = errors.New("invalid notification payload")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
