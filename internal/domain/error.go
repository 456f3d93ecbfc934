package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrOperationFailed     = errors.New("operation failed")
	ErrInvalidExecContext  = errors.New("invalid database execution context")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrConcurrencyConflict = errors.New("concurrent modification conflict")

	// Code lifecycle errors
	ErrCodeNotFound       = errors.New("sponsorship code not found")
	ErrCodeExpired        = errors.New("sponsorship code has expired")
	ErrCodeAlreadyUsed    = errors.New("sponsorship code already used")
	ErrCodeDeactivated    = errors.New("sponsorship code has been deactivated")
	ErrInsufficientCodes  = errors.New("not enough available sponsorship codes")
	ErrActivationFailed   = errors.New("subscription activation failed")
	ErrCodeGenExhausted   = errors.New("unique code generation retry budget exhausted")
	ErrDeliveryFailed     = errors.New("recipient delivery failed")
	ErrReservationInvalid = errors.New("code cannot hold two reservations")
	ErrRateLimited        = errors.New("too many redemption attempts")

	// Purchase lifecycle errors
	ErrAlreadyApproved = errors.New("purchase is already approved")
	ErrAlreadyRefunded = errors.New("purchase is already refunded")
	ErrRefundBlocked   = errors.New("purchase has redeemed codes and cannot be refunded")
)

// InsufficientCodesError reports how short an allocation request fell.
// Wraps ErrInsufficientCodes so callers can keep using errors.Is.
type InsufficientCodesError struct {
	Available int
	Requested int
}

func (e *InsufficientCodesError) Error() string {
	return fmt.Sprintf("insufficient codes: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientCodesError) Unwrap() error { return ErrInsufficientCodes }

// RefundBlockedError carries the redeemed-code count that blocks a refund.
type RefundBlockedError struct {
	CodesUsed int
}

func (e *RefundBlockedError) Error() string {
	return fmt.Sprintf("cannot refund: %d codes already redeemed", e.CodesUsed)
}

func (e *RefundBlockedError) Unwrap() error { return ErrRefundBlocked }
