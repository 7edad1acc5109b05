// Package derrors defines the coded error taxonomy surfaced by ledger
// operations. Stores return sentinel errors (pkg/platform/sentinel); services
// translate them into coded errors here so transports can map them uniformly.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category in the ledger taxonomy.
type Code string

const (
	// CodeValidation marks bad input. Non-retryable.
	CodeValidation Code = "validation_error"
	// CodeNotFound marks a missing escrow, dispute, or idempotency subject.
	CodeNotFound Code = "not_found"
	// CodeInsufficientBalance marks a debit the wallet cannot cover.
	CodeInsufficientBalance Code = "insufficient_balance"
	// CodeInvalidState marks a transition the escrow status does not permit.
	CodeInvalidState Code = "invalid_state"
	// CodeExpired marks an operation on an escrow past its expiry.
	CodeExpired Code = "expired"
	// CodeLockContention marks a concurrent operation holding the row lease.
	// This is the only code a caller is expected to silently retry.
	CodeLockContention Code = "lock_contention"
	// CodeConflict marks a uniqueness violation (duplicate open dispute).
	CodeConflict Code = "conflict"
	// CodeInternal marks unexpected storage or infrastructure failure.
	CodeInternal Code = "internal"
)

// Error is a coded domain error with a human-readable reason.
type Error struct {
	Code   Code
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded error.
func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// Wrap constructs a coded error preserving the underlying cause for logging.
func Wrap(code Code, reason string, cause error) *Error {
	return &Error{Code: code, Reason: reason, cause: cause}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ReasonOf extracts the human-readable reason from err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}

// Retryable reports whether the caller should retry the operation with
// backoff. Only lock contention qualifies; everything else is terminal.
func Retryable(err error) bool {
	return Is(err, CodeLockContention)
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case CodeInvalidState, CodeExpired, CodeLockContention, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
