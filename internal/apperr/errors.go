// Package apperr defines the error taxonomy shared by the engine, the
// request façade and the HTTP layer.  Every error carries one of the
// sentinel kinds below so callers can branch with errors.Is, and a stable
// machine-readable code so idempotency-aware clients can automate retries.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds.  Handlers translate them into HTTP status codes through
// HTTPStatus.
var (
	// ErrValidation signals malformed input (400).
	ErrValidation = errors.New("validation error")
	// ErrNotFound signals an unknown reservation, payment or account (404).
	ErrNotFound = errors.New("not found")
	// ErrBusinessRule signals a transition or operation that is not allowed
	// from the current state (422).
	ErrBusinessRule = errors.New("business rule violation")
	// ErrForbidden signals a privileged operation attempted without the
	// required role (403).
	ErrForbidden = errors.New("forbidden")
	// ErrConsistency signals a broken internal invariant.  It is surfaced as
	// a 500 and must be logged for operator attention.
	ErrConsistency = errors.New("consistency violation")
	// ErrLockTimeout signals that exclusive access could not be obtained in
	// time.  The request is safe to retry (503).
	ErrLockTimeout = errors.New("lock timeout")
	// ErrInsufficientBalance signals a debit that would take a points
	// balance below zero (422).
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInFlight signals that a request with the same idempotency key is
	// still executing (409).
	ErrInFlight = errors.New("request in flight")
)

// Error is a coded error.  Kind is one of the sentinels above.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap exposes the kind so errors.Is(err, ErrNotFound) works.
func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, code, format string, args ...any) error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(code, format string, args ...any) error {
	return newf(ErrValidation, code, format, args...)
}

func NotFound(code, format string, args ...any) error {
	return newf(ErrNotFound, code, format, args...)
}

func BusinessRule(code, format string, args ...any) error {
	return newf(ErrBusinessRule, code, format, args...)
}

func Forbidden(code, format string, args ...any) error {
	return newf(ErrForbidden, code, format, args...)
}

func Consistency(code, format string, args ...any) error {
	return newf(ErrConsistency, code, format, args...)
}

func LockTimeout(code, format string, args ...any) error {
	return newf(ErrLockTimeout, code, format, args...)
}

func InsufficientBalance(code, format string, args ...any) error {
	return newf(ErrInsufficientBalance, code, format, args...)
}

func InFlight(code, format string, args ...any) error {
	return newf(ErrInFlight, code, format, args...)
}

var defaultCodes = []struct {
	kind   error
	status int
	code   string
}{
	{ErrValidation, http.StatusBadRequest, "validation_error"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrBusinessRule, http.StatusUnprocessableEntity, "business_rule_violation"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrConsistency, http.StatusInternalServerError, "consistency_violation"},
	{ErrLockTimeout, http.StatusServiceUnavailable, "lock_timeout"},
	{ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{ErrInFlight, http.StatusConflict, "request_in_flight"},
}

// HTTPStatus maps err to a status code and machine-readable code.  Unknown
// errors become 500 "internal_error".
func HTTPStatus(err error) (int, string) {
	for _, d := range defaultCodes {
		if errors.Is(err, d.kind) {
			var ae *Error
			if errors.As(err, &ae) && ae.Code != "" {
				return d.status, ae.Code
			}
			return d.status, d.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// Message returns the human-readable part of a coded error, or a generic
// text for anything else so internal details never leak to clients.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return ae.Message
		}
		return ae.Kind.Error()
	}
	return "internal error"
}
