// Package apperror defines the error taxonomy shared by the execution
// engine: authorization, validation, repayment and external-call
// failures. Errors carry a kind, wrap an optional cause and work with
// the standard errors.Is/errors.As machinery.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindAuthorization marks a caller that is not allowed to invoke an
	// entry point (wrong owner, coordinator or pool).
	KindAuthorization
	// KindValidation marks malformed input or out-of-range configuration.
	KindValidation
	// KindInsufficientRepayment marks a post-swap balance below
	// principal plus fee.
	KindInsufficientRepayment
	// KindExternalCall marks a failed router swap, token transfer or
	// relay submission.
	KindExternalCall
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "AuthorizationError"
	case KindValidation:
		return "ValidationError"
	case KindInsufficientRepayment:
		return "InsufficientRepaymentError"
	case KindExternalCall:
		return "ExternalCallFailure"
	default:
		return "UnknownError"
	}
}

// Error is a classified engine error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind, so sentinel-style checks
// like errors.Is(err, &Error{Kind: KindValidation}) work.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New creates a classified error.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Authorization reports a caller that failed an access check.
func Authorization(format string, args ...interface{}) *Error {
	return New(KindAuthorization, format, args...)
}

// Validation reports malformed input or configuration.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// InsufficientRepayment reports a balance shortfall against principal
// plus fee.
func InsufficientRepayment(format string, args ...interface{}) *Error {
	return New(KindInsufficientRepayment, format, args...)
}

// ExternalCall reports a failed call into a router, token or relay.
func ExternalCall(format string, args ...interface{}) *Error {
	return New(KindExternalCall, format, args...)
}

// KindOf returns the kind of the first classified error in the chain,
// or KindUnknown when the chain carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// IsAuthorization reports whether err is classified as an authorization
// failure.
func IsAuthorization(err error) bool {
	return KindOf(err) == KindAuthorization
}

// IsValidation reports whether err is classified as a validation
// failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsInsufficientRepayment reports whether err is classified as a
// repayment shortfall.
func IsInsufficientRepayment(err error) bool {
	return KindOf(err) == KindInsufficientRepayment
}

// IsExternalCall reports whether err is classified as an external call
// failure.
func IsExternalCall(err error) bool {
	return KindOf(err) == KindExternalCall
}
