// Package domainerrors provides code-carrying domain errors.
//
// Services return these so transport layers can map outcomes to HTTP statuses
// without string matching, and so tests can assert on codes instead of
// messages. Stores do NOT use this package; they return pkg/platform/sentinel
// errors which services translate here. Conventionally imported as dErrors.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error outcome.
type Code string

const (
	// CodeInvalidInput marks malformed caller input (bad identifier shape,
	// text below minimum length). Always recoverable by the caller.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a structurally broken request (undecodable body).
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks a failed trust check (audience mismatch,
	// missing credentials).
	CodeUnauthorized Code = "unauthorized"
	// CodeNotFound marks a lookup that matched nothing actionable.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a precondition violation on live state
	// (visitor already checked in).
	CodeConflict Code = "conflict"
	// CodeExpired marks a token or handshake session past its lifetime.
	// The caller must restart the flow.
	CodeExpired Code = "expired"
	// CodeInvalidState marks an unknown or already-consumed handshake state.
	// The caller must restart the flow.
	CodeInvalidState Code = "invalid_state"
	// CodeUpstream marks a provider-side or network failure during an
	// outbound call. The provider's error description is preserved when
	// available.
	CodeUpstream Code = "upstream_error"
	// CodeMisconfigured marks a configuration or key-material defect.
	// Operator-facing, never a user error.
	CodeMisconfigured Code = "misconfigured"
	// CodeInvariantViolation marks a broken domain invariant.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks a temporarily unusable dependency.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks everything else. Details are logged, not surfaced.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a classification code.
type Error struct {
	code    Code
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.cause }

// Code returns the classification code.
func (e *Error) Code() Code { return e.code }

// Message returns the caller-facing message without the wrapped cause.
func (e *Error) Message() string { return e.message }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{code: code, message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
// A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.code == code
	}
	return false
}

// CodeOf returns the code of the first domain error in the chain,
// or CodeInternal when the chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}
