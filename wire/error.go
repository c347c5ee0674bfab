package wire

import (
	"errors"
	"fmt"
)

// Code classifies a job failure or protocol error.
type Code string

// Worker-side failure codes reported to the coordinator.
const (
	// CodeNoHandler means no handler is registered for the job's type.
	// Never retryable: redelivery would fail identically.
	CodeNoHandler Code = "no_handler"

	// CodeHandlerError means the handler or an interceptor returned or
	// panicked with an error.
	CodeHandlerError Code = "handler_error"

	// CodeTimeout means the job's execution-timeout budget elapsed and
	// its cancellation token fired.
	CodeTimeout Code = "timeout"
)

// Coordinator-side error codes a worker or client may receive in
// responses.
const (
	CodeInvalidRequest Code = "invalid_request"
	CodeUnauthorized   Code = "unauthorized"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeRateLimited    Code = "rate_limited"
	CodeInternal       Code = "internal"
)

// Error is the structured error reported with a failed job and carried
// by error frames. Details is an open bag for diagnostic extras such as
// a stack trace.
type Error struct {
	Code      Code           `json:"code" msgpack:"code"`
	Message   string         `json:"message" msgpack:"message"`
	Retryable bool           `json:"retryable" msgpack:"retryable"`
	Details   map[string]any `json:"details,omitempty" msgpack:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("ojs: %s: %s", e.Code, e.Message)
}

// NewError builds a structured error.
func NewError(code Code, message string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable}
}

// NoHandler builds the non-retryable error reported when a job's type
// has no registered handler.
func NoHandler(jobType string) *Error {
	return &Error{
		Code:      CodeNoHandler,
		Message:   fmt.Sprintf("no handler registered for job type %q", jobType),
		Retryable: false,
	}
}

// WithDetail returns the error with one diagnostic detail attached.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// codeIs reports whether err is a *Error carrying the given code.
func codeIs(err error, code Code) bool {
	var we *Error
	return errors.As(err, &we) && we.Code == code
}

// IsNotFound reports whether the coordinator rejected the operation
// because the addressed resource does not exist.
func IsNotFound(err error) bool { return codeIs(err, CodeNotFound) }

// IsConflict reports whether the coordinator rejected the operation
// because it conflicts with existing state (e.g. a duplicate
// idempotency key).
func IsConflict(err error) bool { return codeIs(err, CodeConflict) }

// IsRateLimited reports whether the coordinator rejected the operation
// due to admission control.
func IsRateLimited(err error) bool { return codeIs(err, CodeRateLimited) }

// IsInvalid reports whether the coordinator rejected the operation as
// malformed.
func IsInvalid(err error) bool { return codeIs(err, CodeInvalidRequest) }

// IsUnauthorized reports whether the coordinator rejected the
// operation's credentials.
func IsUnauthorized(err error) bool { return codeIs(err, CodeUnauthorized) }
