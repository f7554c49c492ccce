// Package errs defines the error taxonomy shared by services and the HTTP layer.
// Every Error carries the HTTP status it is reported with.
package errs

import (
	"errors"
	"net/http"
)

// Error is a categorized error with an HTTP status and a user-facing message.
type Error struct {
	Status  int
	Message string

	base  *Error
	cause error
}

// New creates a new root error.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is e or the root error e was derived from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t == e || t == e.root()
}

func (e *Error) root() *Error {
	if e.base != nil {
		return e.base
	}
	return e
}

// Wrap returns a copy of e that records cause. The cause is logged but never
// rendered to clients.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Status: e.Status, Message: e.Message, base: e.root(), cause: cause}
}

// WithMessage returns a copy of e with a more specific user-facing message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Status: e.Status, Message: message, base: e.root(), cause: e.cause}
}

// Cause returns the wrapped cause, or nil.
func (e *Error) Cause() error {
	return e.cause
}

// From extracts the categorized error from err. Uncategorized errors become
// ErrInternal wrapping err.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.Wrap(err)
}

// IsServerError reports whether e renders as a 5xx response
func (e *Error) IsServerError() bool {
	return e.Status >= http.StatusInternalServerError
}
