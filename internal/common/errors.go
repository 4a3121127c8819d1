// Package common defines the error kinds shared by every layer of the
// credential manager and a few small helpers. Callers match kinds with
// errors.Is and render the attached message with Message.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level error kinds.
	ErrValidation     = errors.New("validation error")
	ErrDuplicateUser  = errors.New("duplicate user")
	ErrRateLimited    = errors.New("rate limited")
	ErrAuthentication = errors.New("authentication failed")
	ErrPersistence    = errors.New("persistence error")
)

// Error is a classified failure with a short reason that can be shown
// to an end user as is.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// Fail builds an Error of the given kind.
func Fail(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Failf builds an Error with a formatted message.
func Failf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a classified failure.
func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the displayable reason for err. Unclassified errors
// collapse to a generic text so internal details do not leak.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
