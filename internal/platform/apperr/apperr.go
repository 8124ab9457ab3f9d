// Package apperr defines the error taxonomy shared by every service and the
// echo error handler that renders it.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnauthenticated
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is an application error carrying a Kind and a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing resource, e.g. NotFound("appointment").
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Forbidden(format string, args ...interface{}) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(message string) error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure. The message is logged, never rendered.
func Internal(err error, message string) error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool        { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool       { return KindOf(err) == KindForbidden }
func IsValidation(err error) bool      { return KindOf(err) == KindValidation }
func IsUnauthenticated(err error) bool { return KindOf(err) == KindUnauthenticated }
