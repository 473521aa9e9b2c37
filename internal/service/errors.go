package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to status codes with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = fmt.Errorf("insufficient stock: %w", ErrInvalidArgument)
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrConflict          = errors.New("conflict")
)

// Error is a failure whose Message is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...interface{}) error {
	return newError(ErrInvalidArgument, format, args...)
}

func notFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

// Message returns the caller-safe message carried by err, if any.
func Message(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, true
	}
	return "", false
}
