package models

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// ErrorValidation marks bad input shape or an empty required field; the caller re-prompts.
	ErrorValidation ErrorCode = "validation"
	// ErrorConstraint marks a schema-level integrity failure (unique, enum, foreign key).
	ErrorConstraint ErrorCode = "constraint_violation"
	ErrorNotFound   ErrorCode = "not_found"
	// ErrorStore marks an underlying I/O failure.
	ErrorStore ErrorCode = "store"
)

// Error is the single error type surfaced by the store, the services and the survey engine.
type Error struct {
	Code    ErrorCode
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

func NewValidationError(msg string) error { return &Error{Code: ErrorValidation, Message: msg} }
func NewNotFoundError(msg string) error   { return &Error{Code: ErrorNotFound, Message: msg} }

func NewConstraintError(msg string, cause error) error {
	return &Error{Code: ErrorConstraint, Message: msg, Err: cause}
}

func NewStoreError(op string, cause error) error {
	return &Error{Code: ErrorStore, Message: op, Err: cause}
}

func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}
