package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrTooMany      = errors.New("too many requests")
	ErrTimeout      = errors.New("timeout")
	ErrProcessing   = errors.New("processing failed")
	ErrQuota        = errors.New("storage quota exceeded")
	ErrFileType     = errors.New("unsupported file type")
	ErrFileTooLarge = errors.New("file too large")
	ErrInternal     = errors.New("internal")
)

// ValidationError reports which field of the request was malformed or missing.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports which field collided with an existing row.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func Conflict(field, value string) error {
	return &ConflictError{Field: field, Value: value}
}

// NotFoundError names the missing entity kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NotFoundOf(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// InvalidStateError reports a rejected state transition, e.g. converting a
// card that is already saved.
type InvalidStateError struct {
	Entity string
	State  string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s in state %s cannot %s", e.Entity, e.State, e.Op)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

func InvalidState(entity, state, op string) error {
	return &InvalidStateError{Entity: entity, State: state, Op: op}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalid)
}
