package workorder

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failed")
	ErrConflict    = errors.New("version conflict")
)

// Error describes why a work order could not be saved
type Error struct {
	Kind  error
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func invalid(field, msg string) *Error {
	return &Error{Kind: ErrValidation, Field: field, Msg: msg}
}

func notFound(entity, id string) *Error {
	return &Error{Kind: ErrNotFound, Field: entity, Msg: fmt.Sprintf("%s %q not found", entity, id)}
}

func persistence(op string, err error) *Error {
	return &Error{Kind: ErrPersistence, Msg: "failed to " + op, Err: err}
}

func conflict(id string, expected, actual int) *Error {
	return &Error{
		Kind: ErrConflict,
		Msg:  fmt.Sprintf("work order %s was modified (version %d, expected %d)", id, actual, expected),
	}
}

func changedConcurrently(id string) *Error {
	return &Error{Kind: ErrConflict, Msg: fmt.Sprintf("work order %s version changed concurrently", id)}
}
