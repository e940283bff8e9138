package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	SyntaxError         ErrorKind = "SyntaxError"
	SchemaError         ErrorKind = "SchemaError"
	TypeMismatch        ErrorKind = "TypeMismatch"
	ConstraintViolation ErrorKind = "ConstraintViolation"
	StorageError        ErrorKind = "StorageError"
	InternalError       ErrorKind = "InternalError"
)

// Error is the structured error returned by every layer of the engine.
// Position is the byte offset into the statement text and is only
// meaningful for SyntaxError (-1 otherwise).
type Error struct {
	Kind     ErrorKind
	Message  string
	Position int
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == SyntaxError && e.Position >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Position, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: SchemaError})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Position: -1}
}

func NewSyntaxError(position int, format string, args ...any) *Error {
	return &Error{Kind: SyntaxError, Message: fmt.Sprintf(format, args...), Position: position}
}

// WrapStorage wraps an I/O failure as a StorageError.
func WrapStorage(err error, format string, args ...any) *Error {
	return &Error{Kind: StorageError, Message: fmt.Sprintf(format, args...), Position: -1, Err: err}
}

// KindOf reports the kind of err, or InternalError for anything that is not
// an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}
