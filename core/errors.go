package core

import (
	"errors"
	"fmt"
)

var (
	// ErrQueryFailed is returned when the driver rejects a query or fails while reading its rows.
	ErrQueryFailed = errors.New("query failed")
	// ErrExecuteFailed is returned when the driver rejects a statement run through Execute.
	ErrExecuteFailed = errors.New("execute failed")
	// ErrDecodeFailed is returned when a column value cannot be converted to its declared kind.
	ErrDecodeFailed = errors.New("decode failed")
	// ErrInvalidSQL is returned when a statement is empty.
	ErrInvalidSQL = errors.New("invalid sql")
	// ErrNoConnection is returned when a statement is run without a lease.
	ErrNoConnection = errors.New("no connection")
)

// DecodeError reports which value could not be decoded. It matches
// ErrDecodeFailed with errors.Is and unwraps to the conversion error.
type DecodeError struct {
	Row      int
	Column   string
	TypeName string
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: row %d column %q (%s): %v", ErrDecodeFailed, e.Row, e.Column, e.TypeName, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecodeFailed
}
