package cad

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Session.
	ErrClosed = errors.New("session closed")
	// ErrNoEntity is returned when a body or face identifier is not known to the session.
	ErrNoEntity = errors.New("no such entity")
	// ErrNotMeshed is returned when output is requested before Generate.
	ErrNotMeshed = errors.New("no mesh generated")
)

// Error is returned by every failing Session operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("cad: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func opErr(op string, err error) error {
	return &Error{Op: op, Err: err}
}

func opErrf(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...)}
}
