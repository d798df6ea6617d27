package coinmesh

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification. An *Error matches the
// sentinel of its Kind with errors.Is.
var (
	ErrGeometry  = errors.New("invalid geometry")
	ErrPartition = errors.New("invalid partition")
	ErrKernel    = errors.New("kernel failure")
	ErrIO        = errors.New("i/o failure")
	ErrCanceled  = errors.New("canceled")
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindGeometry  ErrorKind = "geometry"
	KindPartition ErrorKind = "partition"
	KindKernel    ErrorKind = "kernel"
	KindIO        ErrorKind = "io"
	KindCanceled  ErrorKind = "canceled"
)

// Error wraps an underlying error with the failing stage and a kind.
type Error struct {
	Op   string
	Kind ErrorKind
	Path string // Optional: relevant file path
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindGeometry:
		return target == ErrGeometry
	case KindPartition:
		return target == ErrPartition
	case KindKernel:
		return target == ErrKernel
	case KindIO:
		return target == ErrIO
	case KindCanceled:
		return target == ErrCanceled
	}
	return false
}

// IsKind helps callers classify errors without matching on messages.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func geometryErrorf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindGeometry, Err: fmt.Errorf(format, args...)}
}

func partitionErrorf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindPartition, Err: fmt.Errorf(format, args...)}
}
