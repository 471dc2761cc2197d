package docstore

import (
	"errors"
	"fmt"
)

// Common store errors
var (
	// ErrNotFound is returned when a document that must exist is missing
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned by every operation on a closed store
	ErrClosed = errors.New("store is closed")

	// ErrInvalidFilter is returned when a filter cannot be evaluated or cannot
	// seed an upsert
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidCollection is returned for collection names the backends cannot hold
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrUnsupportedScheme is returned when a connection string names no known backend
	ErrUnsupportedScheme = errors.New("unsupported store scheme")
)

// OpFailure records a single failed op of a bulk call
type OpFailure struct {
	Index int
	Err   error
}

// BulkWriteError carries the per-op failures of a BulkUpsert call
type BulkWriteError struct {
	Collection string
	Failures   []OpFailure
}

// Error implements the error interface
func (e *BulkWriteError) Error() string {
	if len(e.Failures) == 1 {
		f := e.Failures[0]
		return fmt.Sprintf("bulk upsert into %s: op %d: %v", e.Collection, f.Index, f.Err)
	}
	return fmt.Sprintf("bulk upsert into %s: %d ops failed, first (op %d): %v",
		e.Collection, len(e.Failures), e.Failures[0].Index, e.Failures[0].Err)
}

// Unwrap exposes the underlying op errors to errors.Is and errors.As
func (e *BulkWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClosed returns true if the error is ErrClosed
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
