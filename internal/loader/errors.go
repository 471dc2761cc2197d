package loader

import (
	"errors"
	"fmt"

	"github.com/siglatools/sigla/internal/docstore"
)

var (
	// ErrDocumentNotFound is returned when a reference lookup matched fewer or
	// more documents than the sheet declares
	ErrDocumentNotFound = errors.New("unable to find document")

	// ErrUnrecognizedFormat is returned for a format tag without a loader
	ErrUnrecognizedFormat = errors.New("unrecognized sheet format")

	// ErrAmbiguousReference is returned when a single-variable composite sheet
	// resolves to more than one variable
	ErrAmbiguousReference = errors.New("ambiguous variable reference")

	// ErrMalformedRow is returned when a row lacks the structure its format requires
	ErrMalformedRow = errors.New("malformed row")
)

// DocumentNotFoundError carries the lookup that failed to resolve
type DocumentNotFoundError struct {
	SheetTitle string
	Collection string
	Query      docstore.Filter
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("sheet %q: unable to find document in %s matching %s", e.SheetTitle, e.Collection, e.Query)
}

func (e *DocumentNotFoundError) Unwrap() error { return ErrDocumentNotFound }

// UnrecognizedFormatError is returned by Load for an unknown meta_data.format
type UnrecognizedFormatError struct {
	SheetTitle string
	Format     string
	DataType   string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("sheet %q: unrecognized format %q for data type %q", e.SheetTitle, e.Format, e.DataType)
}

func (e *UnrecognizedFormatError) Unwrap() error { return ErrUnrecognizedFormat }

// MalformedRowError points at the row and field that could not be read. Row is
// -1 for sheet metadata.
type MalformedRowError struct {
	SheetTitle string
	Row        int
	Field      string
	Reason     string
}

func (e *MalformedRowError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("sheet %q: meta_data.%s %s", e.SheetTitle, e.Field, e.Reason)
	}
	return fmt.Sprintf("sheet %q: row %d: %s %s", e.SheetTitle, e.Row, e.Field, e.Reason)
}

func (e *MalformedRowError) Unwrap() error { return ErrMalformedRow }

// IsDataError reports whether err was caused by the sheet's content rather than
// by the store. Callers loading a batch skip such payloads and continue.
func IsDataError(err error) bool {
	return errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrUnrecognizedFormat) ||
		errors.Is(err, ErrAmbiguousReference) ||
		errors.Is(err, ErrMalformedRow)
}
