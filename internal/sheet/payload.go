// Package sheet defines the normalized sheet payload handed to the loader and
// decodes it from JSON.
package sheet

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Metadata keys read by the loader
const (
	KeyFormat          = "format"
	KeyDataType        = "data_type"
	KeyName            = "name"
	KeyCountry         = "country"
	KeyCategory        = "category"
	KeyVariableHeading = "variable_heading"
	KeyVariableName    = "variable_name"
)

// LegalFramework is the composite data type whose rows reference several variables
const LegalFramework = "legal_framework"

// ErrInvalidPayload is returned when a document is not a sheet payload
var ErrInvalidPayload = errors.New("invalid sheet payload")

// MetaData is the sheet-level mapping extracted from a sheet's header
type MetaData map[string]interface{}

// Has reports whether key was declared, even with a null value
func (m MetaData) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Value returns the raw value of key, nil when absent
func (m MetaData) Value(key string) interface{} {
	return m[key]
}

// String returns the value of key as a string, "" when absent or not a string
func (m MetaData) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Row is one normalized record of formatted_data
type Row map[string]interface{}

// Payload is one normalized sheet
type Payload struct {
	SheetTitle    string   `json:"sheet_title"`
	MetaData      MetaData `json:"meta_data"`
	FormattedData []Row    `json:"formatted_data"`
}

// Format returns the declared format tag
func (p *Payload) Format() string {
	return p.MetaData.String(KeyFormat)
}

// DataType returns the declared data type
func (p *Payload) DataType() string {
	return p.MetaData.String(KeyDataType)
}

// Validate checks the envelope, not the rows
func (p *Payload) Validate() error {
	if p.MetaData == nil {
		return fmt.Errorf("%w: sheet %q has no meta_data", ErrInvalidPayload, p.SheetTitle)
	}
	for i, row := range p.FormattedData {
		if row == nil {
			return fmt.Errorf("%w: sheet %q row %d is null", ErrInvalidPayload, p.SheetTitle, i)
		}
	}
	return nil
}

// Decode reads either a single payload object or an array of payloads
func Decode(r io.Reader) ([]*Payload, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrInvalidPayload)
		}
		return nil, err
	}

	dec := json.NewDecoder(br)
	var payloads []*Payload
	switch first {
	case '[':
		if err := dec.Decode(&payloads); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	case '{':
		var p Payload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		payloads = append(payloads, &p)
	default:
		return nil, fmt.Errorf("%w: expected an object or an array, got %q", ErrInvalidPayload, first)
	}

	for i, p := range payloads {
		if p == nil {
			return nil, fmt.Errorf("%w: payload %d is null", ErrInvalidPayload, i)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return payloads, nil
}

// ReadFile decodes the payloads stored in a JSON file
func ReadFile(path string) ([]*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	payloads, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return payloads, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
