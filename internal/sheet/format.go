package sheet

import (
	"errors"
	"fmt"
)

// ErrUnknownFormat is returned by ParseFormat for a tag outside the known set
var ErrUnknownFormat = errors.New("unknown sheet format")

// Format is the shape a sheet declares in meta_data.format
type Format int

const (
	// FormatUnknown is the zero value and never a valid shape
	FormatUnknown Format = iota
	StandardInstitution
	InstitutionByRows
	InstitutionAndCompositeVariable
	CompositeVariable
	MultipleSiglaAnswerVariable
)

var formatNames = map[Format]string{
	StandardInstitution:             "standard_institution",
	InstitutionByRows:               "institution_by_rows",
	InstitutionAndCompositeVariable: "institution_and_composite_variable",
	CompositeVariable:               "composite_variable",
	MultipleSiglaAnswerVariable:     "multiple_sigla_answer_variable",
}

// Formats lists every known shape in declaration order
func Formats() []Format {
	return []Format{
		StandardInstitution,
		InstitutionByRows,
		InstitutionAndCompositeVariable,
		CompositeVariable,
		MultipleSiglaAnswerVariable,
	}
}

// ParseFormat maps a meta_data.format tag to its Format
func ParseFormat(tag string) (Format, error) {
	for _, f := range Formats() {
		if formatNames[f] == tag {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, tag)
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}
