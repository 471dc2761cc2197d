package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for _, f := range Formats() {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	f, err := ParseFormat("unknown_shape")
	assert.Equal(t, FormatUnknown, f)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	assert.Contains(t, err.Error(), "unknown_shape")
}

func TestDecode_Single(t *testing.T) {
	input := `
	{
		"sheet_title": "Judiciary",
		"meta_data": {"format": "composite_variable", "data_type": "legal_framework", "country": null},
		"formatted_data": [{"index": 0, "answer": "yes"}]
	}`

	payloads, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	p := payloads[0]
	assert.Equal(t, "Judiciary", p.SheetTitle)
	assert.Equal(t, "composite_variable", p.Format())
	assert.Equal(t, LegalFramework, p.DataType())
	assert.True(t, p.MetaData.Has(KeyCountry))
	assert.Nil(t, p.MetaData.Value(KeyCountry))
	assert.False(t, p.MetaData.Has(KeyCategory))
	assert.Equal(t, float64(0), p.FormattedData[0]["index"])
}

func TestDecode_Array(t *testing.T) {
	input := `[
		{"sheet_title": "A", "meta_data": {"format": "standard_institution"}, "formatted_data": []},
		{"sheet_title": "B", "meta_data": {"format": "institution_by_rows"}, "formatted_data": []}
	]`

	payloads, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, "B", payloads[1].SheetTitle)
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":        "   ",
		"scalar":       `"sheet"`,
		"no meta_data": `{"sheet_title": "A"}`,
		"null row":     `{"meta_data": {}, "formatted_data": [null]}`,
		"null payload": `[null]`,
		"broken json":  `{"meta_data": `,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input))
			assert.True(t, errors.Is(err, ErrInvalidPayload), "got %v", err)
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sheet_title": "A", "meta_data": {}}`), 0o644))

	payloads, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, "A", payloads[0].SheetTitle)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
