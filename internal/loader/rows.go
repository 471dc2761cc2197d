package loader

import (
	"math"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
)

// asObject accepts the map types a decoded row can nest
func asObject(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case sheet.Row:
		return t, true
	case docstore.Document:
		return t, true
	default:
		return nil, false
	}
}

// asInt accepts integral numbers in any of the forms JSON decoding or Go
// callers produce
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
