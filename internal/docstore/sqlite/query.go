package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siglatools/sigla/internal/docstore"
)

// jsonPath addresses a top-level field of the doc column
func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

// compileFilter translates a normalized filter into a WHERE clause over the
// doc TEXT column using the JSON1 functions
func compileFilter(filter docstore.Filter) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}

	for _, key := range filter.Keys() {
		if key == docstore.IDField {
			id, ok := filter[key].(string)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s must be a single identity", docstore.ErrInvalidFilter, key)
			}
			clauses = append(clauses, "id = ?")
			args = append(args, id)
			continue
		}

		path := jsonPath(key)
		switch want := filter[key].(type) {
		case nil:
			// json_extract yields SQL NULL for both a missing field and a JSON null
			clauses = append(clauses, "json_extract(doc, ?) IS NULL")
			args = append(args, path)
		case docstore.In:
			if len(want) == 0 {
				clauses = append(clauses, "0")
				continue
			}
			placeholders := make([]string, len(want))
			args = append(args, path)
			for i, m := range want {
				v, err := scalarArg(m)
				if err != nil {
					return "", nil, fmt.Errorf("%w: field %q: %v", docstore.ErrInvalidFilter, key, err)
				}
				placeholders[i] = "?"
				args = append(args, v)
			}
			clauses = append(clauses, fmt.Sprintf("json_extract(doc, ?) IN (%s)", strings.Join(placeholders, ", ")))
		case bool:
			clauses = append(clauses, "json_type(doc, ?) = ?")
			args = append(args, path, fmt.Sprintf("%t", want))
		case string:
			clauses = append(clauses, "(json_type(doc, ?) = 'text' AND json_extract(doc, ?) = ?)")
			args = append(args, path, path, want)
		case float64:
			clauses = append(clauses, "(json_type(doc, ?) IN ('integer', 'real') AND json_extract(doc, ?) = ?)")
			args = append(args, path, path, want)
		default:
			value, err := json.Marshal(want)
			if err != nil {
				return "", nil, fmt.Errorf("%w: field %q: %v", docstore.ErrInvalidFilter, key, err)
			}
			clauses = append(clauses, "json_extract(doc, ?) = json(?)")
			args = append(args, path, string(value))
		}
	}

	if len(clauses) == 0 {
		return "1", nil, nil
	}
	return strings.Join(clauses, " AND "), args, nil
}

func scalarArg(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string, float64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return nil, fmt.Errorf("membership supports scalar members only, got %T", v)
	}
}

// tableName returns the quoted table holding a collection. Collection names
// are validated identifiers.
func tableName(collection string) string {
	return `"` + collection + `"`
}
