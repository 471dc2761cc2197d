package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/siglatools/sigla/internal/docstore"
)

// compileFilter translates a normalized filter into a WHERE clause over the
// doc JSONB column. Placeholders start at $start; fields are emitted in sorted
// order so the generated SQL is stable.
func compileFilter(filter docstore.Filter, start int) (string, []interface{}, error) {
	var clauses []string
	var args []interface{}
	counter := start

	for _, key := range filter.Keys() {
		if key == docstore.IDField {
			id, ok := filter[key].(string)
			if !ok {
				return "", nil, fmt.Errorf("%w: %s must be a single identity", docstore.ErrInvalidFilter, key)
			}
			clauses = append(clauses, fmt.Sprintf("id = $%d", counter))
			args = append(args, id)
			counter++
			continue
		}

		switch want := filter[key].(type) {
		case nil:
			clauses = append(clauses, fmt.Sprintf("(doc -> $%d::text IS NULL OR doc -> $%d::text = 'null'::jsonb)", counter, counter))
			args = append(args, key)
			counter++
		case docstore.In:
			if strs, ok := allStrings(want); ok {
				clauses = append(clauses, fmt.Sprintf(
					"(jsonb_typeof(doc -> $%d::text) = 'string' AND doc ->> $%d::text = ANY($%d::text[]))",
					counter, counter, counter+1))
				args = append(args, key, pq.Array(strs))
				counter += 2
				continue
			}
			members, err := json.Marshal([]interface{}(want))
			if err != nil {
				return "", nil, fmt.Errorf("%w: field %q: %v", docstore.ErrInvalidFilter, key, err)
			}
			clauses = append(clauses, fmt.Sprintf(
				"(doc -> $%d::text IS NOT NULL AND jsonb_build_array(doc -> $%d::text) <@ $%d::jsonb)",
				counter, counter, counter+1))
			args = append(args, key, string(members))
			counter += 2
		default:
			value, err := json.Marshal(want)
			if err != nil {
				return "", nil, fmt.Errorf("%w: field %q: %v", docstore.ErrInvalidFilter, key, err)
			}
			clauses = append(clauses, fmt.Sprintf("doc -> $%d::text = $%d::jsonb", counter, counter+1))
			args = append(args, key, string(value))
			counter += 2
		}
	}

	if len(clauses) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(clauses, " AND "), args, nil
}

func allStrings(members docstore.In) ([]string, bool) {
	out := make([]string, 0, len(members))
	for _, m := range members {
		s, ok := m.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// tableName returns the quoted table holding a collection
func tableName(collection string) string {
	return pq.QuoteIdentifier(collection)
}
