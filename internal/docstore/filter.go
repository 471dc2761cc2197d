package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Filter selects documents by field predicates. A plain value requires the
// field to equal it, nil requires the field to be absent or null, and an In
// value requires the field to equal one of its members.
type Filter map[string]interface{}

// In is a membership predicate
type In []interface{}

// InStrings builds a membership predicate over strings
func InStrings(values []string) In {
	out := make(In, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// InIDs builds a membership predicate over document identities
func InIDs(ids []ID) In {
	out := make(In, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Keys returns the filter's field names in sorted order
func (f Filter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical renders the filter as JSON with sorted keys, suitable as a lock
// or log key
func (f Filter) Canonical() (string, error) {
	norm, err := NormalizeFilter(f)
	if err != nil {
		return "", err
	}
	// encoding/json sorts map keys
	b, err := json.Marshal(map[string]interface{}(norm))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return string(b), nil
}

// String renders the filter for error messages
func (f Filter) String() string {
	s, err := f.Canonical()
	if err != nil {
		return fmt.Sprintf("%v", map[string]interface{}(f))
	}
	return s
}

// Matches reports whether doc satisfies every predicate of the filter. Both
// sides are expected to be normalized.
func (f Filter) Matches(doc Document) bool {
	for key, want := range f {
		got, present := doc[key]
		if id, ok := got.(ID); ok {
			got = string(id)
		}
		switch w := want.(type) {
		case nil:
			if present && got != nil {
				return false
			}
		case In:
			if !present {
				return false
			}
			found := false
			for _, member := range w {
				if reflect.DeepEqual(got, member) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			if !present || !reflect.DeepEqual(got, w) {
				return false
			}
		}
	}
	return true
}

// Normalize converts a value to its JSON data model representation (string,
// float64, bool, nil, []interface{}, map[string]interface{}) so values
// compare the same way on every backend.
func Normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	case ID:
		return string(t), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeDocument normalizes every field of a document. The identity field
// keeps its ID type.
func NormalizeDocument(doc Document) (Document, error) {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == IDField {
			out[k] = v
			continue
		}
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("normalize field %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// NormalizeFilter normalizes every predicate value of a filter
func NormalizeFilter(f Filter) (Filter, error) {
	out := make(Filter, len(f))
	for k, v := range f {
		if in, ok := v.(In); ok {
			members := make(In, len(in))
			for i, m := range in {
				n, err := Normalize(m)
				if err != nil {
					return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidFilter, k, err)
				}
				members[i] = n
			}
			out[k] = members
			continue
		}
		n, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidFilter, k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Merge returns base with every field of set applied on top, i.e. the effect
// of a $set update. The boolean reports whether any field changed.
func Merge(base Document, set Document) (Document, bool) {
	out := base.Clone()
	changed := false
	for k, v := range set {
		if k == IDField {
			continue
		}
		if old, ok := out[k]; !ok || !reflect.DeepEqual(old, v) {
			changed = true
		}
		out[k] = v
	}
	return out, changed
}
