// Package docstore defines the collection/document contract the loader writes
// through. Backends live in the memory, postgres and sqlite subpackages.
package docstore

import (
	"context"
	"fmt"
	"regexp"
)

// IDField is the reserved document field carrying the store-assigned identity
const IDField = "_id"

// ID is an opaque, store-assigned document identity
type ID string

// String returns the identity as a plain string
func (id ID) String() string {
	return string(id)
}

// Document is a schemaless record stored in a collection
type Document map[string]interface{}

// ID returns the store-assigned identity of the document, or "" when the
// document has not been persisted
func (d Document) ID() ID {
	switch v := d[IDField].(type) {
	case ID:
		return v
	case string:
		return ID(v)
	default:
		return ""
	}
}

// Clone returns a shallow copy of the document
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// UpsertOp is one match-on-filter, set-fields, insert-if-missing request
type UpsertOp struct {
	Filter Filter
	Set    Document
}

// Insertion returns the document created when the filter matches nothing:
// the filter's equality fields merged with Set. Membership predicates cannot
// seed a document and are rejected.
func (op UpsertOp) Insertion() (Document, error) {
	doc := make(Document, len(op.Filter)+len(op.Set))
	for k, v := range op.Filter {
		if _, ok := v.(In); ok {
			return nil, fmt.Errorf("%w: membership predicate on %q cannot seed an upsert", ErrInvalidFilter, k)
		}
		doc[k] = v
	}
	for k, v := range op.Set {
		if k == IDField {
			continue
		}
		doc[k] = v
	}
	return doc, nil
}

// BulkResult reports the outcome of a BulkUpsert call
type BulkResult struct {
	// Upserted is the number of documents created
	Upserted int
	// Matched is the number of existing documents the filters matched
	Matched int
	// Modified is the number of matched documents whose content changed
	Modified int
	// UpsertedIDs maps request index to the identity of the created document
	UpsertedIDs map[int]ID
}

// NewBulkResult returns an empty result ready for accumulation
func NewBulkResult() *BulkResult {
	return &BulkResult{UpsertedIDs: make(map[int]ID)}
}

// Store is the document store the loader persists into. Every call blocks
// until the backend has answered.
type Store interface {
	// Find returns every document of the collection matching the filter, in
	// insertion order. A missing collection yields no documents.
	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)

	// FindOneAndUpsert atomically returns the document whose fields equal keys,
	// creating it with exactly those fields when none exists. The returned
	// document reflects the state after the call.
	FindOneAndUpsert(ctx context.Context, collection string, keys Document) (Document, error)

	// BulkUpsert applies every op independently. A failing op does not undo the
	// others; failures are reported as a *BulkWriteError next to the result of
	// the ops that succeeded.
	BulkUpsert(ctx context.Context, collection string, ops []UpsertOp) (*BulkResult, error)

	// Collections lists the collections currently holding documents or created
	// by a previous write.
	Collections(ctx context.Context) ([]string, error)

	// DeleteMany removes every document of the collection and reports how many
	// were removed.
	DeleteMany(ctx context.Context, collection string) (int64, error)

	// Close releases the backend's resources. Further calls fail with ErrClosed.
	Close() error
}

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateCollection checks that name can be used as a collection name on
// every backend
func ValidateCollection(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// UpsertFunc applies a single op and reports the resulting document, whether
// it was created and whether its content changed
type UpsertFunc func(ctx context.Context, op UpsertOp) (doc Document, created bool, changed bool, err error)

// RunBulk applies upsert to every op independently and accumulates the
// outcome. Ops keep their request index in both the result and the failures.
func RunBulk(ctx context.Context, collection string, ops []UpsertOp, upsert UpsertFunc) (*BulkResult, error) {
	result := NewBulkResult()
	var failures []OpFailure

	for i, op := range ops {
		// A cancelled context fails every remaining op the same way
		if err := ctx.Err(); err != nil {
			failures = append(failures, OpFailure{Index: i, Err: err})
			continue
		}
		doc, created, changed, err := upsert(ctx, op)
		if err != nil {
			failures = append(failures, OpFailure{Index: i, Err: err})
			continue
		}
		if created {
			result.Upserted++
			result.UpsertedIDs[i] = doc.ID()
			continue
		}
		result.Matched++
		if changed {
			result.Modified++
		}
	}

	if len(failures) > 0 {
		return result, &BulkWriteError{Collection: collection, Failures: failures}
	}
	return result, nil
}
