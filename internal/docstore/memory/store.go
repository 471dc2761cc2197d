// Package memory provides an in-process implementation of docstore.Store used
// by tests, dry runs and memory:// connection strings.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/siglatools/sigla/internal/docstore"
)

// Compile-time contract assertion
var _ docstore.Store = (*Store)(nil)

// Store keeps every collection as an insertion-ordered slice of documents
type Store struct {
	mu          sync.Mutex
	collections map[string][]docstore.Document
	closed      bool
	newID       func() docstore.ID
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		collections: make(map[string][]docstore.Document),
		newID: func() docstore.ID {
			return docstore.ID(uuid.NewString())
		},
	}
}

// Find returns copies of the matching documents in insertion order
func (s *Store) Find(ctx context.Context, collection string, filter docstore.Filter) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	var out []docstore.Document
	for _, doc := range s.collections[collection] {
		if f.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// FindOneAndUpsert returns the first document equal to keys or creates it
func (s *Store) FindOneAndUpsert(ctx context.Context, collection string, keys docstore.Document) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	filter, set, err := normalizeOp(docstore.UpsertOp{Filter: docstore.Filter(keys), Set: keys})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	doc, _, _, err := s.upsertLocked(collection, filter, set)
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// BulkUpsert applies every op in order. The whole batch runs under one lock
// so no reader observes a half-applied op.
func (s *Store) BulkUpsert(ctx context.Context, collection string, ops []docstore.UpsertOp) (*docstore.BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	return docstore.RunBulk(ctx, collection, ops, func(_ context.Context, op docstore.UpsertOp) (docstore.Document, bool, bool, error) {
		filter, set, err := normalizeOp(op)
		if err != nil {
			return nil, false, false, err
		}
		return s.upsertLocked(collection, filter, set)
	})
}

// upsertLocked merges set into the first document matching filter, inserting
// a new document when nothing matches. Callers must hold s.mu.
func (s *Store) upsertLocked(
	collection string,
	filter docstore.Filter,
	set docstore.Document,
) (docstore.Document, bool, bool, error) {
	docs := s.collections[collection]
	for i, existing := range docs {
		if !filter.Matches(existing) {
			continue
		}
		merged, changed := docstore.Merge(existing, set)
		docs[i] = merged
		return merged, false, changed, nil
	}

	insertion, err := docstore.UpsertOp{Filter: filter, Set: set}.Insertion()
	if err != nil {
		return nil, false, false, err
	}
	insertion[docstore.IDField] = s.newID()
	s.collections[collection] = append(docs, insertion)
	return insertion, true, true, nil
}

// Collections lists every collection ever written, sorted by name
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteMany empties the collection
func (s *Store) DeleteMany(ctx context.Context, collection string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, docstore.ErrClosed
	}

	docs, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	s.collections[collection] = nil
	return int64(len(docs)), nil
}

// Close marks the store closed. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of documents in a collection
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

func normalizeOp(op docstore.UpsertOp) (docstore.Filter, docstore.Document, error) {
	filter, err := docstore.NormalizeFilter(op.Filter)
	if err != nil {
		return nil, nil, err
	}
	set, err := docstore.NormalizeDocument(op.Set)
	if err != nil {
		return nil, nil, err
	}
	return filter, set, nil
}
