// Package sqlite stores documents as JSON text rows in a SQLite database, one
// table per collection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 database/sql driver

	"github.com/siglatools/sigla/internal/docstore"
)

// Compile-time contract assertion
var _ docstore.Store = (*Store)(nil)

const (
	driverName   = "sqlite3"
	catalogTable = "docstore_collections"

	defaultBusyTimeout = 5000
)

// Store persists documents in SQLite
type Store struct {
	db      *sql.DB
	mu      sync.Mutex
	ensured map[string]bool
	closed  atomic.Bool
	newID   func() docstore.ID
}

// Open opens the database file named by dsn. Write transactions are started
// with BEGIN IMMEDIATE so concurrent loaders queue on the database lock
// instead of failing at commit time.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(driverName, withDefaults(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: databases alive
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return New(db), nil
}

// withDefaults adds the driver options the store relies on unless the caller
// already set them
func withDefaults(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "_busy_timeout=") && !strings.Contains(dsn, "_timeout=") {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", defaultBusyTimeout))
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// New wraps an existing database handle
func New(db *sql.DB) *Store {
	return &Store{
		db:      db,
		ensured: make(map[string]bool),
		newID: func() docstore.ID {
			return docstore.ID(uuid.NewString())
		},
	}
}

// Find returns the matching documents ordered by insertion
func (s *Store) Find(ctx context.Context, collection string, filter docstore.Filter) ([]docstore.Document, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	f, err := docstore.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	where, args, err := compileFilter(f)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, doc FROM %s WHERE %s ORDER BY seq", tableName(collection), where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find in %s: %w", collection, convertDBError(err))
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("find in %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, convertDBError(err))
	}
	return docs, nil
}

// FindOneAndUpsert returns the document equal to keys, creating it if needed
func (s *Store) FindOneAndUpsert(ctx context.Context, collection string, keys docstore.Document) (docstore.Document, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	doc, _, _, err := s.upsert(ctx, collection, docstore.UpsertOp{Filter: docstore.Filter(keys), Set: keys})
	if err != nil {
		return nil, fmt.Errorf("find-or-create in %s: %w", collection, err)
	}
	return doc, nil
}

// BulkUpsert runs each op in its own immediate transaction
func (s *Store) BulkUpsert(ctx context.Context, collection string, ops []docstore.UpsertOp) (*docstore.BulkResult, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return docstore.NewBulkResult(), nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return nil, err
	}

	return docstore.RunBulk(ctx, collection, ops, func(ctx context.Context, op docstore.UpsertOp) (docstore.Document, bool, bool, error) {
		return s.upsert(ctx, collection, op)
	})
}

// upsert updates the first match or inserts a new document. The immediate
// transaction holds the database write lock from the lookup to the commit.
func (s *Store) upsert(ctx context.Context, collection string, op docstore.UpsertOp) (docstore.Document, bool, bool, error) {
	filter, err := docstore.NormalizeFilter(op.Filter)
	if err != nil {
		return nil, false, false, err
	}
	set, err := docstore.NormalizeDocument(op.Set)
	if err != nil {
		return nil, false, false, err
	}
	where, args, err := compileFilter(filter)
	if err != nil {
		return nil, false, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, false, fmt.Errorf("failed to begin transaction: %w", convertDBError(err))
	}
	defer tx.Rollback()

	table := tableName(collection)
	query := fmt.Sprintf("SELECT id, doc FROM %s WHERE %s ORDER BY seq LIMIT 1", table, where)
	existing, err := scanDocument(tx.QueryRowContext(ctx, query, args...))

	var (
		doc     docstore.Document
		created bool
		changed bool
	)
	switch {
	case err == nil:
		doc, changed = docstore.Merge(existing, set)
		if changed {
			body, err := marshalBody(doc)
			if err != nil {
				return nil, false, false, err
			}
			update := fmt.Sprintf("UPDATE %s SET doc = ? WHERE id = ?", table)
			if _, err := tx.ExecContext(ctx, update, body, string(doc.ID())); err != nil {
				return nil, false, false, fmt.Errorf("update document: %w", convertDBError(err))
			}
		}
	case docstore.IsNotFound(err):
		doc, err = docstore.UpsertOp{Filter: filter, Set: set}.Insertion()
		if err != nil {
			return nil, false, false, err
		}
		id := s.newID()
		body, err := marshalBody(doc)
		if err != nil {
			return nil, false, false, err
		}
		insert := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", table)
		if _, err := tx.ExecContext(ctx, insert, string(id), body); err != nil {
			return nil, false, false, fmt.Errorf("insert document: %w", convertDBError(err))
		}
		doc[docstore.IDField] = id
		created, changed = true, true
	default:
		return nil, false, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, false, fmt.Errorf("failed to commit transaction: %w", convertDBError(err))
	}
	return doc, created, changed, nil
}

// Collections lists the collections recorded in the catalog
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, docstore.ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT name FROM %s ORDER BY name", catalogTable))
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list collections: %w", convertDBError(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list collections: %w", convertDBError(err))
	}
	return names, nil
}

// DeleteMany removes every row of the collection's table
func (s *Store) DeleteMany(ctx context.Context, collection string) (int64, error) {
	if s.closed.Load() {
		return 0, docstore.ErrClosed
	}
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", tableName(collection)))
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete from %s: %w", collection, convertDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return n, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensured[catalogTable] {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, catalogTable)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure collection catalog: %w", convertDBError(err))
		}
		s.ensured[catalogTable] = true
	}
	if s.ensured[collection] {
		return nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		doc TEXT NOT NULL
	)`, tableName(collection))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collection, convertDBError(err))
	}
	register := fmt.Sprintf("INSERT OR IGNORE INTO %s (name) VALUES (?)", catalogTable)
	if _, err := s.db.ExecContext(ctx, register, collection); err != nil {
		return fmt.Errorf("register collection %s: %w", collection, convertDBError(err))
	}
	s.ensured[collection] = true
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (docstore.Document, error) {
	var id, body string
	if err := row.Scan(&id, &body); err != nil {
		return nil, convertDBError(err)
	}
	var doc docstore.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	if doc == nil {
		doc = docstore.Document{}
	}
	doc[docstore.IDField] = docstore.ID(id)
	return doc, nil
}

func marshalBody(doc docstore.Document) (string, error) {
	body := doc.Clone()
	delete(body, docstore.IDField)
	b, err := json.Marshal(map[string]interface{}(body))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}
