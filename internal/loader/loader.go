// Package loader persists normalized sheet payloads into a document store.
//
// A payload's meta_data.format selects one of three write paths: institution
// rows with child variables, composite variable tables, or a composite table
// plus an aggregate institution. Every write goes through an upsert keyed by
// the document's natural key, so loading the same sheet twice converges to
// the same documents.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/sheet"
	"github.com/siglatools/sigla/internal/storage"
)

// ErrNilPayload is returned by Load when called without a payload
var ErrNilPayload = errors.New("nil sheet payload")

// Config holds the loader's connection settings
type Config struct {
	// DatabaseURL selects the store backend and its database
	DatabaseURL string
}

// Option customizes a Loader
type Option func(*Loader)

// WithLogger sets the logger used for load and clean-up reports
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithStore makes the loader use an already open store. The loader takes
// ownership and closes it on Close.
func WithStore(store docstore.Store) Option {
	return func(l *Loader) {
		l.store = store
	}
}

// WithOpener replaces the function used to open the store on first use
func WithOpener(open storage.Opener) Option {
	return func(l *Loader) {
		if open != nil {
			l.open = open
		}
	}
}

// Loader is the entry point for loading sheets. The store connection is
// opened on first use and released by Close.
type Loader struct {
	cfg    Config
	logger *zap.Logger
	open   storage.Opener

	mu     sync.Mutex
	store  docstore.Store
	closed bool
}

// New creates a loader. No connection is made until the first operation.
func New(cfg Config, opts ...Option) *Loader {
	l := &Loader{
		cfg:    cfg,
		logger: zap.NewNop(),
		open:   storage.Open,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect opens the store if it is not open yet
func (l *Loader) Connect(ctx context.Context) (docstore.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, docstore.ErrClosed
	}
	if l.store != nil {
		return l.store, nil
	}

	store, err := l.open(ctx, l.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", storage.Redact(l.cfg.DatabaseURL), err)
	}
	l.store = store
	return store, nil
}

// run carries the state of one Load call
type run struct {
	store   docstore.Store
	logger  *zap.Logger
	payload *sheet.Payload
	report  *Report
}

// Load writes one payload to the store. An unrecognized format fails before
// anything is written.
func (l *Loader) Load(ctx context.Context, p *sheet.Payload) (*Report, error) {
	if p == nil {
		return nil, ErrNilPayload
	}

	format, err := sheet.ParseFormat(p.Format())
	if err != nil {
		return nil, &UnrecognizedFormatError{SheetTitle: p.SheetTitle, Format: p.Format(), DataType: p.DataType()}
	}

	store, err := l.Connect(ctx)
	if err != nil {
		return nil, err
	}

	r := &run{
		store:   store,
		logger:  l.logger,
		payload: p,
		report:  newReport(p.SheetTitle, format.String()),
	}

	switch format {
	case sheet.StandardInstitution, sheet.InstitutionByRows, sheet.MultipleSiglaAnswerVariable:
		err = r.loadInstitutions(ctx)
	case sheet.CompositeVariable:
		err = r.loadCompositeVariable(ctx)
	case sheet.InstitutionAndCompositeVariable:
		// Reject rows the aggregate step cannot group before the composite rows are written
		if _, err = groupAnswers(p); err != nil {
			break
		}
		if err = r.loadCompositeVariable(ctx); err == nil {
			err = r.loadAggregateInstitution(ctx)
		}
	default:
		err = &UnrecognizedFormatError{SheetTitle: p.SheetTitle, Format: p.Format(), DataType: p.DataType()}
	}
	if err != nil {
		return r.report, err
	}
	return r.report, nil
}

// CleanUp deletes every document of every collection and returns the number
// of documents removed per collection
func (l *Loader) CleanUp(ctx context.Context) (map[string]int64, error) {
	store, err := l.Connect(ctx)
	if err != nil {
		return nil, err
	}

	collections, err := store.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	deleted := make(map[string]int64, len(collections))
	for _, collection := range collections {
		n, err := store.DeleteMany(ctx, collection)
		if err != nil {
			return deleted, fmt.Errorf("clean up %s: %w", collection, err)
		}
		deleted[collection] = n
		l.logger.Info(fmt.Sprintf("Deleted %d old documents from %s.", n, collection),
			zap.String("collection", collection),
			zap.Int64("deleted", n),
		)
	}
	return deleted, nil
}

// Close releases the store connection. It is safe to call more than once and
// on a loader that never connected.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}

func (l *Loader) String() string {
	return fmt.Sprintf("<Loader [%s]>", storage.Redact(l.cfg.DatabaseURL))
}
