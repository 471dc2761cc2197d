// Package storage opens a document store from a connection URL.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/docstore/memory"
	"github.com/siglatools/sigla/internal/docstore/postgres"
	"github.com/siglatools/sigla/internal/docstore/sqlite"
)

// Backend names a document store implementation
type Backend string

// Supported backends
const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// Opener opens a store for a connection URL
type Opener func(ctx context.Context, rawURL string) (docstore.Store, error)

// Detect returns the backend selected by the URL's scheme
func Detect(rawURL string) (Backend, error) {
	scheme, _, ok := strings.Cut(rawURL, ":")
	if !ok {
		return "", fmt.Errorf("%w: %q has no scheme", docstore.ErrUnsupportedScheme, Redact(rawURL))
	}
	switch strings.ToLower(scheme) {
	case "memory":
		return BackendMemory, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	case "sqlite", "sqlite3", "file":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", docstore.ErrUnsupportedScheme, scheme)
	}
}

// Open connects to the store named by rawURL
func Open(ctx context.Context, rawURL string) (docstore.Store, error) {
	backend, err := Detect(rawURL)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendMemory:
		return memory.NewStore(), nil
	case BackendPostgres:
		return postgres.Open(ctx, rawURL)
	case BackendSQLite:
		dsn, err := sqliteDSN(rawURL)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnsupportedScheme, backend)
	}
}

// sqliteDSN maps sqlite://path and sqlite:///abs/path URLs to a driver DSN.
// file: URIs are handed to the driver unchanged.
func sqliteDSN(rawURL string) (string, error) {
	if strings.HasPrefix(strings.ToLower(rawURL), "file:") {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse sqlite url: %w", err)
	}
	path := u.Host + u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", fmt.Errorf("%w: sqlite url %q has no path", docstore.ErrUnsupportedScheme, rawURL)
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}

// Redact hides the password of a connection URL so it can be logged
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	return u.Redacted()
}
