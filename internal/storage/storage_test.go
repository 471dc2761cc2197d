package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siglatools/sigla/internal/docstore"
	"github.com/siglatools/sigla/internal/docstore/memory"
	"github.com/siglatools/sigla/internal/docstore/sqlite"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		url  string
		want Backend
	}{
		{"memory://", BackendMemory},
		{"postgres://u:p@localhost/sigla", BackendPostgres},
		{"postgresql://localhost/sigla", BackendPostgres},
		{"sqlite:///tmp/sigla.db", BackendSQLite},
		{"file:sigla.db?mode=memory", BackendSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := Detect(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_Unsupported(t *testing.T) {
	_, err := Detect("mongodb://localhost:27017")
	assert.True(t, errors.Is(err, docstore.ErrUnsupportedScheme))

	_, err = Detect("no-scheme")
	assert.True(t, errors.Is(err, docstore.ErrUnsupportedScheme))
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"sqlite:///var/lib/sigla.db": "/var/lib/sigla.db",
		"sqlite://sigla.db":          "sigla.db",
		"sqlite://data/sigla.db?x=1": "data/sigla.db?x=1",
		"file:sigla.db?cache=shared": "file:sigla.db?cache=shared",
	}
	for in, want := range tests {
		got, err := sqliteDSN(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := sqliteDSN("sqlite://")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory://")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "sigla.db"))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Close())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://sigla:xxxxx@db:5432/sigla", Redact("postgres://sigla:secret@db:5432/sigla"))
	assert.Equal(t, "memory://", Redact("memory://"))
}
