package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/siglatools/sigla/internal/docstore"
)

var (
	// ErrUniqueViolation is returned when two writers raced to create the same identity
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrBusy is returned when another connection held the database lock for
	// longer than the busy timeout
	ErrBusy = errors.New("database is busy")
)

// convertDBError converts driver errors to store errors
func convertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", docstore.ErrClosed, err)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", ErrUniqueViolation, sqliteErr)
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrBusy, sqliteErr)
		}
	}

	return err
}

// isUndefinedTable reports whether the query hit a collection that was never written
func isUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
