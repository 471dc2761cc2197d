package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/siglatools/sigla/internal/docstore"
)

// PostgreSQL error codes the store reacts to
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
	codeDeadlock        = "40P01"
	codeSerialization   = "40001"
)

var (
	// ErrUniqueViolation is returned when two writers raced to create the same identity
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrConflict is returned when the server aborted a write to break a deadlock or
	// serialization conflict
	ErrConflict = errors.New("write conflict")
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

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.Detail)
		case codeDeadlock, codeSerialization:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}

	return err
}

// isUndefinedTable reports whether the query hit a collection that was never written
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}
