package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"PDFLibraryBot/internal/domain"
)

// ErrDuplicate reports a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

const (
	codeUniqueViolation  = "23505"
	codeInvalidTextInput = "22P02"
)

// wrapError maps driver errors onto domain sentinels. Everything that is
// not a missing row is also marked as domain.ErrPersistence.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, domain.ErrPersistence)
		case codeInvalidTextInput:
			// malformed uuid in a lookup
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %v: %w", op, err, domain.ErrPersistence)
}
