package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrConflict is returned when a concurrent writer won the race for a row.
	ErrConflict = errors.New("repository: concurrent update")
)

// Postgres error codes that the repositories translate.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgInvalidText          = "22P02"
)

// translate maps driver errors onto the package sentinels, leaving anything else untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicate
		case pgSerializationFailure, pgDeadlockDetected:
			return ErrConflict
		case pgInvalidText:
			// A lookup by an id that is not a UUID cannot match any row.
			return ErrNotFound
		}
	}
	return err
}
