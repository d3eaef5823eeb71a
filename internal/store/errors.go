package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound means no row matched an id or unique-key lookup.
	ErrNotFound = errors.New("not found")
	// ErrConstraint means a unique, foreign-key or check constraint rejected the write.
	ErrConstraint = errors.New("constraint violation")
	// ErrUnavailable means the database could not serve the call: lock
	// contention past the busy timeout, a closed pool, or a cancelled context.
	ErrUnavailable = errors.New("storage unavailable")
)

// wrap annotates err with op and, when the failure is one of the known
// kinds, with the matching sentinel so callers can use errors.Is.
func wrap(op string, err error) error {
	if kind := kindOf(err); kind != nil {
		return fmt.Errorf("%s: %w: %w", op, kind, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrUnavailable
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return ErrConstraint
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return ErrUnavailable
		}
	}

	// database/sql does not export its closed-pool error.
	if strings.Contains(err.Error(), "database is closed") {
		return ErrUnavailable
	}
	return nil
}

// affected reports whether a write touched at least one row.
func affected(op string, res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(op+" rows affected", err)
	}
	return n > 0, nil
}
