package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/labdesk/labdesk/internal/shared"
)

// ErrStaleVersion is returned by repositories when an optimistic version check
// matched no row.
var ErrStaleVersion = errors.New("platform/db: stale version")

const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateUniqueViolation      = "23505"
)

// Classify maps driver errors onto the workflow taxonomy. Errors that already
// carry a kind are returned untouched.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var werr *shared.Error
	if errors.As(err, &werr) {
		return err
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return shared.Wrap(shared.KindNotFound, op, err)
	case errors.Is(err, ErrStaleVersion):
		return shared.Wrap(shared.KindConflict, op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return shared.Wrap(shared.KindPersistence, op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateUniqueViolation:
			return shared.Wrap(shared.KindConflict, op, err)
		}
	}
	return shared.Wrap(shared.KindPersistence, op, err)
}
