package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories run
// unchanged inside a test transaction
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

const uniqueViolation = "23505"

// mapError translates driver errors into domain sentinels
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(errors.ErrNotFound, "%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.Wrapf(errors.ErrAlreadyExists, "%s (%s)", what, pqErr.Constraint)
	}
	return err
}

func observe(operation string, start time.Time, err error) {
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	metrics.RecordDBQuery("postgres", operation, time.Since(start), err)
}
