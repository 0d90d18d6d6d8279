package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/schooladmin/school-admin/internal"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateNotNullViolation    = "23502"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"

	sqlClassDataException    = "22"
	sqlClassConnectionFailed = "08"
)

type sqlStater interface {
	SQLState() string
}

// classifyError maps a driver error onto the error taxonomy. Data exceptions
// and constraint violations come from the values the caller sent, so they
// are validation errors.
func classifyError(err error) *internal.AppError {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if appErr := classifyState(pgErr.Code, pgErr.ConstraintName, pgErr.ColumnName, err); appErr != nil {
			return appErr
		}
	} else {
		var stater sqlStater
		if errors.As(err, &stater) {
			if appErr := classifyState(stater.SQLState(), "", "", err); appErr != nil {
				return appErr
			}
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return internal.NewConnectionError("database connection lost", err)
	}

	return internal.NewQueryError("database query failed", err)
}

func classifyState(state, constraint, column string, err error) *internal.AppError {
	switch {
	case state == sqlStateUniqueViolation:
		msg := "record already exists"
		if constraint != "" {
			msg = "record violates unique constraint " + constraint
		}
		return internal.NewDuplicateKeyError(msg, internal.ErrCodeDuplicateKey).WithCause(err)
	case state == sqlStateNotNullViolation:
		msg := "a required value is missing"
		if column != "" {
			msg = column + " is required"
		}
		return internal.NewValidationError(msg, internal.ErrCodeConstraint).WithCause(err)
	case state == sqlStateForeignKeyViolation:
		return internal.NewValidationError("referenced record does not exist or is still referenced", internal.ErrCodeConstraint).WithCause(err)
	case state == sqlStateCheckViolation:
		msg := "value is not allowed"
		if constraint != "" {
			msg = "value violates check constraint " + constraint
		}
		return internal.NewValidationError(msg, internal.ErrCodeConstraint).WithCause(err)
	case strings.HasPrefix(state, sqlClassDataException):
		return internal.NewValidationError("invalid value", internal.ErrCodeInvalidValue).WithCause(err)
	case strings.HasPrefix(state, sqlClassConnectionFailed):
		return internal.NewConnectionError("database connection lost", err)
	}
	return nil
}
