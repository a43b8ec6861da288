package errors

import (
	stdErrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// FromDB translates driver-level failures into coded errors so
// controllers never have to inspect driver types themselves.
func FromDB(err error, notFoundMessage string) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return New(CodeNotFound, notFoundMessage)
	}

	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return fromSQLState(err, pgxErr.Code)
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return fromSQLState(err, string(pqErr.Code))
	}

	return Wrap(CodeInternal, err, "database operation failed")
}

func fromSQLState(err error, sqlState string) *Error {
	switch sqlState {
	case pgUniqueViolation:
		return Wrap(CodeConflict, err, "duplicate record")
	case pgForeignKeyViolation:
		return Wrap(CodeValidation, err, "referenced record does not exist")
	case pgCheckViolation:
		return Wrap(CodeValidation, err, "record violates a data constraint")
	default:
		return Wrap(CodeInternal, err, "database operation failed")
	}
}
