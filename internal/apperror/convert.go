package apperror

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes for the constraint classes callers can correct.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// FromDB classifies an error returned by gorm or the postgres driver. Errors that are
// already classified pass through unchanged.
func FromDB(err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return Wrap(KindUniqueViolation, err, constraintMessage(pgErr, "entry already exists"))
		case pgForeignKeyViolation:
			return Wrap(KindForeignKey, err, constraintMessage(pgErr, "referenced row does not exist"))
		case pgNotNullViolation:
			return Wrap(KindNotNull, err, "missing value for column "+pgErr.ColumnName)
		case pgCheckViolation:
			return Wrap(KindBadRequest, err, constraintMessage(pgErr, "value rejected by check"))
		}
		return Wrap(KindDatabase, err, "")
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(KindDoesNotExist, err, "record not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(KindUniqueViolation, err, "entry already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return Wrap(KindForeignKey, err, "referenced row does not exist")
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return Wrap(KindBadRequest, err, "value rejected by check")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Wrap(KindConnection, err, "")
	}

	return Wrap(KindDatabase, err, "")
}

// FromParse classifies a failure to parse caller input.
func FromParse(err error, msg string) error {
	return Wrap(KindParse, err, msg)
}

func constraintMessage(pgErr *pgconn.PgError, fallback string) string {
	if pgErr.ConstraintName == "" {
		return fallback
	}
	return fallback + " (" + pgErr.ConstraintName + ")"
}
