package common

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

// HandlePostgreSQLError converts PostgreSQL-specific errors to appropriate AppError codes
func HandlePostgreSQLError(err error, operation string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperrors.Wrap(err, apperrors.CodeInternal, operation)
	}

	switch pgErr.Code {
	case "23505": // UNIQUE_VIOLATION
		return handleUniqueViolation(pgErr, operation)

	case "23503": // FOREIGN_KEY_VIOLATION
		return handleForeignKeyViolation(pgErr, operation)

	case "23502": // NOT_NULL_VIOLATION
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, operation+": required field is missing")

	case "23514": // CHECK_VIOLATION
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, operation+": value out of range ("+pgErr.ConstraintName+")")

	case "22P02": // INVALID_TEXT_REPRESENTATION, e.g. a value outside an enum
		return apperrors.Wrap(err, apperrors.CodeInvalidArg, operation+": invalid enum or text value")

	case "42P01", "42703": // UNDEFINED_TABLE, UNDEFINED_COLUMN
		return apperrors.Wrap(err, apperrors.CodeInternal, operation+": database schema error, run migrations")

	case "08000", "08003", "08006", "57P01", "53300", "40001", "40P01":
		// connection loss, admin shutdown, too many connections, serialization, deadlock
		return apperrors.Transient(err, operation+": database temporarily unavailable")

	default:
		return apperrors.Wrap(err, apperrors.CodeInternal, operation+" (PostgreSQL code: "+pgErr.Code+")")
	}
}

func handleUniqueViolation(pgErr *pgconn.PgError, operation string) *apperrors.AppError {
	constraint := pgErr.ConstraintName

	switch {
	case strings.Contains(constraint, "source_url"):
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, operation+": video with this source URL already exists")
	case strings.HasPrefix(constraint, "videos_video_id"):
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, operation+": video with this platform id already exists")
	case strings.Contains(constraint, "ingredient_name"):
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, operation+": ingredient already exists")
	default:
		return apperrors.Wrap(pgErr, apperrors.CodeConflict, operation+": resource already exists")
	}
}

func handleForeignKeyViolation(pgErr *pgconn.PgError, operation string) *apperrors.AppError {
	constraint := pgErr.ConstraintName

	switch {
	case strings.Contains(constraint, "ingredient_id"):
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, operation+": referenced ingredient does not exist")
	case strings.Contains(constraint, "analysis_id"):
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, operation+": referenced analysis does not exist")
	case strings.Contains(constraint, "video_id"):
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, operation+": referenced video does not exist")
	default:
		return apperrors.Wrap(pgErr, apperrors.CodeDependency, operation+": referenced resource does not exist")
	}
}
