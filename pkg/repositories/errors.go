package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
)

// PostgreSQL error codes mapped to domain errors.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// constraintFields maps constraint names to the input field they guard.
var constraintFields = map[string]string{
	"cases_status_id_fkey":          "status_id",
	"cases_cartera_id_fkey":         "cartera_id",
	"cases_assigned_to_id_fkey":     "assigned_to_id",
	"cases_total_check":             "total",
	"promises_case_id_fkey":         "case_id",
	"promises_amount_check":         "amount",
	"promises_status_check":         "status",
	"promises_fulfilled_date_check": "fulfilled_date",
	"activities_case_id_fkey":       "case_id",
	"activities_type_check":         "type",
	"activities_created_by_id_fkey": "created_by_id",
	"users_role_check":              "role",
}

// mapWriteError converts constraint violations into domain errors and wraps
// everything else with the failed operation.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("failed to %s: %w", op, apperrors.ErrConflict)
		case pgForeignKeyViolation:
			field := fieldFor(pgErr.ConstraintName)
			return apperrors.NewValidationError(field, "references a record that does not exist")
		case pgCheckViolation:
			field := fieldFor(pgErr.ConstraintName)
			return apperrors.NewValidationError(field, "value out of range")
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func fieldFor(constraint string) string {
	if field, ok := constraintFields[constraint]; ok {
		return field
	}
	return constraint
}
