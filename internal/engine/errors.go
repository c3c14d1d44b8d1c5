package engine

import (
	"errors"
	"strings"

	"datagate/internal/domain"
)

// classifyStoreError maps a raw driver error onto the domain taxonomy.
// The returned message carries only the table name and operation, never
// statement text or non-whitelisted schema detail; the raw cause stays
// wrapped for internal logging.
func classifyStoreError(op domain.Operation, table string, err error) error {
	if err == nil {
		return nil
	}

	where := string(op)
	if table != "" {
		where += " on table " + table
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key"):
		return domain.ErrConflict("duplicate key on table %q", table)
	case strings.Contains(msg, "foreign key constraint") || strings.Contains(msg, "violates foreign key"):
		return domain.ErrForeignKey("foreign key violation on table %q", table)
	case strings.Contains(msg, "not null constraint") || strings.Contains(msg, "null value in column"):
		return domain.ErrNotNull("not-null violation on table %q", table)
	case strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "deadlock") ||
		strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "serialization failure"):
		return &domain.RetryableError{
			Message: where + " hit a transient store conflict",
			Cause:   err,
		}
	default:
		return &domain.StoreError{
			Message: where + " failed",
			Cause:   err,
		}
	}
}

// IsRetryable reports whether a failed batch may be resubmitted
// unchanged with a chance of success. Constraint violations are fatal:
// resubmitting the same input will fail identically.
func IsRetryable(err error) bool {
	var retryable *domain.RetryableError
	return errors.As(err, &retryable)
}
