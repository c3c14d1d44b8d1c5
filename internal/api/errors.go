package api

import (
	"errors"
	"net/http"

	"datagate/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
// Anything unclassified is a 500 so store internals never leak as
// caller mistakes.
func httpStatusFromDomainError(err error) int {
	var (
		invalidIdentifier   *domain.InvalidIdentifierError
		notWhitelisted      *domain.NotWhitelistedError
		readOnly            *domain.ReadOnlyError
		accessDenied        *domain.AccessDeniedError
		validation          *domain.ValidationError
		missingFilter       *domain.MissingFilterError
		batchSize           *domain.BatchSizeError
		unsupportedOperator *domain.UnsupportedOperatorError
		emptyMembership     *domain.EmptyMembershipError
		notFound            *domain.NotFoundError
		conflict            *domain.ConflictError
		foreignKey          *domain.ForeignKeyError
		notNull             *domain.NotNullError
		retryable           *domain.RetryableError
	)

	switch {
	case errors.As(err, &invalidIdentifier),
		errors.As(err, &notWhitelisted),
		errors.As(err, &validation),
		errors.As(err, &missingFilter),
		errors.As(err, &batchSize),
		errors.As(err, &unsupportedOperator),
		errors.As(err, &emptyMembership),
		errors.As(err, &notNull):
		return http.StatusBadRequest
	case errors.As(err, &accessDenied), errors.As(err, &readOnly):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict), errors.As(err, &foreignKey):
		return http.StatusConflict
	case errors.As(err, &retryable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// validationFields extracts the per-field messages from an aggregated
// validation error, if err is one.
func validationFields(err error) []string {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return validation.Fields
	}
	return nil
}
