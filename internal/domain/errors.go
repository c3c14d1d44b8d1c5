// Package domain defines core types, interfaces, and errors for the
// data-access engine.
package domain

import (
	"fmt"
	"strings"
)

// InvalidIdentifierError indicates a table or column name that fails the
// strict identifier pattern. Always rejected before any query executes.
type InvalidIdentifierError struct {
	Message string
}

func (e *InvalidIdentifierError) Error() string { return e.Message }

// NotWhitelistedError indicates a table or column that is not present in
// the descriptor set.
type NotWhitelistedError struct {
	Message string
}

func (e *NotWhitelistedError) Error() string { return e.Message }

// ReadOnlyError indicates a mutation attempt against a read-only table.
type ReadOnlyError struct {
	Message string
}

func (e *ReadOnlyError) Error() string { return e.Message }

// AccessDeniedError indicates insufficient permissions for an operation.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError aggregates field-level validation failures so a caller
// can fix all problems in one round trip.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, "; ")
}

// MissingFilterError indicates an update/delete issued without a WHERE clause.
type MissingFilterError struct {
	Message string
}

func (e *MissingFilterError) Error() string { return e.Message }

// BatchSizeError indicates a batch outside the allowed [1,1000] bounds.
type BatchSizeError struct {
	Message string
}

func (e *BatchSizeError) Error() string { return e.Message }

// UnsupportedOperatorError indicates an unknown filter operator.
type UnsupportedOperatorError struct {
	Message string
}

func (e *UnsupportedOperatorError) Error() string { return e.Message }

// EmptyMembershipError indicates an explicit empty-array membership filter,
// which can never match any row.
type EmptyMembershipError struct {
	Message string
}

func (e *EmptyMembershipError) Error() string { return e.Message }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a store-reported unique constraint violation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ForeignKeyError indicates a store-reported foreign key violation.
type ForeignKeyError struct {
	Message string
}

func (e *ForeignKeyError) Error() string { return e.Message }

// NotNullError indicates a store-reported NOT NULL violation.
type NotNullError struct {
	Message string
}

func (e *NotNullError) Error() string { return e.Message }

// RetryableError wraps a transient store condition (serialization failure,
// deadlock, lock timeout). The caller may safely resubmit the same request.
type RetryableError struct {
	Message string
	Cause   error
}

func (e *RetryableError) Error() string { return e.Message }

func (e *RetryableError) Unwrap() error { return e.Cause }

// StoreError wraps an unclassified store failure with a sanitized message.
// The raw driver error is retained for audit logging only.
type StoreError struct {
	Message string
	Cause   error
}

func (e *StoreError) Error() string { return e.Message }

func (e *StoreError) Unwrap() error { return e.Cause }

// ErrInvalidIdentifier creates an InvalidIdentifierError with a formatted message.
func ErrInvalidIdentifier(format string, args ...interface{}) *InvalidIdentifierError {
	return &InvalidIdentifierError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotWhitelisted creates a NotWhitelistedError with a formatted message.
func ErrNotWhitelisted(format string, args ...interface{}) *NotWhitelistedError {
	return &NotWhitelistedError{Message: fmt.Sprintf(format, args...)}
}

// ErrReadOnly creates a ReadOnlyError with a formatted message.
func ErrReadOnly(format string, args ...interface{}) *ReadOnlyError {
	return &ReadOnlyError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a message and optional
// field-level details.
func ErrValidation(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// ErrMissingFilter creates a MissingFilterError for the given table and verb.
func ErrMissingFilter(table, verb string) *MissingFilterError {
	return &MissingFilterError{Message: fmt.Sprintf("%s on %q requires a non-empty filter", verb, table)}
}

// ErrBatchSize creates a BatchSizeError with a formatted message.
func ErrBatchSize(format string, args ...interface{}) *BatchSizeError {
	return &BatchSizeError{Message: fmt.Sprintf(format, args...)}
}

// ErrUnsupportedOperator creates an UnsupportedOperatorError for the given operator.
func ErrUnsupportedOperator(op string) *UnsupportedOperatorError {
	return &UnsupportedOperatorError{Message: fmt.Sprintf("unsupported filter operator %q", op)}
}

// ErrEmptyMembership creates an EmptyMembershipError for the given column.
func ErrEmptyMembership(column string) *EmptyMembershipError {
	return &EmptyMembershipError{Message: fmt.Sprintf("membership filter on %q is empty and can never match", column)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrForeignKey creates a ForeignKeyError with a formatted message.
func ErrForeignKey(format string, args ...interface{}) *ForeignKeyError {
	return &ForeignKeyError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotNull creates a NotNullError with a formatted message.
func ErrNotNull(format string, args ...interface{}) *NotNullError {
	return &NotNullError{Message: fmt.Sprintf(format, args...)}
}
