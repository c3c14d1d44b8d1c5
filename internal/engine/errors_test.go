package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datagate/internal/domain"
)

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		target interface{}
	}{
		{"sqlite unique", "UNIQUE constraint failed: customers.email", new(*domain.ConflictError)},
		{"duckdb duplicate", "Duplicate key \"email: x\" violates unique constraint", new(*domain.ConflictError)},
		{"sqlite fk", "FOREIGN KEY constraint failed", new(*domain.ForeignKeyError)},
		{"duckdb fk", "Violates foreign key constraint", new(*domain.ForeignKeyError)},
		{"sqlite not null", "NOT NULL constraint failed: customers.name", new(*domain.NotNullError)},
		{"postgres-style not null", "null value in column \"name\"", new(*domain.NotNullError)},
		{"sqlite busy", "database is locked", new(*domain.RetryableError)},
		{"deadlock", "deadlock detected", new(*domain.RetryableError)},
		{"serialization", "could not serialize access due to concurrent update", new(*domain.RetryableError)},
		{"unknown", "disk I/O error", new(*domain.StoreError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStoreError(domain.OpInsert, "customers", errors.New(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "got %T: %v", err, err)
		})
	}
}

func TestClassifyStoreError_Nil(t *testing.T) {
	assert.NoError(t, classifyStoreError(domain.OpRead, "customers", nil))
}

func TestClassifyStoreError_SanitizesMessage(t *testing.T) {
	raw := errors.New("near \"SELECT secret_column FROM hidden_table\": syntax error")
	err := classifyStoreError(domain.OpRead, "customers", raw)

	// The caller-visible message names only the operation and table; the
	// raw driver detail stays wrapped for internal logging.
	assert.NotContains(t, err.Error(), "hidden_table")
	assert.Contains(t, err.Error(), "customers")
	assert.ErrorIs(t, err, raw)
}

func TestIsRetryable(t *testing.T) {
	retryable := classifyStoreError(domain.OpUpdate, "orders", errors.New("database is locked"))
	assert.True(t, IsRetryable(retryable))

	fatal := classifyStoreError(domain.OpInsert, "orders", errors.New("UNIQUE constraint failed"))
	assert.False(t, IsRetryable(fatal))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
}
