package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Audit entry status values.
const (
	AuditSuccess = "SUCCESS"
	AuditFailure = "FAILURE"
)

// AuditEntry is an immutable record of one attempted operation.
// Entries are created on every attempt and never mutated or deleted
// through the public interface.
type AuditEntry struct {
	ID          string
	Operation   Operation
	TableName   string
	RecordIDs   []string
	Actor       string
	Success     bool
	ErrorDetail *string
	DurationMs  int64
	Changes     *string // JSON before/after summary
	Fingerprint string
	CreatedAt   time.Time
}

// ComputeFingerprint derives a stable content hash for duplicate
// detection across retried submissions.
func (e *AuditEntry) ComputeFingerprint() string {
	changes := ""
	if e.Changes != nil {
		changes = *e.Changes
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%v|%s", e.Operation, e.TableName, e.Actor, e.RecordIDs, changes))
	return hex.EncodeToString(sum[:])
}

// AuditFilter selects audit entries for retrieval.
type AuditFilter struct {
	TableName *string
	Operation *Operation
	Actor     *string
	Success   *bool
	From      *time.Time
	To        *time.Time
	Page      PageRequest
}

// OperationStat is an aggregate bucket for one operation kind.
type OperationStat struct {
	Operation Operation
	Count     int64
	Failures  int64
}

// TableStat is an aggregate bucket for one table.
type TableStat struct {
	TableName string
	Count     int64
	Failures  int64
}

// AuditSummary aggregates the filtered audit set.
type AuditSummary struct {
	Total         int64
	Successes     int64
	Failures      int64
	SuccessRate   float64
	AvgDurationMs float64
	MaxDurationMs int64
	ByOperation   []OperationStat
	ByTable       []TableStat
}
