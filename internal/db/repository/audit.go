// Package repository implements persistence over the SQLite audit store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"datagate/internal/domain"
)

var _ domain.AuditRepository = (*AuditRepo)(nil)

// auditTimeLayout is fixed-width so that TEXT comparison on created_at
// matches chronological order. RFC3339Nano trims trailing zeros, which
// makes string order diverge from time order within a second.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z"

// AuditRepo implements domain.AuditRepository over a SQLite pool. The
// table is append-only: no update or delete statements exist here.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert persists one audit entry. The fingerprint is computed when the
// caller left it empty.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.Fingerprint == "" {
		e.Fingerprint = e.ComputeFingerprint()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	recordIDs, err := json.Marshal(e.RecordIDs)
	if err != nil {
		return fmt.Errorf("marshal record ids: %w", err)
	}

	errorDetail := ""
	if e.ErrorDetail != nil {
		errorDetail = *e.ErrorDetail
	}
	changes := ""
	if e.Changes != nil {
		changes = *e.Changes
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(id, operation, table_name, record_ids, actor, success, error_detail, duration_ms, changes, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Operation), e.TableName, string(recordIDs), e.Actor,
		boolToInt(e.Success), errorDetail, e.DurationMs, changes, e.Fingerprint,
		e.CreatedAt.UTC().Format(auditTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the filtered audit entries, newest first, plus the total
// count matching the filter before pagination.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	where, args := buildAuditWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM audit_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `
		SELECT id, operation, table_name, record_ids, actor, success, error_detail, duration_ms, changes, fingerprint, created_at
		FROM audit_entries` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, filter.Page.Limit(), filter.Page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, total, nil
}

// Summary aggregates the filtered audit set: totals, success rate,
// latency, and per-operation / per-table buckets.
func (r *AuditRepo) Summary(ctx context.Context, filter domain.AuditFilter) (*domain.AuditSummary, error) {
	where, args := buildAuditWhere(filter)

	summary := &domain.AuditSummary{}

	var avg sql.NullFloat64
	var max sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*),
		       coalesce(sum(success), 0),
		       coalesce(avg(duration_ms), 0),
		       max(duration_ms)
		FROM audit_entries`+where, args...,
	).Scan(&summary.Total, &summary.Successes, &avg, &max)
	if err != nil {
		return nil, fmt.Errorf("summarize audit entries: %w", err)
	}
	summary.Failures = summary.Total - summary.Successes
	summary.AvgDurationMs = avg.Float64
	summary.MaxDurationMs = max.Int64
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Total)
	}

	opRows, err := r.db.QueryContext(ctx, `
		SELECT operation, count(*), count(*) - sum(success)
		FROM audit_entries`+where+`
		GROUP BY operation
		ORDER BY operation`, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize audit operations: %w", err)
	}
	defer opRows.Close()
	for opRows.Next() {
		var stat domain.OperationStat
		var op string
		if err := opRows.Scan(&op, &stat.Count, &stat.Failures); err != nil {
			return nil, fmt.Errorf("scan operation stat: %w", err)
		}
		stat.Operation = domain.Operation(op)
		summary.ByOperation = append(summary.ByOperation, stat)
	}
	if err := opRows.Err(); err != nil {
		return nil, fmt.Errorf("summarize audit operations: %w", err)
	}

	tableRows, err := r.db.QueryContext(ctx, `
		SELECT table_name, count(*), count(*) - sum(success)
		FROM audit_entries`+where+`
		GROUP BY table_name
		ORDER BY table_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize audit tables: %w", err)
	}
	defer tableRows.Close()
	for tableRows.Next() {
		var stat domain.TableStat
		if err := tableRows.Scan(&stat.TableName, &stat.Count, &stat.Failures); err != nil {
			return nil, fmt.Errorf("scan table stat: %w", err)
		}
		summary.ByTable = append(summary.ByTable, stat)
	}
	if err := tableRows.Err(); err != nil {
		return nil, fmt.Errorf("summarize audit tables: %w", err)
	}

	return summary, nil
}

// buildAuditWhere renders the WHERE clause for an AuditFilter. All
// values travel as placeholders.
func buildAuditWhere(filter domain.AuditFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if filter.TableName != nil {
		clauses = append(clauses, "table_name = ?")
		args = append(args, *filter.TableName)
	}
	if filter.Operation != nil {
		clauses = append(clauses, "operation = ?")
		args = append(args, string(*filter.Operation))
	}
	if filter.Actor != nil {
		clauses = append(clauses, "actor = ?")
		args = append(args, *filter.Actor)
	}
	if filter.Success != nil {
		clauses = append(clauses, "success = ?")
		args = append(args, boolToInt(*filter.Success))
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.From.UTC().Format(auditTimeLayout))
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.To.UTC().Format(auditTimeLayout))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanAuditEntry(rows *sql.Rows) (*domain.AuditEntry, error) {
	var e domain.AuditEntry
	var op, recordIDs, errorDetail, changes, createdAt string
	var success int

	err := rows.Scan(&e.ID, &op, &e.TableName, &recordIDs, &e.Actor, &success,
		&errorDetail, &e.DurationMs, &changes, &e.Fingerprint, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}

	e.Operation = domain.Operation(op)
	e.Success = success != 0
	if err := json.Unmarshal([]byte(recordIDs), &e.RecordIDs); err != nil {
		return nil, fmt.Errorf("unmarshal record ids: %w", err)
	}
	if errorDetail != "" {
		e.ErrorDetail = &errorDetail
	}
	if changes != "" {
		e.Changes = &changes
	}
	e.CreatedAt, err = parseAuditTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// parseAuditTime accepts both the RFC 3339 form written by Insert and
// the CURRENT_TIMESTAMP form SQLite produces for defaulted columns.
func parseAuditTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized audit timestamp " + s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
