package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"datagate/internal/domain"
	"datagate/internal/sqlbuilder"
)

// dbtx is the execution surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// queryRecords runs one statement and scans every returned row into a
// generic Record keyed by the result columns.
func queryRecords(ctx context.Context, run dbtx, stmt sqlbuilder.Statement) ([]domain.Record, error) {
	rows, err := run.QueryContext(ctx, stmt.Text, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dests := make([]interface{}, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}

		record := make(domain.Record, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// normalizeValue converts driver byte slices to strings so records
// serialize as text rather than base64.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// recordIDs extracts the primary-key values of the given records as
// strings for the audit trail.
func recordIDs(d *domain.TableDescriptor, records []domain.Record) []string {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		if id, ok := record[d.PrimaryKey]; ok && id != nil {
			ids = append(ids, fmt.Sprintf("%v", id))
		}
	}
	return ids
}

// changesJSON renders a before/after change summary for the audit trail.
// Timestamps are flattened to RFC 3339 so the JSON stays portable.
func changesJSON(key string, value interface{}) *string {
	raw, err := json.Marshal(map[string]interface{}{key: flattenTimes(value)})
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

func flattenTimes(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case domain.Record:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = flattenTimes(item)
		}
		return out
	case []domain.Record:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = flattenTimes(item)
		}
		return out
	default:
		return v
	}
}
