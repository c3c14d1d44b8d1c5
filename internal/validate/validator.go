// Package validate performs schema-typed validation of mutation payloads
// before they reach the query builder. Failures aggregate into a single
// ValidationError listing every violating field, so callers can fix all
// problems in one round trip.
package validate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	playground "github.com/go-playground/validator/v10"

	"datagate/internal/domain"
)

// Querier is the subset of *sql.DB and *sql.Tx the pre-checks need, so
// batch items validate inside their enclosing transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Validator checks mutation payloads against table descriptors, including
// referential-integrity and uniqueness pre-checks against the live store.
type Validator struct {
	checks *playground.Validate
}

// New creates a Validator.
func New() *Validator {
	return &Validator{checks: playground.New()}
}

// ValidateInsert checks required fields, types, formats, foreign keys,
// and uniqueness for an insert payload.
func (v *Validator) ValidateInsert(ctx context.Context, q Querier, d *domain.TableDescriptor, data domain.Record) error {
	var fields []string

	for _, col := range d.Columns {
		value, present := data[col.Name]
		if !present || value == nil {
			if col.Required && col.Name != d.PrimaryKey {
				fields = append(fields, fmt.Sprintf("%s: required field is missing", col.Name))
			}
			continue
		}
		fields = v.checkValue(ctx, q, d, col, value, nil, fields)
	}

	if len(fields) > 0 {
		return domain.ErrValidation("insert into "+d.Name+" failed validation", fields...)
	}
	return nil
}

// ValidateUpdate checks types, formats, foreign keys, and uniqueness for
// the fields present in an update payload. When the filter pins the
// primary key to a single value, that record is excluded from uniqueness
// checks so a row can be updated to its own current values.
func (v *Validator) ValidateUpdate(ctx context.Context, q Querier, d *domain.TableDescriptor, data domain.Record, filter []domain.Condition) error {
	excludePK := primaryKeyFromFilter(d, filter)

	var fields []string
	for _, col := range d.Columns {
		value, present := data[col.Name]
		if !present {
			continue
		}
		if value == nil {
			if col.Required {
				fields = append(fields, fmt.Sprintf("%s: required field cannot be set to null", col.Name))
			}
			continue
		}
		fields = v.checkValue(ctx, q, d, col, value, excludePK, fields)
	}

	if len(fields) > 0 {
		return domain.ErrValidation("update of "+d.Name+" failed validation", fields...)
	}
	return nil
}

// checkValue applies the per-column checks in order, appending one
// message per violation.
func (v *Validator) checkValue(ctx context.Context, q Querier, d *domain.TableDescriptor, col domain.ColumnDescriptor, value interface{}, excludePK interface{}, fields []string) []string {
	if msg := checkType(col, value); msg != "" {
		return append(fields, msg)
	}
	if msg := v.checkFormat(col, value); msg != "" {
		fields = append(fields, msg)
	}
	if col.ForeignKey != nil {
		if msg := v.checkForeignKey(ctx, q, col, value); msg != "" {
			fields = append(fields, msg)
		}
	}
	if col.Unique {
		if msg := v.checkUnique(ctx, q, d, col, value, excludePK); msg != "" {
			fields = append(fields, msg)
		}
	}
	return fields
}

func checkType(col domain.ColumnDescriptor, value interface{}) string {
	switch col.Type {
	case domain.ColInteger:
		n, ok := asInt64(value)
		if !ok {
			return fmt.Sprintf("%s: expected an integer, got %T", col.Name, value)
		}
		if col.NonNegative && n < 0 {
			return fmt.Sprintf("%s: must not be negative", col.Name)
		}
	case domain.ColReal:
		f, ok := asFloat64(value)
		if !ok {
			return fmt.Sprintf("%s: expected a number, got %T", col.Name, value)
		}
		if col.NonNegative && f < 0 {
			return fmt.Sprintf("%s: must not be negative", col.Name)
		}
	case domain.ColBool:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("%s: expected a boolean, got %T", col.Name, value)
		}
	case domain.ColText, domain.ColTimestamp:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("%s: expected a string, got %T", col.Name, value)
		}
	}
	return ""
}

func (v *Validator) checkFormat(col domain.ColumnDescriptor, value interface{}) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	switch col.Format {
	case domain.FormatEmail:
		if err := v.checks.Var(s, "email"); err != nil {
			return fmt.Sprintf("%s: %q is not a valid email address", col.Name, s)
		}
	case domain.FormatURL:
		if err := v.checks.Var(s, "url"); err != nil {
			return fmt.Sprintf("%s: %q is not a valid URL", col.Name, s)
		}
	}
	return ""
}

// checkForeignKey verifies the referenced row exists. Table and column
// names come from the validated descriptor, never from the caller.
func (v *Validator) checkForeignKey(ctx context.Context, q Querier, col domain.ColumnDescriptor, value interface{}) string {
	fk := col.ForeignKey
	var exists int
	err := q.QueryRowContext(ctx,
		"SELECT 1 FROM "+fk.Table+" WHERE "+fk.Column+" = ? LIMIT 1", value).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Sprintf("%s: referenced %s.%s = %v does not exist", col.Name, fk.Table, fk.Column, value)
	}
	if err != nil {
		return fmt.Sprintf("%s: foreign key pre-check failed", col.Name)
	}
	return ""
}

// checkUnique verifies no other row already holds the value.
func (v *Validator) checkUnique(ctx context.Context, q Querier, d *domain.TableDescriptor, col domain.ColumnDescriptor, value interface{}, excludePK interface{}) string {
	query := "SELECT COUNT(*) FROM " + d.Name + " WHERE " + col.Name + " = ?"
	args := []interface{}{value}
	if excludePK != nil {
		query += " AND " + d.PrimaryKey + " <> ?"
		args = append(args, excludePK)
	}

	var count int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return fmt.Sprintf("%s: uniqueness pre-check failed", col.Name)
	}
	if count > 0 {
		return fmt.Sprintf("%s: value %v already exists", col.Name, value)
	}
	return ""
}

// primaryKeyFromFilter returns the pinned primary key value when the
// filter contains an equality condition on it, otherwise nil.
func primaryKeyFromFilter(d *domain.TableDescriptor, filter []domain.Condition) interface{} {
	for _, c := range filter {
		if c.Column == d.PrimaryKey && c.Kind == domain.CondEq {
			return c.Value
		}
	}
	return nil
}

func asInt64(value interface{}) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func asFloat64(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
