// Package sqlbuilder translates validated structured requests into
// parameterized SQL. Builders are pure and stateless: identifiers come
// from the whitelist, literal values only ever appear as bound
// arguments, never in the statement text.
package sqlbuilder

import (
	"sort"
	"strings"

	"datagate/internal/domain"
)

// Statement is one buildable query: parameterized text plus the bound
// argument list in placeholder order.
type Statement struct {
	Text string
	Args []interface{}
}

// Select builds a projection query from a validated QuerySpec.
func Select(d *domain.TableDescriptor, spec domain.QuerySpec) (Statement, error) {
	columns := "*"
	if len(spec.Columns) > 0 {
		columns = strings.Join(spec.Columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(columns)
	sb.WriteString(" FROM ")
	sb.WriteString(d.Name)

	where, args, err := renderConditions(spec.Filter)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	if len(spec.OrderBy) > 0 {
		keys := make([]string, len(spec.OrderBy))
		for i, k := range spec.OrderBy {
			keys[i] = k.Column + " " + string(k.Direction)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	}

	if spec.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, spec.Limit)
		if spec.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, spec.Offset)
		}
	}

	return Statement{Text: sb.String(), Args: args}, nil
}

// Count mirrors Select's filter semantics but projects only a row count.
func Count(d *domain.TableDescriptor, filter []domain.Condition) (Statement, error) {
	where, args, err := renderConditions(filter)
	if err != nil {
		return Statement{}, err
	}
	text := "SELECT COUNT(*) FROM " + d.Name
	if where != "" {
		text += " WHERE " + where
	}
	return Statement{Text: text, Args: args}, nil
}

// Insert builds a parameterized insert requesting the full row back.
// Payload keys are emitted in sorted order so the statement text is
// deterministic for identical payload shapes.
func Insert(d *domain.TableDescriptor, data domain.Record) (Statement, error) {
	if len(data) == 0 {
		return Statement{}, domain.ErrValidation("insert data must be a non-empty object")
	}

	columns := make([]string, 0, len(data))
	for column := range data {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	args := make([]interface{}, len(columns))
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		args[i] = data[column]
		placeholders[i] = "?"
	}

	text := "INSERT INTO " + d.Name + " (" + strings.Join(columns, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") RETURNING *"
	return Statement{Text: text, Args: args}, nil
}

// Update builds a parameterized update returning the affected rows.
// A non-empty filter is enforced upstream; builders refuse to emit an
// unfiltered update regardless. When the descriptor carries an
// updated_at column the SET clause is extended with a server-side
// modification timestamp.
func Update(d *domain.TableDescriptor, data domain.Record, filter []domain.Condition) (Statement, error) {
	if len(data) == 0 {
		return Statement{}, domain.ErrValidation("update data must be a non-empty object")
	}
	if len(filter) == 0 {
		return Statement{}, domain.ErrMissingFilter(d.Name, "UPDATE")
	}

	columns := make([]string, 0, len(data))
	for column := range data {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	assignments := make([]string, 0, len(columns)+1)
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		assignments = append(assignments, column+" = ?")
		args = append(args, data[column])
	}
	if d.HasColumn(domain.ColumnUpdatedAt) {
		if _, set := data[domain.ColumnUpdatedAt]; !set {
			assignments = append(assignments, domain.ColumnUpdatedAt+" = CURRENT_TIMESTAMP")
		}
	}

	where, whereArgs, err := renderConditions(filter)
	if err != nil {
		return Statement{}, err
	}
	args = append(args, whereArgs...)

	text := "UPDATE " + d.Name + " SET " + strings.Join(assignments, ", ") +
		" WHERE " + where + " RETURNING *"
	return Statement{Text: text, Args: args}, nil
}

// SoftDelete builds the soft-delete form: an update stamping deleted_at,
// guarded so already-deleted rows are not stamped twice.
func SoftDelete(d *domain.TableDescriptor, filter []domain.Condition) (Statement, error) {
	if !d.SoftDeleteCapable {
		return Statement{}, domain.ErrValidation("table " + d.Name + " does not support soft delete")
	}
	if len(filter) == 0 {
		return Statement{}, domain.ErrMissingFilter(d.Name, "DELETE")
	}

	where, args, err := renderConditions(filter)
	if err != nil {
		return Statement{}, err
	}

	text := "UPDATE " + d.Name + " SET " + domain.ColumnDeletedAt + " = CURRENT_TIMESTAMP WHERE " +
		where + " AND " + domain.ColumnDeletedAt + " IS NULL RETURNING *"
	return Statement{Text: text, Args: args}, nil
}

// Delete builds a true row removal returning the removed rows.
func Delete(d *domain.TableDescriptor, filter []domain.Condition) (Statement, error) {
	if len(filter) == 0 {
		return Statement{}, domain.ErrMissingFilter(d.Name, "DELETE")
	}

	where, args, err := renderConditions(filter)
	if err != nil {
		return Statement{}, err
	}

	text := "DELETE FROM " + d.Name + " WHERE " + where + " RETURNING *"
	return Statement{Text: text, Args: args}, nil
}
