// Package schema holds the static table whitelist and the security
// validation gate every caller-supplied identifier must pass through.
package schema

import (
	"regexp"
	"strings"

	"datagate/internal/domain"
)

// identifierPattern is the strict pattern every table and column name
// must match. Anything else is rejected before a query is even built,
// because identifiers cannot be carried as bound parameters.
var identifierPattern = regexp.MustCompile(`^[a-z_]+$`)

// Registry is the immutable whitelist of tables and columns the engine
// may reference, plus the per-operation access policy. Loaded once at
// process start; changing it requires a redeploy.
type Registry struct {
	tables map[string]*domain.TableDescriptor
	order  []string
	policy *domain.AccessPolicy
}

// NewRegistry builds a Registry from descriptors and an access policy.
func NewRegistry(descriptors []domain.TableDescriptor, policy *domain.AccessPolicy) (*Registry, error) {
	r := &Registry{
		tables: make(map[string]*domain.TableDescriptor, len(descriptors)),
		policy: policy,
	}
	for i := range descriptors {
		d := descriptors[i]
		if !identifierPattern.MatchString(d.Name) {
			return nil, domain.ErrInvalidIdentifier("table name %q is not a valid identifier", d.Name)
		}
		if _, dup := r.tables[d.Name]; dup {
			return nil, domain.ErrValidation("duplicate table descriptor " + d.Name)
		}
		for _, c := range d.Columns {
			if !identifierPattern.MatchString(c.Name) {
				return nil, domain.ErrInvalidIdentifier("column name %q on table %q is not a valid identifier", c.Name, d.Name)
			}
		}
		r.tables[d.Name] = &d
		r.order = append(r.order, d.Name)
	}

	// Foreign keys must point at whitelisted tables/columns.
	for _, d := range r.tables {
		for _, c := range d.Columns {
			if c.ForeignKey == nil {
				continue
			}
			ref, ok := r.tables[c.ForeignKey.Table]
			if !ok {
				return nil, domain.ErrNotWhitelisted("column %s.%s references table %q which is not whitelisted", d.Name, c.Name, c.ForeignKey.Table)
			}
			if !ref.HasColumn(c.ForeignKey.Column) {
				return nil, domain.ErrNotWhitelisted("column %s.%s references %s.%s which is not whitelisted", d.Name, c.Name, c.ForeignKey.Table, c.ForeignKey.Column)
			}
		}
	}
	return r, nil
}

// TableNames returns the whitelisted table names in declaration order.
func (r *Registry) TableNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Descriptor returns the descriptor for a table that has already been
// validated with ValidateTable.
func (r *Registry) Descriptor(table string) *domain.TableDescriptor {
	return r.tables[table]
}

// ValidateTable checks the identifier pattern and the whitelist,
// returning the canonical table name on success.
func (r *Registry) ValidateTable(name string) (string, error) {
	if name == "" {
		return "", domain.ErrInvalidIdentifier("table name is empty")
	}
	if !identifierPattern.MatchString(name) {
		return "", domain.ErrInvalidIdentifier("table name %q contains characters outside [a-z_]", name)
	}
	if _, ok := r.tables[name]; !ok {
		return "", domain.ErrNotWhitelisted("table %q is not whitelisted", name)
	}
	return name, nil
}

// ValidateColumns validates the table, then each column against the
// identifier pattern and the table's descriptor.
func (r *Registry) ValidateColumns(table string, columns []string) error {
	table, err := r.ValidateTable(table)
	if err != nil {
		return err
	}
	d := r.tables[table]
	for _, col := range columns {
		if col == "" || !identifierPattern.MatchString(col) {
			return domain.ErrInvalidIdentifier("column name %q contains characters outside [a-z_]", col)
		}
		if !d.HasColumn(col) {
			return domain.ErrNotWhitelisted("column %q is not whitelisted on table %q", col, table)
		}
	}
	return nil
}

// ValidateNotReadOnly rejects mutations against read-only tables.
func (r *Registry) ValidateNotReadOnly(table, verb string) error {
	table, err := r.ValidateTable(table)
	if err != nil {
		return err
	}
	if r.tables[table].ReadOnly {
		return domain.ErrReadOnly("%s on table %q is not allowed: table is read-only", verb, table)
	}
	return nil
}

// ValidateWhereClause requires a non-empty filter object whose keys are
// all whitelisted columns. Keys with the modifier prefix are clause
// modifiers, not column names, and are excluded from the column check.
func (r *Registry) ValidateWhereClause(table, verb string, where map[string]interface{}) error {
	if len(where) == 0 {
		return domain.ErrMissingFilter(table, verb)
	}
	return r.validateKeys(table, where)
}

// ValidateFilterKeys checks a possibly-empty filter's keys against the
// whitelist. Reads accept an absent filter; mutations go through
// ValidateWhereClause instead.
func (r *Registry) ValidateFilterKeys(table string, filter map[string]interface{}) error {
	return r.validateKeys(table, filter)
}

// ValidateData requires a non-empty payload whose keys are all
// whitelisted columns.
func (r *Registry) ValidateData(table string, data map[string]interface{}) error {
	if len(data) == 0 {
		return domain.ErrValidation("data must be a non-empty object")
	}
	return r.validateKeys(table, data)
}

func (r *Registry) validateKeys(table string, obj map[string]interface{}) error {
	columns := make([]string, 0, len(obj))
	for key := range obj {
		if strings.HasPrefix(key, domain.ModifierPrefix) {
			continue
		}
		columns = append(columns, key)
	}
	return r.ValidateColumns(table, columns)
}

// ValidateOrderBy checks each sort key against the whitelist and
// canonicalizes directions, defaulting to ascending.
func (r *Registry) ValidateOrderBy(table string, orderBy []domain.SortKey) ([]domain.SortKey, error) {
	out := make([]domain.SortKey, 0, len(orderBy))
	for _, key := range orderBy {
		if err := r.ValidateColumns(table, []string{key.Column}); err != nil {
			return nil, err
		}
		switch strings.ToUpper(string(key.Direction)) {
		case "", string(domain.SortAsc):
			out = append(out, domain.SortKey{Column: key.Column, Direction: domain.SortAsc})
		case string(domain.SortDesc):
			out = append(out, domain.SortKey{Column: key.Column, Direction: domain.SortDesc})
		default:
			return nil, domain.ErrValidation("sort direction must be ASC or DESC, got " + string(key.Direction))
		}
	}
	return out, nil
}

// ValidatePagination checks limit and offset bounds.
func (r *Registry) ValidatePagination(limit, offset int) error {
	if limit < 1 || limit > domain.MaxLimit {
		return domain.ErrValidation("limit must be between 1 and 1000")
	}
	if offset < 0 {
		return domain.ErrValidation("offset must not be negative")
	}
	return nil
}

// ValidateTableAccess checks the deny-by-default permission matrix.
// Distinct from whitelist and read-only checks: a table can be
// whitelisted and writable yet still denied for a specific operation.
func (r *Registry) ValidateTableAccess(table string, op domain.Operation) error {
	table, err := r.ValidateTable(table)
	if err != nil {
		return err
	}
	if !r.policy.Allows(table, op) {
		return domain.ErrAccessDenied("operation %s is not permitted on table %q", op, table)
	}
	return nil
}
