package domain

// Operation identifies one of the four CRUD verbs gated by the access policy.
type Operation string

const (
	OpRead   Operation = "READ"
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ColumnType classifies a whitelisted column for payload validation.
type ColumnType string

const (
	ColText      ColumnType = "text"
	ColInteger   ColumnType = "integer"
	ColReal      ColumnType = "real"
	ColBool      ColumnType = "bool"
	ColTimestamp ColumnType = "timestamp"
)

// ColumnFormat names an optional format constraint on a text column.
type ColumnFormat string

const (
	FormatNone  ColumnFormat = ""
	FormatEmail ColumnFormat = "email"
	FormatURL   ColumnFormat = "url"
)

// ForeignKeyRef declares that a column references another whitelisted
// table's column. Used for referential-integrity pre-checks.
type ForeignKeyRef struct {
	Table  string
	Column string
}

// ColumnDescriptor describes a single whitelisted column.
type ColumnDescriptor struct {
	Name        string
	Type        ColumnType
	Format      ColumnFormat
	Required    bool
	Unique      bool
	NonNegative bool
	ForeignKey  *ForeignKeyRef
}

// TableDescriptor is the sole source of truth for what the engine may
// touch on a table. Immutable after startup.
type TableDescriptor struct {
	Name              string
	Columns           []ColumnDescriptor
	PrimaryKey        string
	ReadOnly          bool
	SoftDeleteCapable bool
}

// Column returns the descriptor for the named column, or nil when the
// column is not whitelisted.
func (t *TableDescriptor) Column(name string) *ColumnDescriptor {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the named column is whitelisted on this table.
func (t *TableDescriptor) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns the ordered whitelisted column names.
func (t *TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Reserved column names the query builder treats specially.
const (
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

// AccessPolicy is a static (table, operation) permission matrix.
// Deny-by-default: absence of an explicit allow is a denial.
type AccessPolicy struct {
	allows map[string]map[Operation]bool
}

// NewAccessPolicy builds a policy from explicit per-table allow lists.
func NewAccessPolicy(allows map[string][]Operation) *AccessPolicy {
	p := &AccessPolicy{allows: make(map[string]map[Operation]bool, len(allows))}
	for table, ops := range allows {
		m := make(map[Operation]bool, len(ops))
		for _, op := range ops {
			m[op] = true
		}
		p.allows[table] = m
	}
	return p
}

// Allows reports whether the operation is explicitly allowed on the table.
func (p *AccessPolicy) Allows(table string, op Operation) bool {
	if p == nil {
		return false
	}
	return p.allows[table][op]
}

// SortDirection is a canonical ORDER BY direction.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortKey is one (column, direction) ordering entry.
type SortKey struct {
	Column    string
	Direction SortDirection
}

// Record is one row keyed by column name.
type Record map[string]interface{}

// QuerySpec describes a validated read request.
type QuerySpec struct {
	Table   string
	Columns []string
	Filter  []Condition
	OrderBy []SortKey
	Limit   int
	Offset  int
}

// QueryResult carries the matched page plus the unpaginated total.
type QueryResult struct {
	Records    []Record
	Count      int
	TotalCount int64
}
