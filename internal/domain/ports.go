package domain

import "context"

// AuditRepository persists and retrieves audit entries. The store is
// append-only: no update or delete methods exist.
type AuditRepository interface {
	Insert(ctx context.Context, e *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEntry, int64, error)
	Summary(ctx context.Context, filter AuditFilter) (*AuditSummary, error)
}

// AuditRecorder accepts audit entries for asynchronous persistence.
// Recording must never block or fail the primary operation.
type AuditRecorder interface {
	Record(e *AuditEntry)
}

// CatalogIntrospector reads table, column, index, and foreign-key
// metadata from the live store catalog.
type CatalogIntrospector interface {
	ListTables(ctx context.Context, includeSystem bool) ([]string, error)
	TableSchema(ctx context.Context, table string) (*TableSchema, error)
	ListForeignKeys(ctx context.Context) ([]ForeignKey, error)
}
