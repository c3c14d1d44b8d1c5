package relationship

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datagate/internal/domain"
)

// SQLiteIntrospector reads catalog metadata from sqlite_master and the
// table_info/foreign_key_list/index_list pragmas.
type SQLiteIntrospector struct {
	db *sql.DB
}

// NewSQLiteIntrospector creates a SQLiteIntrospector.
func NewSQLiteIntrospector(db *sql.DB) *SQLiteIntrospector {
	return &SQLiteIntrospector{db: db}
}

var _ domain.CatalogIntrospector = (*SQLiteIntrospector)(nil)

// ListTables returns table names from the catalog. System tables
// (sqlite_* and goose bookkeeping) are excluded unless requested.
func (i *SQLiteIntrospector) ListTables(ctx context.Context, includeSystem bool) ([]string, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !includeSystem && isSystemTable(name) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableSchema returns columns, foreign keys, and indexes for one table.
func (i *SQLiteIntrospector) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	columns, err := i.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, domain.ErrNotFound("table %q not found in catalog", table)
	}

	fks, err := i.tableForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	indexes, err := i.tableIndexes(ctx, table)
	if err != nil {
		return nil, err
	}

	return &domain.TableSchema{
		Table:       table,
		Columns:     columns,
		ForeignKeys: fks,
		Indexes:     indexes,
	}, nil
}

// ListForeignKeys returns all foreign-key edges in the catalog.
func (i *SQLiteIntrospector) ListForeignKeys(ctx context.Context) ([]domain.ForeignKey, error) {
	tables, err := i.ListTables(ctx, false)
	if err != nil {
		return nil, err
	}

	var edges []domain.ForeignKey
	for _, table := range tables {
		fks, err := i.tableForeignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		edges = append(edges, fks...)
	}
	return edges, nil
}

func (i *SQLiteIntrospector) tableColumns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var columns []domain.ColumnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		columns = append(columns, domain.ColumnInfo{
			Name:       name,
			DataType:   colType,
			Nullable:   notNull == 0,
			PrimaryKey: pk > 0,
		})
	}
	return columns, rows.Err()
}

func (i *SQLiteIntrospector) tableForeignKeys(ctx context.Context, table string) ([]domain.ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var fks []domain.ForeignKey
	for rows.Next() {
		var (
			id, seq            int
			refTable           string
			from               string
			to                 sql.NullString
			onUpdate, onDelete string
			match              string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		refColumn := to.String
		if refColumn == "" {
			// Implicit reference to the parent's primary key.
			refColumn = "id"
		}
		fks = append(fks, domain.ForeignKey{
			Table:     table,
			Column:    from,
			RefTable:  refTable,
			RefColumn: refColumn,
		})
	}
	return fks, rows.Err()
}

func (i *SQLiteIntrospector) tableIndexes(ctx context.Context, table string) ([]domain.IndexInfo, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("index_list %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	type indexRow struct {
		name   string
		unique bool
	}
	var indexRows []indexRow
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		indexRows = append(indexRows, indexRow{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var indexes []domain.IndexInfo
	for _, ir := range indexRows {
		cols, err := i.indexColumns(ctx, ir.name)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, domain.IndexInfo{Name: ir.name, Unique: ir.unique, Columns: cols})
	}
	return indexes, nil
}

func (i *SQLiteIntrospector) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return nil, fmt.Errorf("index_info %s: %w", index, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

func isSystemTable(name string) bool {
	return strings.HasPrefix(name, "sqlite_") || strings.HasPrefix(name, "goose_")
}
