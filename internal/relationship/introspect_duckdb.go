package relationship

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datagate/internal/domain"
)

// DuckDBIntrospector reads catalog metadata from DuckDB's
// information_schema views and the duckdb_constraints() table function.
type DuckDBIntrospector struct {
	db *sql.DB
}

// NewDuckDBIntrospector creates a DuckDBIntrospector.
func NewDuckDBIntrospector(db *sql.DB) *DuckDBIntrospector {
	return &DuckDBIntrospector{db: db}
}

var _ domain.CatalogIntrospector = (*DuckDBIntrospector)(nil)

// ListTables returns base table names from information_schema.
func (i *DuckDBIntrospector) ListTables(ctx context.Context, includeSystem bool) ([]string, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' ORDER BY table_name`)
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
		if !includeSystem && strings.HasPrefix(name, "duckdb_") {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableSchema returns columns, foreign keys, and unique constraints for
// one table. DuckDB reports unique constraints rather than named
// secondary indexes, so those fill the index list.
func (i *DuckDBIntrospector) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`,
		table)
	if err != nil {
		return nil, fmt.Errorf("list columns %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var columns []domain.ColumnInfo
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, err
		}
		columns = append(columns, domain.ColumnInfo{
			Name:     name,
			DataType: dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, domain.ErrNotFound("table %q not found in catalog", table)
	}

	pkCols, uniques, err := i.tableConstraints(ctx, table)
	if err != nil {
		return nil, err
	}
	for idx := range columns {
		if pkCols[columns[idx].Name] {
			columns[idx].PrimaryKey = true
		}
	}

	fks, err := i.tableForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	return &domain.TableSchema{
		Table:       table,
		Columns:     columns,
		ForeignKeys: fks,
		Indexes:     uniques,
	}, nil
}

// ListForeignKeys returns all foreign-key edges in the catalog.
func (i *DuckDBIntrospector) ListForeignKeys(ctx context.Context) ([]domain.ForeignKey, error) {
	return i.foreignKeys(ctx, "")
}

func (i *DuckDBIntrospector) tableForeignKeys(ctx context.Context, table string) ([]domain.ForeignKey, error) {
	return i.foreignKeys(ctx, table)
}

func (i *DuckDBIntrospector) foreignKeys(ctx context.Context, table string) ([]domain.ForeignKey, error) {
	query := `SELECT table_name, constraint_column_names, referenced_table, referenced_column_names
		FROM duckdb_constraints() WHERE constraint_type = 'FOREIGN KEY'`
	args := []interface{}{}
	if table != "" {
		query += " AND table_name = ?"
		args = append(args, table)
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("duckdb_constraints: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var fks []domain.ForeignKey
	for rows.Next() {
		var (
			tableName  string
			colsRaw    interface{}
			refTable   string
			refColsRaw interface{}
		)
		if err := rows.Scan(&tableName, &colsRaw, &refTable, &refColsRaw); err != nil {
			return nil, err
		}
		cols := listToStrings(colsRaw)
		refCols := listToStrings(refColsRaw)
		for idx := range cols {
			fk := domain.ForeignKey{
				Table:    tableName,
				Column:   cols[idx],
				RefTable: refTable,
			}
			if idx < len(refCols) {
				fk.RefColumn = refCols[idx]
			}
			fks = append(fks, fk)
		}
	}
	return fks, rows.Err()
}

// listToStrings converts a driver-reported LIST value to its element
// strings. DuckDB surfaces constraint column lists as []interface{}.
func listToStrings(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprint(item)
	}
	return out
}

func (i *DuckDBIntrospector) tableConstraints(ctx context.Context, table string) (map[string]bool, []domain.IndexInfo, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT constraint_type, constraint_column_names FROM duckdb_constraints() WHERE table_name = ?`,
		table)
	if err != nil {
		return nil, nil, fmt.Errorf("duckdb_constraints %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	pkCols := map[string]bool{}
	var uniques []domain.IndexInfo
	for rows.Next() {
		var (
			kind    string
			colsRaw interface{}
		)
		if err := rows.Scan(&kind, &colsRaw); err != nil {
			return nil, nil, err
		}
		names := listToStrings(colsRaw)
		switch kind {
		case "PRIMARY KEY":
			for _, n := range names {
				pkCols[n] = true
			}
		case "UNIQUE":
			uniques = append(uniques, domain.IndexInfo{
				Name:    table + "_" + strings.Join(names, "_") + "_key",
				Unique:  true,
				Columns: names,
			})
		}
	}
	return pkCols, uniques, rows.Err()
}
