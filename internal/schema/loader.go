package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"datagate/internal/domain"
)

// columnConfig is the YAML shape of one whitelisted column.
type columnConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Format      string `yaml:"format"`
	Required    bool   `yaml:"required"`
	Unique      bool   `yaml:"unique"`
	NonNegative bool   `yaml:"non_negative"`
	References  string `yaml:"references"` // "table.column"
}

// tableConfig is the YAML shape of one table descriptor.
type tableConfig struct {
	Name       string         `yaml:"name"`
	PrimaryKey string         `yaml:"primary_key"`
	ReadOnly   bool           `yaml:"read_only"`
	SoftDelete bool           `yaml:"soft_delete"`
	Columns    []columnConfig `yaml:"columns"`
}

// fileConfig is the top-level YAML schema/policy document.
type fileConfig struct {
	Tables []tableConfig       `yaml:"tables"`
	Access map[string][]string `yaml:"access"`
}

// LoadFile reads the schema/policy YAML file and builds the immutable
// Registry. Called once at process start.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from process configuration
	if err != nil {
		return nil, fmt.Errorf("read schema config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a Registry from raw schema/policy YAML.
func Parse(raw []byte) (*Registry, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse schema config: %w", err)
	}
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("schema config declares no tables")
	}

	descriptors := make([]domain.TableDescriptor, 0, len(cfg.Tables))
	for _, tc := range cfg.Tables {
		d := domain.TableDescriptor{
			Name:              tc.Name,
			PrimaryKey:        tc.PrimaryKey,
			ReadOnly:          tc.ReadOnly,
			SoftDeleteCapable: tc.SoftDelete,
		}
		if d.PrimaryKey == "" {
			d.PrimaryKey = "id"
		}
		for _, cc := range tc.Columns {
			col, err := parseColumn(tc.Name, cc)
			if err != nil {
				return nil, err
			}
			d.Columns = append(d.Columns, col)
		}
		descriptors = append(descriptors, d)
	}

	allows := make(map[string][]domain.Operation, len(cfg.Access))
	for table, ops := range cfg.Access {
		for _, op := range ops {
			parsed, err := parseOperation(op)
			if err != nil {
				return nil, fmt.Errorf("access entry for %q: %w", table, err)
			}
			allows[table] = append(allows[table], parsed)
		}
	}

	return NewRegistry(descriptors, domain.NewAccessPolicy(allows))
}

func parseColumn(table string, cc columnConfig) (domain.ColumnDescriptor, error) {
	col := domain.ColumnDescriptor{
		Name:        cc.Name,
		Required:    cc.Required,
		Unique:      cc.Unique,
		NonNegative: cc.NonNegative,
	}

	switch cc.Type {
	case "", "text":
		col.Type = domain.ColText
	case "integer":
		col.Type = domain.ColInteger
	case "real":
		col.Type = domain.ColReal
	case "bool":
		col.Type = domain.ColBool
	case "timestamp":
		col.Type = domain.ColTimestamp
	default:
		return col, fmt.Errorf("column %s.%s: unknown type %q", table, cc.Name, cc.Type)
	}

	switch cc.Format {
	case "":
		col.Format = domain.FormatNone
	case "email":
		col.Format = domain.FormatEmail
	case "url":
		col.Format = domain.FormatURL
	default:
		return col, fmt.Errorf("column %s.%s: unknown format %q", table, cc.Name, cc.Format)
	}

	if cc.References != "" {
		refTable, refColumn, ok := strings.Cut(cc.References, ".")
		if !ok {
			return col, fmt.Errorf("column %s.%s: references must be \"table.column\", got %q", table, cc.Name, cc.References)
		}
		col.ForeignKey = &domain.ForeignKeyRef{Table: refTable, Column: refColumn}
	}

	return col, nil
}

func parseOperation(op string) (domain.Operation, error) {
	switch strings.ToUpper(op) {
	case string(domain.OpRead):
		return domain.OpRead, nil
	case string(domain.OpInsert):
		return domain.OpInsert, nil
	case string(domain.OpUpdate):
		return domain.OpUpdate, nil
	case string(domain.OpDelete):
		return domain.OpDelete, nil
	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}
}
