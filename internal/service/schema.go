package service

import (
	"context"
	"fmt"
	"path"
	"strconv"

	"golang.org/x/sync/singleflight"

	"datagate/internal/cache"
	"datagate/internal/domain"
	"datagate/internal/relationship"
	"datagate/internal/schema"
)

// SchemaService answers schema and relationship queries through a
// read-through TTL cache. Concurrent misses for the same key are
// collapsed into one catalog load via singleflight.
type SchemaService struct {
	registry     *schema.Registry
	introspector domain.CatalogIntrospector
	mapper       *relationship.Mapper
	cache        *cache.Cache
	group        singleflight.Group
}

func NewSchemaService(registry *schema.Registry, introspector domain.CatalogIntrospector, mapper *relationship.Mapper, c *cache.Cache) *SchemaService {
	return &SchemaService{
		registry:     registry,
		introspector: introspector,
		mapper:       mapper,
		cache:        c,
	}
}

// GetSchema returns the introspected shape of one whitelisted table.
// refresh bypasses and replaces the cached entry.
func (s *SchemaService) GetSchema(ctx context.Context, table string, refresh bool) (*domain.TableSchema, error) {
	name, err := s.validateReadable(table)
	if err != nil {
		return nil, err
	}

	key := cache.Key("schema", "table_schema", name)
	if refresh {
		s.cache.Invalidate(key)
	}
	v, err := s.load(key, func() (interface{}, error) {
		return s.introspector.TableSchema(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TableSchema), nil
}

// ListTables returns whitelisted tables present in the store catalog,
// optionally narrowed by a shell-style name pattern. includeSystem adds
// the store's own bookkeeping tables.
func (s *SchemaService) ListTables(ctx context.Context, pattern string, includeSystem bool) ([]string, error) {
	key := cache.Key("schema", "tables", pattern, strconv.FormatBool(includeSystem))
	v, err := s.load(key, func() (interface{}, error) {
		catalog, err := s.introspector.ListTables(ctx, includeSystem)
		if err != nil {
			return nil, err
		}

		tables := make([]string, 0, len(catalog))
		for _, t := range catalog {
			if _, err := s.registry.ValidateTable(t); err != nil && !includeSystem {
				continue
			}
			if pattern != "" {
				if ok, err := path.Match(pattern, t); err != nil {
					return nil, domain.ErrValidation(fmt.Sprintf("invalid table name pattern %q", pattern))
				} else if !ok {
					continue
				}
			}
			tables = append(tables, t)
		}
		return tables, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// ListColumns returns the columns of one whitelisted table. Without
// includeMetadata only the names are populated.
func (s *SchemaService) ListColumns(ctx context.Context, table string, includeMetadata bool) ([]domain.ColumnInfo, error) {
	ts, err := s.GetSchema(ctx, table, false)
	if err != nil {
		return nil, err
	}
	if includeMetadata {
		return ts.Columns, nil
	}
	columns := make([]domain.ColumnInfo, len(ts.Columns))
	for i, c := range ts.Columns {
		columns[i] = domain.ColumnInfo{Name: c.Name}
	}
	return columns, nil
}

// Relationships returns the foreign-key edges reachable from table
// within depth hops.
func (s *SchemaService) Relationships(ctx context.Context, table string, depth int) (*domain.TableRelationships, error) {
	name, err := s.validateReadable(table)
	if err != nil {
		return nil, err
	}

	key := cache.Key("relationship", "relationships", name, strconv.Itoa(depth))
	v, err := s.load(key, func() (interface{}, error) {
		return s.mapper.Relationships(ctx, name, depth)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TableRelationships), nil
}

// FindPath returns the shortest chain of foreign-key links connecting
// two whitelisted tables.
func (s *SchemaService) FindPath(ctx context.Context, from, to string, maxDepth int) (*domain.TablePath, error) {
	fromName, err := s.validateReadable(from)
	if err != nil {
		return nil, err
	}
	toName, err := s.validateReadable(to)
	if err != nil {
		return nil, err
	}

	key := cache.Key("relationship", "path", fromName, toName, strconv.Itoa(maxDepth))
	v, err := s.load(key, func() (interface{}, error) {
		return s.mapper.FindPath(ctx, fromName, toName, maxDepth)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TablePath), nil
}

// Graph returns the flattened node/edge structure around table.
func (s *SchemaService) Graph(ctx context.Context, table string, depth int) (*domain.RelationshipGraph, error) {
	name, err := s.validateReadable(table)
	if err != nil {
		return nil, err
	}

	key := cache.Key("relationship", "graph", name, strconv.Itoa(depth))
	v, err := s.load(key, func() (interface{}, error) {
		return s.mapper.Graph(ctx, name, depth)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.RelationshipGraph), nil
}

// CacheStats reports the cache hit/miss counters.
func (s *SchemaService) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// InvalidateCache drops every cached schema and relationship entry and
// returns how many were removed.
func (s *SchemaService) InvalidateCache() int {
	n := s.cache.InvalidatePattern("schema:*")
	n += s.cache.InvalidatePattern("relationship:*")
	return n
}

// SweepCache evicts expired entries. Called on a schedule.
func (s *SchemaService) SweepCache() int {
	return s.cache.Sweep()
}

// load resolves key through the cache, running fn at most once across
// concurrent callers on a miss.
func (s *SchemaService) load(key string, fn func() (interface{}, error)) (interface{}, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, v)
		return v, nil
	})
	return v, err
}

// validateReadable checks the whitelist and READ access for schema
// queries so an unlisted table never reaches the catalog.
func (s *SchemaService) validateReadable(table string) (string, error) {
	name, err := s.registry.ValidateTable(table)
	if err != nil {
		return "", err
	}
	if err := s.registry.ValidateTableAccess(name, domain.OpRead); err != nil {
		return "", err
	}
	return name, nil
}
