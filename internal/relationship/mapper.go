// Package relationship discovers foreign-key relationships from the live
// store catalog and answers multi-hop and shortest-path queries over them.
package relationship

import (
	"context"
	"sort"

	"datagate/internal/domain"
)

// MaxDepth bounds multi-hop discovery and path searches.
const MaxDepth = 3

// Mapper answers relationship queries over the catalog's foreign-key
// edges. It holds no state of its own; callers cache its results.
type Mapper struct {
	introspector domain.CatalogIntrospector
}

// NewMapper creates a Mapper over the given catalog introspector.
func NewMapper(introspector domain.CatalogIntrospector) *Mapper {
	return &Mapper{introspector: introspector}
}

// Relationships returns the parent and child foreign-key edges reachable
// from the seed table within depth hops (clamped to [1, MaxDepth]).
// Discovery is breadth-first with a visited set, so cyclic foreign-key
// graphs terminate.
func (m *Mapper) Relationships(ctx context.Context, table string, depth int) (*domain.TableRelationships, error) {
	depth = clampDepth(depth)

	edges, err := m.introspector.ListForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.TableRelationships{Table: table, Depth: depth}

	visited := map[string]bool{table: true}
	recorded := map[string]bool{}
	frontier := []string{table}

	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []string
		for _, cur := range frontier {
			// Edges beyond the first hop are tagged with the table they
			// were reached through.
			via := ""
			if hop > 1 {
				via = cur
			}
			for _, fk := range edges {
				if fk.Table != cur && fk.RefTable != cur {
					continue
				}
				// Each declared constraint appears once, at the shallowest
				// hop that reaches it.
				key := fk.Table + "." + fk.Column + "->" + fk.RefTable + "." + fk.RefColumn
				if recorded[key] {
					continue
				}
				recorded[key] = true
				switch {
				case fk.Table == cur:
					// cur references fk.RefTable: a parent.
					result.Parents = append(result.Parents, domain.RelationshipEdge{
						Table:     fk.Table,
						Column:    fk.Column,
						RefTable:  fk.RefTable,
						RefColumn: fk.RefColumn,
						Depth:     hop,
						Via:       via,
					})
					if !visited[fk.RefTable] {
						visited[fk.RefTable] = true
						next = append(next, fk.RefTable)
					}
				case fk.RefTable == cur:
					// fk.Table references cur: a child.
					result.Children = append(result.Children, domain.RelationshipEdge{
						Table:     fk.Table,
						Column:    fk.Column,
						RefTable:  fk.RefTable,
						RefColumn: fk.RefColumn,
						Depth:     hop,
						Via:       via,
					})
					if !visited[fk.Table] {
						visited[fk.Table] = true
						next = append(next, fk.Table)
					}
				}
			}
		}
		frontier = next
	}

	sortEdges(result.Parents)
	sortEdges(result.Children)
	return result, nil
}

// FindPath returns the first shortest sequence of tables connecting from
// and to over the foreign-key edge relation (in either direction), or a
// not-found result when no path exists within maxDepth hops.
func (m *Mapper) FindPath(ctx context.Context, from, to string, maxDepth int) (*domain.TablePath, error) {
	maxDepth = clampDepth(maxDepth)

	if from == to {
		return &domain.TablePath{From: from, To: to, Found: true, Path: []string{from}}, nil
	}

	edges, err := m.introspector.ListForeignKeys(ctx)
	if err != nil {
		return nil, err
	}
	neighbors := neighborSets(edges)

	type searchNode struct {
		table string
		path  []string
	}
	visited := map[string]bool{from: true}
	queue := []searchNode{{table: from, path: []string{from}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path)-1 >= maxDepth {
			continue
		}

		for _, next := range neighbors[cur.table] {
			if visited[next] {
				continue
			}
			path := append(append([]string{}, cur.path...), next)
			if next == to {
				return &domain.TablePath{From: from, To: to, Found: true, Path: path}, nil
			}
			visited[next] = true
			queue = append(queue, searchNode{table: next, path: path})
		}
	}

	return &domain.TablePath{From: from, To: to, Found: false}, nil
}

// Graph flattens the relationships reachable from the seed table into a
// node/edge structure suitable for visualization.
func (m *Mapper) Graph(ctx context.Context, table string, depth int) (*domain.RelationshipGraph, error) {
	rels, err := m.Relationships(ctx, table, depth)
	if err != nil {
		return nil, err
	}

	graph := &domain.RelationshipGraph{Root: table}
	nodeDepth := map[string]int{table: 0}
	seenEdge := map[string]bool{}

	record := func(e domain.RelationshipEdge) {
		for _, t := range []string{e.Table, e.RefTable} {
			if d, ok := nodeDepth[t]; !ok || e.Depth < d {
				nodeDepth[t] = e.Depth
			}
		}
		key := e.Table + "." + e.Column + "->" + e.RefTable
		if !seenEdge[key] {
			seenEdge[key] = true
			graph.Edges = append(graph.Edges, domain.GraphEdge{From: e.Table, To: e.RefTable, Column: e.Column})
		}
	}
	for _, e := range rels.Parents {
		record(e)
	}
	for _, e := range rels.Children {
		record(e)
	}

	names := make([]string, 0, len(nodeDepth))
	for name := range nodeDepth {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		graph.Nodes = append(graph.Nodes, domain.GraphNode{Table: name, Depth: nodeDepth[name]})
	}
	sort.Slice(graph.Edges, func(a, b int) bool {
		if graph.Edges[a].From != graph.Edges[b].From {
			return graph.Edges[a].From < graph.Edges[b].From
		}
		return graph.Edges[a].To < graph.Edges[b].To
	})
	return graph, nil
}

// neighborSets builds the undirected adjacency lists used by FindPath.
func neighborSets(edges []domain.ForeignKey) map[string][]string {
	seen := map[string]map[string]bool{}
	add := func(a, b string) {
		if seen[a] == nil {
			seen[a] = map[string]bool{}
		}
		seen[a][b] = true
	}
	for _, fk := range edges {
		add(fk.Table, fk.RefTable)
		add(fk.RefTable, fk.Table)
	}

	neighbors := make(map[string][]string, len(seen))
	for table, set := range seen {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		neighbors[table] = list
	}
	return neighbors
}

func sortEdges(edges []domain.RelationshipEdge) {
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].Depth != edges[b].Depth {
			return edges[a].Depth < edges[b].Depth
		}
		if edges[a].Table != edges[b].Table {
			return edges[a].Table < edges[b].Table
		}
		return edges[a].Column < edges[b].Column
	})
}

func clampDepth(depth int) int {
	if depth < 1 {
		return 1
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}
