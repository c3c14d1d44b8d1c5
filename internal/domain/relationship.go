package domain

// ForeignKey is one declared foreign-key constraint discovered from the
// store catalog.
type ForeignKey struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
}

// RelationshipEdge is a discovered foreign-key link, tagged with the hop
// depth at which it was found and the intermediate table traversed to
// reach it. Derived and cached, never persisted as primary data.
type RelationshipEdge struct {
	Table     string
	Column    string
	RefTable  string
	RefColumn string
	Depth     int
	Via       string
}

// TableRelationships groups the parent and child edges reachable from a
// seed table within a depth bound.
type TableRelationships struct {
	Table    string
	Depth    int
	Parents  []RelationshipEdge
	Children []RelationshipEdge
}

// GraphNode is one table in a flattened relationship graph.
type GraphNode struct {
	Table string
	Depth int
}

// GraphEdge is one foreign-key link in a flattened relationship graph.
type GraphEdge struct {
	From   string
	To     string
	Column string
}

// RelationshipGraph is a node/edge structure suitable for visualization.
type RelationshipGraph struct {
	Root  string
	Nodes []GraphNode
	Edges []GraphEdge
}

// TablePath is the result of a shortest-path search between two tables.
type TablePath struct {
	From  string
	To    string
	Found bool
	Path  []string
}

// ColumnInfo describes one catalog column with optional metadata.
type ColumnInfo struct {
	Name       string
	DataType   string
	Nullable   bool
	PrimaryKey bool
}

// TableSchema is the introspected shape of one table.
type TableSchema struct {
	Table       string
	Columns     []ColumnInfo
	ForeignKeys []ForeignKey
	Indexes     []IndexInfo
}

// IndexInfo describes one index on a table.
type IndexInfo struct {
	Name    string
	Unique  bool
	Columns []string
}
