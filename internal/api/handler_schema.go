package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"datagate/internal/domain"
)

// === API shapes ===

type columnInfo struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type,omitempty"`
	Nullable   bool   `json:"nullable,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

type foreignKeyInfo struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

type indexInfo struct {
	Name    string   `json:"name"`
	Unique  bool     `json:"unique"`
	Columns []string `json:"columns"`
}

type tableSchemaResponse struct {
	Table       string           `json:"table"`
	Columns     []columnInfo     `json:"columns"`
	ForeignKeys []foreignKeyInfo `json:"foreign_keys"`
	Indexes     []indexInfo      `json:"indexes"`
}

type relationshipEdge struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
	Depth     int    `json:"depth"`
	Via       string `json:"via,omitempty"`
}

type relationshipsResponse struct {
	Table    string             `json:"table"`
	Depth    int                `json:"depth"`
	Parents  []relationshipEdge `json:"parents"`
	Children []relationshipEdge `json:"children"`
}

type graphNode struct {
	Table string `json:"table"`
	Depth int    `json:"depth"`
}

type graphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Column string `json:"column"`
}

type graphResponse struct {
	Root  string      `json:"root"`
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

type pathResponse struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Found bool     `json:"found"`
	Path  []string `json:"path"`
}

// === Mapping helpers ===

func columnToAPI(c domain.ColumnInfo) columnInfo {
	return columnInfo{Name: c.Name, DataType: c.DataType, Nullable: c.Nullable, PrimaryKey: c.PrimaryKey}
}

func foreignKeyToAPI(fk domain.ForeignKey) foreignKeyInfo {
	return foreignKeyInfo{Table: fk.Table, Column: fk.Column, RefTable: fk.RefTable, RefColumn: fk.RefColumn}
}

func edgeToAPI(e domain.RelationshipEdge) relationshipEdge {
	return relationshipEdge{Table: e.Table, Column: e.Column, RefTable: e.RefTable, RefColumn: e.RefColumn, Depth: e.Depth, Via: e.Via}
}

func edgesToAPI(edges []domain.RelationshipEdge) []relationshipEdge {
	out := make([]relationshipEdge, len(edges))
	for i, e := range edges {
		out[i] = edgeToAPI(e)
	}
	return out
}

// === Handlers ===

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	includeSystem := queryBool(r, "include_system")

	tables, err := h.schemas.ListTables(r.Context(), pattern, includeSystem)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	refresh := queryBool(r, "refresh")

	ts, err := h.schemas.GetSchema(r.Context(), chi.URLParam(r, "table"), refresh)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := tableSchemaResponse{
		Table:       ts.Table,
		Columns:     make([]columnInfo, len(ts.Columns)),
		ForeignKeys: make([]foreignKeyInfo, len(ts.ForeignKeys)),
		Indexes:     make([]indexInfo, len(ts.Indexes)),
	}
	for i, c := range ts.Columns {
		resp.Columns[i] = columnToAPI(c)
	}
	for i, fk := range ts.ForeignKeys {
		resp.ForeignKeys[i] = foreignKeyToAPI(fk)
	}
	for i, idx := range ts.Indexes {
		resp.Indexes[i] = indexInfo{Name: idx.Name, Unique: idx.Unique, Columns: idx.Columns}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listColumns(w http.ResponseWriter, r *http.Request) {
	includeMetadata := queryBool(r, "include_metadata")

	columns, err := h.schemas.ListColumns(r.Context(), chi.URLParam(r, "table"), includeMetadata)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]columnInfo, len(columns))
	for i, c := range columns {
		out[i] = columnToAPI(c)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"columns": out})
}

func (h *Handler) getRelationships(w http.ResponseWriter, r *http.Request) {
	depth := queryInt(r, "depth", 1)

	rels, err := h.schemas.Relationships(r.Context(), chi.URLParam(r, "table"), depth)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, relationshipsResponse{
		Table:    rels.Table,
		Depth:    rels.Depth,
		Parents:  edgesToAPI(rels.Parents),
		Children: edgesToAPI(rels.Children),
	})
}

func (h *Handler) getGraph(w http.ResponseWriter, r *http.Request) {
	depth := queryInt(r, "depth", 1)

	graph, err := h.schemas.Graph(r.Context(), chi.URLParam(r, "table"), depth)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := graphResponse{
		Root:  graph.Root,
		Nodes: make([]graphNode, len(graph.Nodes)),
		Edges: make([]graphEdge, len(graph.Edges)),
	}
	for i, n := range graph.Nodes {
		resp.Nodes[i] = graphNode{Table: n.Table, Depth: n.Depth}
	}
	for i, e := range graph.Edges {
		resp.Edges[i] = graphEdge{From: e.From, To: e.To, Column: e.Column}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) findPath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxDepth := queryInt(r, "max_depth", 3)

	path, err := h.schemas.FindPath(r.Context(), q.Get("from"), q.Get("to"), maxDepth)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pathResponse{From: path.From, To: path.To, Found: path.Found, Path: path.Path})
}

func (h *Handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.schemas.CacheStats()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries":  stats.Entries,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"hit_rate": stats.HitRate(),
	})
}

func (h *Handler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	removed := h.schemas.InvalidateCache()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// queryBool reads a boolean query parameter, absent meaning false.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
