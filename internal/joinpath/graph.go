// Package joinpath finds how to connect a set of tables through foreign-key
// relationships and renders the result as a SELECT ... JOIN statement.
//
// The package is purely computational. It is handed a complete schema
// snapshot, builds a relationship graph from it, searches the graph, and
// synthesizes SQL through a small Dialect capability. It never talks to a
// database and never branches on which engine produced the snapshot.
//
// Usage:
//
//	g := joinpath.BuildGraph(tables)
//	path, err := joinpath.FindJoinPath(ctx, g, refs, joinpath.Options{})
//	if err != nil { ... }
//	if path == nil { /* no join path: a valid negative result */ }
//	sql, err := joinpath.GenerateJoinSQL(dialect, path, tables)
package joinpath

import (
	"github.com/koustreak/dbjoin/internal/schema"
)

// Endpoint is one side of a relation: a table and the ordered key columns
// used on that side.
type Endpoint struct {
	Schema  string   `json:"schema"`
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// Ref returns the endpoint's table reference.
func (e Endpoint) Ref() schema.TableReference {
	return schema.TableReference{Schema: e.Schema, Table: e.Table}
}

// Key returns the endpoint's table key.
func (e Endpoint) Key() string {
	return schema.Key(e.Schema, e.Table)
}

// Relation is a directed, foreign-key-derived edge. For the FK→PK direction
// From is the owning table; the synthesized reverse swaps the endpoints.
type Relation struct {
	From       Endpoint `json:"from"`
	To         Endpoint `json:"to"`
	IsNullable bool     `json:"isNullable"`
	Constraint string   `json:"constraint,omitempty"`
}

// reverse swaps the endpoints. The referenced side of a key is never null,
// so the reverse is always non-nullable.
func (r Relation) reverse() Relation {
	return Relation{From: r.To, To: r.From, IsNullable: false, Constraint: r.Constraint}
}

// Graph is the undirected table adjacency graph plus the directed relation
// index. It is built once per request and never mutated afterwards.
type Graph struct {
	order     []string
	refs      map[string]schema.TableReference
	neighbors map[string][]string
	adjacent  map[string]map[string]bool
	relations map[string][]Relation
	edges     int
}

func edgeKey(from, to string) string {
	return from + "->" + to
}

// BuildGraph converts a schema snapshot into a relationship graph. Every
// table gets a node, even without foreign keys. Every foreign key adds an
// undirected edge and two relation records: the forward one under
// "from->to" and its reverse under "to->from".
func BuildGraph(tables []*schema.TableSchema) *Graph {
	g := &Graph{
		refs:      make(map[string]schema.TableReference, len(tables)),
		neighbors: make(map[string][]string, len(tables)),
		adjacent:  make(map[string]map[string]bool, len(tables)),
		relations: make(map[string][]Relation),
	}

	for _, t := range tables {
		g.addNode(t.Ref())
	}

	for _, t := range tables {
		from := t.Ref()
		for _, fk := range t.ForeignKeys {
			to := fk.ReferencedRef()
			g.addNode(to)
			g.addEdge(from.Key(), to.Key())

			forward := Relation{
				From:       Endpoint{Schema: from.Schema, Table: from.Table, Columns: cloneStrings(fk.Columns)},
				To:         Endpoint{Schema: to.Schema, Table: to.Table, Columns: cloneStrings(fk.ReferencedColumns)},
				IsNullable: anyNullable(t, fk.Columns),
				Constraint: fk.Name,
			}
			g.relations[edgeKey(from.Key(), to.Key())] = append(g.relations[edgeKey(from.Key(), to.Key())], forward)
			g.relations[edgeKey(to.Key(), from.Key())] = append(g.relations[edgeKey(to.Key(), from.Key())], forward.reverse())
		}
	}

	return g
}

func (g *Graph) addNode(ref schema.TableReference) {
	key := ref.Key()
	if _, ok := g.refs[key]; ok {
		return
	}
	g.refs[key] = ref
	g.order = append(g.order, key)
	g.adjacent[key] = make(map[string]bool)
}

func (g *Graph) addEdge(a, b string) {
	if g.adjacent[a][b] {
		return
	}
	g.adjacent[a][b] = true
	g.neighbors[a] = append(g.neighbors[a], b)
	if a != b {
		g.adjacent[b][a] = true
		g.neighbors[b] = append(g.neighbors[b], a)
	}
	g.edges++
}

// HasNode reports whether key is a node of the graph.
func (g *Graph) HasNode(key string) bool {
	_, ok := g.refs[key]
	return ok
}

// Ref returns the table reference stored for key.
func (g *Graph) Ref(key string) (schema.TableReference, bool) {
	ref, ok := g.refs[key]
	return ref, ok
}

// Nodes returns all node keys in insertion order.
func (g *Graph) Nodes() []string {
	return cloneStrings(g.order)
}

// Neighbors returns the keys adjacent to key in insertion order. A
// self-referencing table lists itself.
func (g *Graph) Neighbors(key string) []string {
	return cloneStrings(g.neighbors[key])
}

// Relations returns every relation recorded for the directed edge from→to.
func (g *Graph) Relations(from, to string) []Relation {
	return g.relations[edgeKey(from, to)]
}

// Relation returns the first relation recorded for from→to. When several
// foreign keys link the same pair, the first one declared wins.
func (g *Graph) Relation(from, to string) (Relation, bool) {
	rels := g.relations[edgeKey(from, to)]
	if len(rels) == 0 {
		return Relation{}, false
	}
	return rels[0], true
}

// NodeCount returns the number of tables in the graph.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of distinct undirected edges, self-loops included.
func (g *Graph) EdgeCount() int {
	return g.edges
}

func anyNullable(t *schema.TableSchema, columns []string) bool {
	for _, name := range columns {
		if col, ok := t.Column(name); ok && col.IsNullable {
			return true
		}
	}
	return false
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}
