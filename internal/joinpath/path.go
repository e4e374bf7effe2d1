package joinpath

import (
	"sort"
	"strings"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Path is a resolved join: every table it touches (requested and
// intermediate) and the relations that connect them, in join order.
//
// Relations always form a tree: TotalJoins == len(Relations) ==
// TotalTablesCount-1.
type Path struct {
	Tables           []schema.TableReference `json:"tables"`
	Relations        []Relation              `json:"relations"`
	InputTablesCount int                     `json:"inputTablesCount"`
	TotalTablesCount int                     `json:"totalTablesCount"`
	TotalJoins       int                     `json:"totalJoins"`
}

// Intermediate returns the tables the path needed but the caller did not ask for.
func (p *Path) Intermediate(requested []schema.TableReference) []schema.TableReference {
	asked := make(map[string]bool, len(requested))
	for _, r := range requested {
		asked[r.Key()] = true
	}
	var out []schema.TableReference
	for _, t := range p.Tables {
		if !asked[t.Key()] {
			out = append(out, t)
		}
	}
	return out
}

// identityPath is the trivial single-table result.
func identityPath(ref schema.TableReference) *Path {
	return &Path{
		Tables:           []schema.TableReference{ref},
		Relations:        []Relation{},
		InputTablesCount: 1,
		TotalTablesCount: 1,
		TotalJoins:       0,
	}
}

// tree is the connected set grown during a search. keys keeps connection
// order, which becomes the order of Path.Tables.
type tree struct {
	keys      []string
	in        map[string]bool
	relations []Relation
}

func newTree(root string) *tree {
	return &tree{keys: []string{root}, in: map[string]bool{root: true}}
}

func (t *tree) has(key string) bool {
	return t.in[key]
}

func (t *tree) clone() *tree {
	in := make(map[string]bool, len(t.in))
	for k := range t.in {
		in[k] = true
	}
	return &tree{
		keys:      cloneStrings(t.keys),
		in:        in,
		relations: append([]Relation(nil), t.relations...),
	}
}

// attach merges a route whose first key is already connected. Every hop
// to a new table contributes exactly one relation, so the tree shape holds.
func (t *tree) attach(g *Graph, route []string) error {
	if len(route) == 0 || !t.in[route[0]] {
		return errs.New(errs.ErrKindInternal, "route does not start inside the connected set")
	}
	for i := 1; i < len(route); i++ {
		from, to := route[i-1], route[i]
		if t.in[to] {
			continue
		}
		rel, ok := g.Relation(from, to)
		if !ok {
			return errs.Newf(errs.ErrKindInternal, "graph edge %s has no recorded relation", edgeKey(from, to))
		}
		t.relations = append(t.relations, rel)
		t.keys = append(t.keys, to)
		t.in[to] = true
	}
	return nil
}

func (t *tree) path(g *Graph, inputCount int) *Path {
	tables := make([]schema.TableReference, len(t.keys))
	for i, k := range t.keys {
		tables[i], _ = g.Ref(k)
	}
	return &Path{
		Tables:           tables,
		Relations:        append([]Relation{}, t.relations...),
		InputTablesCount: inputCount,
		TotalTablesCount: len(tables),
		TotalJoins:       len(t.relations),
	}
}

// signature identifies a tree independent of the order it was discovered
// in: sorted table keys plus sorted undirected relation signatures.
func (t *tree) signature() string {
	keys := cloneStrings(t.keys)
	sort.Strings(keys)

	rels := make([]string, len(t.relations))
	for i, r := range t.relations {
		a, b := endpointSignature(r.From), endpointSignature(r.To)
		if a > b {
			a, b = b, a
		}
		rels[i] = a + "=" + b
	}
	sort.Strings(rels)

	return strings.Join(keys, ",") + "|" + strings.Join(rels, ";")
}

func endpointSignature(e Endpoint) string {
	return e.Key() + "(" + strings.Join(e.Columns, ",") + ")"
}
