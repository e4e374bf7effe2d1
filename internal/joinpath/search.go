package joinpath

import (
	"context"
	"sort"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

const (
	// DefaultMaxDepth is the hop budget used when Options.MaxDepth is unset.
	DefaultMaxDepth = 6
	// MaxDepthLimit is the hard ceiling; larger requests are clamped to it.
	MaxDepthLimit = 8
	// DefaultMaxResults caps how many distinct plans the exhaustive search keeps.
	DefaultMaxResults = 100
)

// Options bound a search.
type Options struct {
	// MaxDepth is the maximum number of relations a returned path may use.
	MaxDepth int
	// MaxResults caps the number of distinct candidates FindAllJoinPaths
	// records before it stops exploring.
	MaxResults int
}

func (o Options) normalize() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxDepth > MaxDepthLimit {
		o.MaxDepth = MaxDepthLimit
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	return o
}

// inputKeys dedupes the requested tables, keeping first-seen order.
func inputKeys(inputs []schema.TableReference) ([]string, []schema.TableReference, error) {
	if len(inputs) == 0 {
		return nil, nil, errs.New(errs.ErrKindInvalidInput, "at least one table is required")
	}
	seen := make(map[string]bool, len(inputs))
	var keys []string
	var refs []schema.TableReference
	for _, ref := range inputs {
		if ref.Table == "" {
			return nil, nil, errs.New(errs.ErrKindInvalidInput, "table name must not be empty")
		}
		k := ref.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		refs = append(refs, ref)
	}
	return keys, refs, nil
}

func allKnown(g *Graph, keys []string) bool {
	for _, k := range keys {
		if !g.HasNode(k) {
			return false
		}
	}
	return true
}

// FindJoinPath connects inputs with the breadth-first, shortest-only
// strategy. Starting from the first input, each further input is reached by
// the shortest route from any already-connected table; ties go to the route
// discovered first.
//
// A nil path with a nil error means no path exists within opts.MaxDepth.
func FindJoinPath(ctx context.Context, g *Graph, inputs []schema.TableReference, opts Options) (*Path, error) {
	opts = opts.normalize()

	keys, refs, err := inputKeys(inputs)
	if err != nil {
		return nil, err
	}
	if len(keys) == 1 {
		return identityPath(refs[0]), nil
	}
	if !allKnown(g, keys) {
		return nil, nil
	}

	t := newTree(keys[0])
	for _, target := range keys[1:] {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.ErrKindTimeout, "join path search interrupted", err)
		}
		if t.has(target) {
			continue
		}

		budget := opts.MaxDepth - len(t.relations)
		var best []string
		for _, src := range t.keys {
			route := g.shortestRoute(src, target, t.in, budget)
			if route != nil && (best == nil || len(route) < len(best)) {
				best = route
			}
		}
		if best == nil {
			return nil, nil
		}
		if err := t.attach(g, best); err != nil {
			return nil, err
		}
	}

	return t.path(g, len(keys)), nil
}

// shortestRoute runs a breadth-first search from src to target using at
// most budget hops. Tables in blocked (other than src) are not crossed, so
// the route only adds new tables to the connected set.
func (g *Graph) shortestRoute(src, target string, blocked map[string]bool, budget int) []string {
	if budget < 1 {
		return nil
	}

	visited := map[string]bool{src: true}
	queue := [][]string{{src}}

	for len(queue) > 0 {
		route := queue[0]
		queue = queue[1:]
		if len(route)-1 >= budget {
			continue
		}

		last := route[len(route)-1]
		for _, n := range g.neighbors[last] {
			if visited[n] || blocked[n] {
				continue
			}
			next := make([]string, len(route)+1)
			copy(next, route)
			next[len(route)] = n
			if n == target {
				return next
			}
			visited[n] = true
			queue = append(queue, next)
		}
	}
	return nil
}

// FindAllJoinPaths enumerates every way to connect inputs using simple
// routes, up to opts.MaxDepth relations in total. Equivalent trees reached
// in different orders are reported once. Results are sorted by TotalJoins,
// cheapest first; an empty result means no path exists.
//
// Exploration is iteratively deepened, so when opts.MaxResults cuts the
// search short the cheapest plans have already been collected.
func FindAllJoinPaths(ctx context.Context, g *Graph, inputs []schema.TableReference, opts Options) ([]*Path, error) {
	opts = opts.normalize()

	keys, refs, err := inputKeys(inputs)
	if err != nil {
		return nil, err
	}
	if len(keys) == 1 {
		return []*Path{identityPath(refs[0])}, nil
	}
	if !allKnown(g, keys) {
		return nil, nil
	}

	e := &explorer{
		ctx:        ctx,
		g:          g,
		maxResults: opts.MaxResults,
		inputCount: len(keys),
		seen:       make(map[string]bool),
	}

	for limit := len(keys) - 1; limit <= opts.MaxDepth && !e.done(); limit++ {
		e.limit = limit
		e.connect(newTree(keys[0]), keys[1:])
	}
	if e.err != nil {
		return nil, e.err
	}

	sort.SliceStable(e.results, func(i, j int) bool {
		return e.results[i].TotalJoins < e.results[j].TotalJoins
	})
	return e.results, nil
}

// explorer carries the state of one exhaustive search down the recursion.
type explorer struct {
	ctx        context.Context
	g          *Graph
	limit      int
	maxResults int
	inputCount int
	seen       map[string]bool
	results    []*Path
	err        error
}

func (e *explorer) done() bool {
	return e.err != nil || len(e.results) >= e.maxResults
}

func (e *explorer) connect(t *tree, remaining []string) {
	if e.done() {
		return
	}
	if err := e.ctx.Err(); err != nil {
		e.err = errs.Wrap(errs.ErrKindTimeout, "join path search interrupted", err)
		return
	}

	var pending []string
	for _, k := range remaining {
		if !t.has(k) {
			pending = append(pending, k)
		}
	}
	if len(pending) == 0 {
		e.record(t)
		return
	}

	budget := e.limit - len(t.relations)
	if budget < len(pending) {
		return
	}

	for i, target := range pending {
		rest := make([]string, 0, len(pending)-1)
		rest = append(rest, pending[:i]...)
		rest = append(rest, pending[i+1:]...)

		for _, src := range t.keys {
			e.routes(src, target, t.in, budget, func(route []string) bool {
				next := t.clone()
				if err := next.attach(e.g, route); err != nil {
					e.err = err
					return false
				}
				e.connect(next, rest)
				return !e.done()
			})
			if e.done() {
				return
			}
		}
	}
}

// routes yields every simple route from src to target of at most budget
// hops that avoids blocked tables. yield returns false to stop.
func (e *explorer) routes(src, target string, blocked map[string]bool, budget int, yield func([]string) bool) {
	onRoute := map[string]bool{src: true}
	route := []string{src}

	var walk func(node string) bool
	walk = func(node string) bool {
		if len(route)-1 >= budget {
			return true
		}
		for _, n := range e.g.neighbors[node] {
			if onRoute[n] || blocked[n] {
				continue
			}
			route = append(route, n)
			if n == target {
				found := cloneStrings(route)
				route = route[:len(route)-1]
				if !yield(found) {
					return false
				}
				continue
			}
			onRoute[n] = true
			ok := walk(n)
			onRoute[n] = false
			route = route[:len(route)-1]
			if !ok {
				return false
			}
		}
		return true
	}
	walk(src)
}

func (e *explorer) record(t *tree) {
	sig := t.signature()
	if e.seen[sig] {
		return
	}
	e.seen[sig] = true
	e.results = append(e.results, t.path(e.g, e.inputCount))
}
