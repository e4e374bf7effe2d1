package joinpath

import (
	"context"
	"time"

	"github.com/koustreak/dbjoin/internal/logger"
	"github.com/koustreak/dbjoin/internal/schema"
)

// NoPathMessage is what user-facing surfaces report when Join yields no plan.
const NoPathMessage = "No join path found between the specified tables"

// Source supplies a complete, consistent schema snapshot. Implementations
// must fail as a whole rather than return a partial list.
type Source interface {
	FetchSchemas(ctx context.Context) ([]*schema.TableSchema, error)
}

// Resolver answers join questions against a Source. It keeps no state
// between calls: every call fetches a fresh snapshot and rebuilds the graph.
// It is safe for concurrent use when its Source is.
type Resolver struct {
	src     Source
	dialect Dialect
	opts    Options
	log     *logger.Logger
}

// NewResolver creates a Resolver. A nil log discards output.
func NewResolver(src Source, d Dialect, opts Options, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		src:     src,
		dialect: d,
		opts:    opts.normalize(),
		log:     log.Component("resolver"),
	}
}

// Plan pairs a join path with its SQL.
type Plan struct {
	Path *Path  `json:"path"`
	SQL  string `json:"sql"`
}

// JoinRequest describes one join question.
type JoinRequest struct {
	Tables   []schema.TableReference
	MaxDepth int  // 0 uses the resolver default
	All      bool // enumerate every plan instead of only the shortest
}

func (r *Resolver) options(maxDepth int) Options {
	opts := r.opts
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}
	return opts.normalize()
}

func (r *Resolver) graph(ctx context.Context) (*Graph, []*schema.TableSchema, error) {
	start := time.Now()
	tables, err := r.src.FetchSchemas(ctx)
	if err != nil {
		return nil, nil, err
	}
	g := BuildGraph(tables)
	r.log.With().
		Int("tables", g.NodeCount()).
		Int("edges", g.EdgeCount()).
		Str("elapsed", time.Since(start).String()).
		Logger().
		Debug("relationship graph built")
	return g, tables, nil
}

// FindJoinPath returns the shortest way to connect tables, or nil when none
// exists within maxDepth.
func (r *Resolver) FindJoinPath(ctx context.Context, tables []schema.TableReference, maxDepth int) (*Path, error) {
	g, _, err := r.graph(ctx)
	if err != nil {
		return nil, err
	}
	return FindJoinPath(ctx, g, tables, r.options(maxDepth))
}

// FindAllJoinPaths returns every distinct way to connect tables within
// maxDepth, cheapest first. An empty result means no path.
func (r *Resolver) FindAllJoinPaths(ctx context.Context, tables []schema.TableReference, maxDepth int) ([]*Path, error) {
	g, _, err := r.graph(ctx)
	if err != nil {
		return nil, err
	}
	return FindAllJoinPaths(ctx, g, tables, r.options(maxDepth))
}

// GenerateJoinSQL fetches the schemas of the path's tables and renders the
// statement.
func (r *Resolver) GenerateJoinSQL(ctx context.Context, path *Path) (string, error) {
	tables, err := r.src.FetchSchemas(ctx)
	if err != nil {
		return "", err
	}
	return GenerateJoinSQL(r.dialect, path, tables)
}

// Join resolves req and renders SQL for every resulting path, all from one
// snapshot. An empty result means no path exists.
func (r *Resolver) Join(ctx context.Context, req JoinRequest) ([]Plan, error) {
	g, tables, err := r.graph(ctx)
	if err != nil {
		return nil, err
	}

	opts := r.options(req.MaxDepth)
	var paths []*Path
	if req.All {
		paths, err = FindAllJoinPaths(ctx, g, req.Tables, opts)
	} else {
		var p *Path
		p, err = FindJoinPath(ctx, g, req.Tables, opts)
		if p != nil {
			paths = []*Path{p}
		}
	}
	if err != nil {
		return nil, err
	}

	plans := make([]Plan, 0, len(paths))
	for _, p := range paths {
		sql, err := GenerateJoinSQL(r.dialect, p, tables)
		if err != nil {
			return nil, err
		}
		plans = append(plans, Plan{Path: p, SQL: sql})
	}

	r.log.With().
		Int("requested", len(req.Tables)).
		Int("plans", len(plans)).
		Bool("exhaustive", req.All).
		Int("max_depth", opts.MaxDepth).
		Logger().
		Info("join resolved")
	return plans, nil
}
