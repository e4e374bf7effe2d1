package joinpath

import (
	"context"
	"testing"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertTree checks the structural guarantees every returned path carries.
func assertTree(t *testing.T, p *Path, inputs []schema.TableReference, maxDepth int) {
	t.Helper()
	require.NotNil(t, p)

	assert.Equal(t, len(p.Relations), p.TotalJoins)
	assert.Equal(t, len(p.Tables), p.TotalTablesCount)
	assert.Equal(t, p.TotalTablesCount-1, p.TotalJoins)
	assert.LessOrEqual(t, p.TotalJoins, maxDepth)

	present := make(map[string]bool, len(p.Tables))
	for _, tbl := range p.Tables {
		assert.False(t, present[tbl.Key()], "table %s listed twice", tbl)
		present[tbl.Key()] = true
	}
	for _, in := range inputs {
		assert.True(t, present[in.Key()], "input %s missing from path", in)
	}

	joined := map[string]bool{p.Tables[0].Key(): true}
	for i, rel := range p.Relations {
		assert.True(t, joined[rel.From.Key()], "relation %d starts outside the joined set", i)
		assert.False(t, joined[rel.To.Key()], "relation %d revisits %s", i, rel.To.Key())
		joined[rel.To.Key()] = true
	}
}

func assertNoSelfJoin(t *testing.T, p *Path) {
	t.Helper()
	for i, rel := range p.Relations {
		assert.NotEqual(t, rel.From.Key(), rel.To.Key(), "relation %d joins %s to itself", i, rel.From.Key())
	}
}

func TestOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{"defaults", Options{}, Options{MaxDepth: DefaultMaxDepth, MaxResults: DefaultMaxResults}},
		{"clamped", Options{MaxDepth: 100, MaxResults: 5}, Options{MaxDepth: MaxDepthLimit, MaxResults: 5}},
		{"negative", Options{MaxDepth: -1, MaxResults: -1}, Options{MaxDepth: DefaultMaxDepth, MaxResults: DefaultMaxResults}},
		{"kept", Options{MaxDepth: 3, MaxResults: 10}, Options{MaxDepth: 3, MaxResults: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalize())
		})
	}
}

func TestFindJoinPath_SingleTable(t *testing.T) {
	g := BuildGraph(shopTables())

	for _, name := range []string{"customers", "employees", "does_not_exist"} {
		t.Run(name, func(t *testing.T) {
			p, err := FindJoinPath(context.Background(), g, refs(name), Options{})
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, refs(name), p.Tables)
			assert.NotNil(t, p.Relations)
			assert.Empty(t, p.Relations)
			assert.Equal(t, 1, p.InputTablesCount)
			assert.Equal(t, 1, p.TotalTablesCount)
			assert.Equal(t, 0, p.TotalJoins)
		})
	}
}

func TestFindJoinPath_DuplicateInputsCollapse(t *testing.T) {
	g := BuildGraph(shopTables())

	p, err := FindJoinPath(context.Background(), g, refs("orders", "orders"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, p.TotalJoins)
	assert.Equal(t, 1, p.InputTablesCount)
}

func TestFindJoinPath_DirectRelation(t *testing.T) {
	g := BuildGraph(shopTables())
	inputs := refs("orders", "customers")

	p, err := FindJoinPath(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	assertTree(t, p, inputs, DefaultMaxDepth)

	assert.Equal(t, []string{"public.orders", "public.customers"}, tableKeys(p))
	require.Len(t, p.Relations, 1)
	rel := p.Relations[0]
	assert.Equal(t, Endpoint{Schema: "public", Table: "orders", Columns: []string{"customer_id"}}, rel.From)
	assert.Equal(t, Endpoint{Schema: "public", Table: "customers", Columns: []string{"id"}}, rel.To)
	assert.False(t, rel.IsNullable)
	assert.Equal(t, 2, p.InputTablesCount)
}

func TestFindJoinPath_IntermediateTable(t *testing.T) {
	g := BuildGraph(shopTables())
	inputs := refs("orders", "products")

	p, err := FindJoinPath(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	assertTree(t, p, inputs, DefaultMaxDepth)

	assert.Equal(t, []string{"public.orders", "public.order_items", "public.products"}, tableKeys(p))
	assert.Equal(t, 2, p.TotalJoins)
	assert.Equal(t, 2, p.InputTablesCount)
	assert.Equal(t, 3, p.TotalTablesCount)
	assert.Equal(t, refs("order_items"), p.Intermediate(inputs))

	// orders -> order_items walks a foreign key backwards.
	assert.False(t, p.Relations[0].IsNullable)
	assert.Equal(t, []string{"id"}, p.Relations[0].From.Columns)
	assert.Equal(t, []string{"order_id"}, p.Relations[0].To.Columns)

	// order_items.product_id is nullable.
	assert.True(t, p.Relations[1].IsNullable)
}

func TestFindJoinPath_ThreeInputs(t *testing.T) {
	g := BuildGraph(shopTables())
	inputs := refs("customers", "products", "orders")

	p, err := FindJoinPath(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	assertTree(t, p, inputs, DefaultMaxDepth)

	assert.Equal(t, []string{
		"public.customers", "public.orders", "public.order_items", "public.products",
	}, tableKeys(p))
	assert.Equal(t, 3, p.TotalJoins)
	assert.Equal(t, 3, p.InputTablesCount)
}

func TestFindJoinPath_FirstDiscoveredRouteWinsTies(t *testing.T) {
	g := BuildGraph(diamondTables())

	p, err := FindJoinPath(context.Background(), g, refs("a", "d"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"public.a", "public.b", "public.d"}, tableKeys(p))
}

func TestFindJoinPath_NoPath(t *testing.T) {
	g := BuildGraph(shopTables())

	tests := []struct {
		name   string
		inputs []schema.TableReference
	}{
		{"disconnected", refs("customers", "audit_log")},
		{"unknown table", refs("customers", "nope")},
		{"self reference only", refs("employees", "customers")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FindJoinPath(context.Background(), g, tt.inputs, Options{})
			assert.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestFindJoinPath_DepthBound(t *testing.T) {
	g := BuildGraph(chainTables(5))
	inputs := refs("t1", "t5")

	p, err := FindJoinPath(context.Background(), g, inputs, Options{MaxDepth: 3})
	require.NoError(t, err)
	assert.Nil(t, p, "t1..t5 needs four joins")

	p, err = FindJoinPath(context.Background(), g, inputs, Options{MaxDepth: 4})
	require.NoError(t, err)
	assertTree(t, p, inputs, 4)
	assert.Equal(t, 4, p.TotalJoins)
}

func TestFindJoinPath_DepthBudgetIsShared(t *testing.T) {
	g := BuildGraph(shopTables())
	inputs := refs("customers", "products", "orders")

	p, err := FindJoinPath(context.Background(), g, inputs, Options{MaxDepth: 2})
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestFindJoinPath_InvalidInput(t *testing.T) {
	g := BuildGraph(shopTables())

	_, err := FindJoinPath(context.Background(), g, nil, Options{})
	assert.True(t, errs.IsInvalidInput(err))

	_, err = FindJoinPath(context.Background(), g, []schema.TableReference{{Schema: "public"}}, Options{})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestFindJoinPath_Cancelled(t *testing.T) {
	g := BuildGraph(shopTables())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := FindJoinPath(ctx, g, refs("orders", "customers"), Options{})
	assert.Nil(t, p)
	assert.True(t, errs.IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindAllJoinPaths_Diamond(t *testing.T) {
	g := BuildGraph(diamondTables())
	inputs := refs("a", "d")

	paths, err := FindAllJoinPaths(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var middles []string
	for _, p := range paths {
		assertTree(t, p, inputs, DefaultMaxDepth)
		assert.Equal(t, 2, p.TotalJoins)
		middles = append(middles, p.Intermediate(inputs)[0].Table)
	}
	assert.ElementsMatch(t, []string{"b", "c"}, middles)
}

func TestFindAllJoinPaths_SortedAndDistinct(t *testing.T) {
	tables := diamondTables()
	d := tables[3]
	d.Columns = append(d.Columns, col("a_id", 4, true))
	d.ForeignKeys = append(d.ForeignKeys, fk("d_a", []string{"a_id"}, "public", "a", []string{"id"}))
	g := BuildGraph(tables)
	inputs := refs("a", "d")

	paths, err := FindAllJoinPaths(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	require.Len(t, paths, 3)

	seen := make(map[string]bool)
	for i, p := range paths {
		assertTree(t, p, inputs, DefaultMaxDepth)
		sig := pathSignature(p)
		assert.False(t, seen[sig], "duplicate plan %s", sig)
		seen[sig] = true
		if i > 0 {
			assert.LessOrEqual(t, paths[i-1].TotalJoins, p.TotalJoins)
		}
	}
	assert.Equal(t, 1, paths[0].TotalJoins)
	assert.False(t, paths[0].Relations[0].IsNullable, "a -> d walks d.a_id backwards")
}

func TestFindAllJoinPaths_MaxResultsKeepsCheapest(t *testing.T) {
	tables := diamondTables()
	d := tables[3]
	d.Columns = append(d.Columns, col("a_id", 4, false))
	d.ForeignKeys = append(d.ForeignKeys, fk("d_a", []string{"a_id"}, "public", "a", []string{"id"}))
	g := BuildGraph(tables)

	paths, err := FindAllJoinPaths(context.Background(), g, refs("a", "d"), Options{MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 1, paths[0].TotalJoins)
}

func TestFindAllJoinPaths_ThreeInputs(t *testing.T) {
	g := BuildGraph(diamondTables())
	inputs := refs("b", "c", "d")

	paths, err := FindAllJoinPaths(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	seen := make(map[string]bool)
	for _, p := range paths {
		assertTree(t, p, inputs, DefaultMaxDepth)
		assert.False(t, seen[pathSignature(p)])
		seen[pathSignature(p)] = true
	}
	// b-d-c is the only two-join tree over these inputs.
	assert.Equal(t, 2, paths[0].TotalJoins)
	assert.Equal(t, []string{"public.b", "public.d", "public.c"}, tableKeys(paths[0]))
}

func TestFindAllJoinPaths_NoPath(t *testing.T) {
	g := BuildGraph(shopTables())

	paths, err := FindAllJoinPaths(context.Background(), g, refs("customers", "audit_log"), Options{})
	require.NoError(t, err)
	assert.Empty(t, paths)

	chain := BuildGraph(chainTables(5))
	paths, err = FindAllJoinPaths(context.Background(), chain, refs("t1", "t5"), Options{MaxDepth: 3})
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFindAllJoinPaths_SingleTable(t *testing.T) {
	g := BuildGraph(shopTables())

	paths, err := FindAllJoinPaths(context.Background(), g, refs("employees"), Options{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 0, paths[0].TotalJoins)
}

func TestFindAllJoinPaths_AgreesWithShortest(t *testing.T) {
	g := BuildGraph(shopTables())
	inputs := refs("customers", "products")

	shortest, err := FindJoinPath(context.Background(), g, inputs, Options{})
	require.NoError(t, err)
	all, err := FindAllJoinPaths(context.Background(), g, inputs, Options{})
	require.NoError(t, err)

	require.Len(t, all, 1)
	assert.Equal(t, shortest.TotalJoins, all[0].TotalJoins)
	assert.Equal(t, pathSignature(shortest), pathSignature(all[0]))
}

func TestFindAllJoinPaths_Cancelled(t *testing.T) {
	g := BuildGraph(diamondTables())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths, err := FindAllJoinPaths(ctx, g, refs("a", "d"), Options{})
	assert.Nil(t, paths)
	assert.True(t, errs.IsTimeout(err))
}

func TestSearch_SelfReferencingTable(t *testing.T) {
	g := BuildGraph(orgTables())

	tests := []struct {
		name   string
		inputs []schema.TableReference
		joins  int
	}{
		{"as input", refs("employees", "projects"), 2},
		{"as intermediate", refs("departments", "assignments"), 2},
		{"three inputs", refs("employees", "departments", "assignments"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FindJoinPath(context.Background(), g, tt.inputs, Options{})
			require.NoError(t, err)
			assertTree(t, p, tt.inputs, DefaultMaxDepth)
			assertNoSelfJoin(t, p)
			assert.Equal(t, tt.joins, p.TotalJoins)

			all, err := FindAllJoinPaths(context.Background(), g, tt.inputs, Options{})
			require.NoError(t, err)
			require.NotEmpty(t, all)
			assert.Equal(t, tt.joins, all[0].TotalJoins)
			for _, candidate := range all {
				assertTree(t, candidate, tt.inputs, DefaultMaxDepth)
				assertNoSelfJoin(t, candidate)
			}
		})
	}
}

func TestFindAllJoinPaths_SelfReferencingRoutes(t *testing.T) {
	g := BuildGraph(orgTables())

	paths, err := FindAllJoinPaths(context.Background(), g, refs("employees", "projects"), Options{})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.NotEqual(t, pathSignature(paths[0]), pathSignature(paths[1]))

	paths, err = FindAllJoinPaths(context.Background(), g, refs("employees", "employees"), Options{})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 0, paths[0].TotalJoins)
	assert.Empty(t, paths[0].Relations)
}
