package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/joinpath"
	"github.com/koustreak/dbjoin/internal/schema"
	"github.com/koustreak/dbjoin/internal/snapshot"
)

func strPtr(s string) *string { return &s }

// writeSnapshot saves a small shop schema and returns its path. The working
// directory moves to a temp dir so no stray dbjoin.yaml is picked up.
func writeSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	doc := &snapshot.Document{
		Version:       snapshot.Version,
		Driver:        database.DriverPostgres,
		DefaultSchema: "public",
		CapturedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Tables: []*schema.TableSchema{
			{
				Schema: "public",
				Table:  "customers",
				Columns: []schema.ColumnSchema{
					{Name: "id", OrdinalPosition: 1, DataType: "integer", UDTName: "int4"},
					{Name: "email", OrdinalPosition: 2, DataType: "text", IsNullable: true},
				},
				PrimaryKey: &schema.PrimaryKey{Name: "customers_pkey", Columns: []string{"id"}},
				Indexes: []schema.IndexSchema{
					{Name: "customers_email_key", IsUnique: true, Columns: []string{"email"}, Definition: "CREATE UNIQUE INDEX customers_email_key ON public.customers USING btree (email)"},
				},
			},
			{
				Schema:  "public",
				Table:   "orders",
				Comment: strPtr("one row per checkout"),
				Columns: []schema.ColumnSchema{
					{Name: "id", OrdinalPosition: 1, DataType: "integer", UDTName: "int4"},
					{Name: "customer_id", OrdinalPosition: 2, DataType: "integer", UDTName: "int4"},
				},
				PrimaryKey: &schema.PrimaryKey{Name: "orders_pkey", Columns: []string{"id"}},
				ForeignKeys: []schema.ForeignKey{{
					Name:              "orders_customer_fkey",
					Columns:           []string{"customer_id"},
					ReferencedSchema:  "public",
					ReferencedTable:   "customers",
					ReferencedColumns: []string{"id"},
					OnDelete:          "CASCADE",
				}},
			},
			{Schema: "public", Table: "audit_log", Columns: []schema.ColumnSchema{{Name: "id", OrdinalPosition: 1, DataType: "bigint"}}},
		},
	}

	path := filepath.Join(dir, "shop.json")
	require.NoError(t, (&snapshot.Loader{}).Save(context.Background(), doc, path))
	return path
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Run(context.Background(), append(args, "--log-level", "error"), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestTables(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, stderr := run(t, "tables", "--snapshot", snap)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "public.customers\npublic.orders\npublic.audit_log\n", out)
}

func TestDescribe_Text(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, stderr := run(t, "describe", "orders", "--snapshot", snap)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Table: public.orders\nComment: one row per checkout\n")
	assert.Contains(t, out, "Primary key: orders_pkey (id)")
	assert.Contains(t, out, "orders_customer_fkey: orders(customer_id) -> public.customers(id) ON DELETE CASCADE")
	assert.Regexp(t, `id\s+integer \(int4\)\s+NOT NULL\s+PK`, out)
}

func TestDescribe_UniqueColumnAndJSON(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, _ := run(t, "describe", "public.customers", "--snapshot", snap)
	require.Equal(t, 0, code)
	assert.Regexp(t, `email\s+text\s+NULL\s+UNIQUE`, out)
	assert.Contains(t, out, "Indexes:\n  customers_email_key: CREATE UNIQUE INDEX")

	code, out, _ = run(t, "describe", "customers", "-o", "json", "--snapshot", snap)
	require.Equal(t, 0, code)
	var tbl schema.TableSchema
	require.NoError(t, json.Unmarshal([]byte(out), &tbl))
	assert.Equal(t, "customers", tbl.Table)
	assert.Len(t, tbl.Columns, 2)
}

func TestDescribe_Errors(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, stderr := run(t, "describe", "ghost", "--snapshot", snap)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "public.ghost not found")

	code, _, stderr = run(t, "describe", "orders", "--output", "xml", "--snapshot", snap)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--output must be text or json")
}

func TestJoin_JSON(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, stderr := run(t, "join", "--tables", "orders,customers", "--snapshot", snap)
	require.Equal(t, 0, code, stderr)

	var p joinpath.Path
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 1, p.TotalJoins)
	assert.Equal(t, 2, p.InputTablesCount)
	assert.Equal(t, []schema.TableReference{
		{Schema: "public", Table: "orders"},
		{Schema: "public", Table: "customers"},
	}, p.Tables)
}

func TestJoin_SQL(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, stderr := run(t, "join", "-t", "orders,customers", "-o", "sql", "--snapshot", snap)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, `FROM "orders"`+"\n"+`JOIN "customers" ON "orders"."customer_id" = "customers"."id"`)
	assert.NotContains(t, out, "-- plan")

	code, out, _ = run(t, "join", "-t", "orders,customers", "-o", "sql", "--all", "--snapshot", snap)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "-- plan 1: 1 join(s)\nSELECT")
}

func TestJoin_AllJSON(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, _ := run(t, "join", "-t", "customers,orders", "--all", "--max-depth", "3", "--snapshot", snap)
	require.Equal(t, 0, code)

	var paths []joinpath.Path
	require.NoError(t, json.Unmarshal([]byte(out), &paths))
	require.Len(t, paths, 1)
	assert.Equal(t, "customers", paths[0].Tables[0].Table)
}

func TestJoin_NoPath(t *testing.T) {
	snap := writeSnapshot(t)

	code, out, stderr := run(t, "join", "--tables", "orders,audit_log", "--snapshot", snap)
	assert.Equal(t, 1, code)
	assert.Empty(t, out)
	assert.Equal(t, joinpath.NoPathMessage+"\n", stderr)
}

func TestJoin_Errors(t *testing.T) {
	snap := writeSnapshot(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing tables flag", []string{"join", "--snapshot", snap}, `required flag(s) "tables" not set`},
		{"bad output", []string{"join", "-t", "orders", "-o", "csv", "--snapshot", snap}, "--output must be json or sql"},
		{"negative depth", []string{"join", "-t", "orders", "--max-depth", "-2", "--snapshot", snap}, "--max-depth must not be negative"},
		{"empty table list", []string{"join", "-t", ",", "--snapshot", snap}, "no tables given"},
		{"no source", []string{"join", "-t", "orders"}, "pass --dsn or --snapshot"},
		{"unsupported driver", []string{"tables", "--dsn", "x", "--driver", "oracle"}, "unsupported driver"},
		{"missing snapshot", []string{"tables", "--snapshot", "nope.json"}, "nope.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestSnapshotCommand(t *testing.T) {
	snap := writeSnapshot(t)
	out := filepath.Join(filepath.Dir(snap), "copy.yaml")

	code, _, stderr := run(t, "snapshot", "--snapshot", snap, "--out", out)
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "driver: postgres")

	code, stdout, _ := run(t, "tables", "--snapshot", out)
	require.Equal(t, 0, code)
	assert.Equal(t, "public.customers\npublic.orders\npublic.audit_log\n", stdout)

	code, _, stderr = run(t, "snapshot", "--snapshot", snap, "--out", "copy.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unknown snapshot format")
}

func TestConfigFile(t *testing.T) {
	snap := writeSnapshot(t)
	cfgPath := filepath.Join(filepath.Dir(snap), "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("snapshot: "+snap+"\njoin:\n  max_depth: 2\n"), 0o644))

	code, out, stderr := run(t, "tables", "--config", cfgPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "public.orders")
}
