package joinpath

import (
	"sort"
	"strings"

	"github.com/koustreak/dbjoin/internal/schema"
)

// quoteDialect is a test Dialect with configurable quote character.
type quoteDialect struct {
	quote         string
	defaultSchema string
}

func (d quoteDialect) QuoteIdentifier(name string) string {
	return d.quote + strings.ReplaceAll(name, d.quote, d.quote+d.quote) + d.quote
}

func (d quoteDialect) DefaultSchema() string { return d.defaultSchema }

var (
	ansi     = quoteDialect{quote: `"`, defaultSchema: "public"}
	backtick = quoteDialect{quote: "`", defaultSchema: "shop"}
)

func col(name string, pos int, nullable bool) schema.ColumnSchema {
	return schema.ColumnSchema{Name: name, OrdinalPosition: pos, DataType: "integer", IsNullable: nullable}
}

func fk(name string, cols []string, refSchema, refTable string, refCols []string) schema.ForeignKey {
	return schema.ForeignKey{
		Name:              name,
		Columns:           cols,
		ReferencedSchema:  refSchema,
		ReferencedTable:   refTable,
		ReferencedColumns: refCols,
	}
}

func table(schemaName, name string, cols []schema.ColumnSchema, fks ...schema.ForeignKey) *schema.TableSchema {
	return &schema.TableSchema{
		Schema:      schemaName,
		Table:       name,
		Columns:     cols,
		PrimaryKey:  &schema.PrimaryKey{Name: name + "_pkey", Columns: []string{"id"}},
		ForeignKeys: fks,
	}
}

func ref(name string) schema.TableReference {
	return schema.TableReference{Schema: "public", Table: name}
}

func refs(names ...string) []schema.TableReference {
	out := make([]schema.TableReference, len(names))
	for i, n := range names {
		out[i] = ref(n)
	}
	return out
}

// shopTables is a small storefront:
//
//	customers <- orders <- order_items -> products
//	employees.manager_id -> employees (self reference)
//	audit_log (isolated)
func shopTables() []*schema.TableSchema {
	return []*schema.TableSchema{
		table("public", "customers", []schema.ColumnSchema{
			col("id", 1, false), col("name", 2, false),
		}),
		table("public", "orders", []schema.ColumnSchema{
			col("id", 1, false), col("customer_id", 2, false), col("total", 3, true),
		}, fk("orders_customer_id_fkey", []string{"customer_id"}, "public", "customers", []string{"id"})),
		table("public", "order_items", []schema.ColumnSchema{
			col("id", 1, false), col("order_id", 2, false), col("product_id", 3, true), col("quantity", 4, false),
		},
			fk("order_items_order_id_fkey", []string{"order_id"}, "public", "orders", []string{"id"}),
			fk("order_items_product_id_fkey", []string{"product_id"}, "public", "products", []string{"id"}),
		),
		table("public", "products", []schema.ColumnSchema{
			col("id", 1, false), col("name", 2, false),
		}),
		table("public", "employees", []schema.ColumnSchema{
			col("id", 1, false), col("manager_id", 2, true),
		}, fk("employees_manager_id_fkey", []string{"manager_id"}, "public", "employees", []string{"id"})),
		table("public", "audit_log", []schema.ColumnSchema{
			col("id", 1, false), col("message", 2, true),
		}),
	}
}

// diamondTables: a <- b <- d -> c -> a, so a and d connect through b or c.
func diamondTables() []*schema.TableSchema {
	return []*schema.TableSchema{
		table("public", "a", []schema.ColumnSchema{col("id", 1, false)}),
		table("public", "b", []schema.ColumnSchema{col("id", 1, false), col("a_id", 2, false)},
			fk("b_a", []string{"a_id"}, "public", "a", []string{"id"})),
		table("public", "c", []schema.ColumnSchema{col("id", 1, false), col("a_id", 2, false)},
			fk("c_a", []string{"a_id"}, "public", "a", []string{"id"})),
		table("public", "d", []schema.ColumnSchema{col("id", 1, false), col("b_id", 2, false), col("c_id", 3, false)},
			fk("d_b", []string{"b_id"}, "public", "b", []string{"id"}),
			fk("d_c", []string{"c_id"}, "public", "c", []string{"id"})),
	}
}

// orgTables puts a self-referencing table in the middle of the graph:
//
//	employees.manager_id -> employees
//	employees -> departments <- projects
//	employees <- assignments -> projects
func orgTables() []*schema.TableSchema {
	return []*schema.TableSchema{
		table("public", "departments", []schema.ColumnSchema{col("id", 1, false), col("name", 2, false)}),
		table("public", "employees", []schema.ColumnSchema{
			col("id", 1, false), col("manager_id", 2, true), col("department_id", 3, false),
		},
			fk("employees_manager_id_fkey", []string{"manager_id"}, "public", "employees", []string{"id"}),
			fk("employees_department_id_fkey", []string{"department_id"}, "public", "departments", []string{"id"}),
		),
		table("public", "projects", []schema.ColumnSchema{col("id", 1, false), col("department_id", 2, false)},
			fk("projects_department_id_fkey", []string{"department_id"}, "public", "departments", []string{"id"})),
		table("public", "assignments", []schema.ColumnSchema{
			col("id", 1, false), col("employee_id", 2, false), col("project_id", 3, false),
		},
			fk("assignments_employee_id_fkey", []string{"employee_id"}, "public", "employees", []string{"id"}),
			fk("assignments_project_id_fkey", []string{"project_id"}, "public", "projects", []string{"id"}),
		),
	}
}

// chainTables builds t1 <- t2 <- ... <- tn.
func chainTables(n int) []*schema.TableSchema {
	var out []*schema.TableSchema
	for i := 1; i <= n; i++ {
		name := chainName(i)
		if i == 1 {
			out = append(out, table("public", name, []schema.ColumnSchema{col("id", 1, false)}))
			continue
		}
		prev := chainName(i - 1)
		out = append(out, table("public", name,
			[]schema.ColumnSchema{col("id", 1, false), col("prev_id", 2, false)},
			fk(name+"_prev", []string{"prev_id"}, "public", prev, []string{"id"})))
	}
	return out
}

func chainName(i int) string {
	return "t" + string(rune('0'+i))
}

func tableKeys(p *Path) []string {
	keys := make([]string, len(p.Tables))
	for i, t := range p.Tables {
		keys[i] = t.Key()
	}
	return keys
}

// pathSignature mirrors the dedup signature from the outside.
func pathSignature(p *Path) string {
	keys := tableKeys(p)
	sort.Strings(keys)
	rels := make([]string, len(p.Relations))
	for i, r := range p.Relations {
		a, b := endpointSignature(r.From), endpointSignature(r.To)
		if a > b {
			a, b = b, a
		}
		rels[i] = a + "=" + b
	}
	sort.Strings(rels)
	return strings.Join(keys, ",") + "|" + strings.Join(rels, ";")
}
