package postgres

import (
	"context"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Introspector implements database.Introspector for PostgreSQL.
// Keys and indexes are read from pg_catalog so composite keys keep their
// declared column order; columns come from information_schema.
type Introspector struct {
	db database.DB
}

// NewIntrospector creates a new PostgreSQL schema introspector.
func NewIntrospector(db database.DB) *Introspector {
	return &Introspector{db: db}
}

const listTablesSQL = `
	SELECT c.relname
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
	  AND c.relkind IN ('r', 'p')
	  AND NOT c.relispartition
	ORDER BY c.relname`

// ListTables returns ordinary and partitioned tables of schemaName.
// Partitions are left out; their parent stands for them.
func (p *Introspector) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := p.db.Query(ctx, listTablesSQL, schemaName)
	if err != nil {
		return nil, err
	}
	return database.CollectStrings(rows, "table names")
}

const tableCommentSQL = `
	SELECT pg_catalog.obj_description(c.oid, 'pg_class')
	FROM pg_catalog.pg_class c
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname = $1
	  AND c.relname = $2
	  AND c.relkind IN ('r', 'p')`

// InspectTable returns columns, primary key, foreign keys and indexes of one table.
func (p *Introspector) InspectTable(ctx context.Context, schemaName, table string) (*schema.TableSchema, error) {
	t := &schema.TableSchema{Schema: schemaName, Table: table}

	if err := p.db.QueryRow(ctx, tableCommentSQL, schemaName, table).Scan(&t.Comment); err != nil {
		if errs.IsNotFound(err) {
			return nil, database.TableNotFound(schemaName, table)
		}
		return nil, err
	}

	var err error
	if t.Columns, err = p.columns(ctx, schemaName, table); err != nil {
		return nil, err
	}
	if t.PrimaryKey, err = p.primaryKey(ctx, schemaName, table); err != nil {
		return nil, err
	}
	if t.ForeignKeys, err = p.foreignKeys(ctx, schemaName, table); err != nil {
		return nil, err
	}
	if t.Indexes, err = p.indexes(ctx, schemaName, table); err != nil {
		return nil, err
	}
	return t, nil
}

const columnsSQL = `
	SELECT c.column_name,
	       c.ordinal_position::int,
	       c.data_type,
	       c.udt_name,
	       c.is_nullable = 'YES',
	       c.column_default,
	       c.character_maximum_length::bigint,
	       c.numeric_precision::bigint,
	       c.numeric_scale::bigint,
	       pg_catalog.col_description(a.attrelid, a.attnum)
	FROM information_schema.columns c
	JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
	JOIN pg_catalog.pg_class cl ON cl.relnamespace = n.oid AND cl.relname = c.table_name
	JOIN pg_catalog.pg_attribute a ON a.attrelid = cl.oid AND a.attname = c.column_name
	WHERE c.table_schema = $1
	  AND c.table_name   = $2
	ORDER BY c.ordinal_position`

func (p *Introspector) columns(ctx context.Context, schemaName, table string) ([]schema.ColumnSchema, error) {
	rows, err := p.db.Query(ctx, columnsSQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make([]schema.ColumnSchema, 0)
	for rows.Next() {
		var c schema.ColumnSchema
		if err := rows.Scan(&c.Name, &c.OrdinalPosition, &c.DataType, &c.UDTName, &c.IsNullable,
			&c.DefaultValue, &c.MaxLength, &c.Precision, &c.Scale, &c.Comment); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

const primaryKeySQL = `
	SELECT con.conname, a.attname::text
	FROM pg_catalog.pg_constraint con
	JOIN pg_catalog.pg_class cl ON cl.oid = con.conrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = cl.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
	JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
	WHERE con.contype = 'p'
	  AND n.nspname   = $1
	  AND cl.relname  = $2
	ORDER BY k.ord`

func (p *Introspector) primaryKey(ctx context.Context, schemaName, table string) (*schema.PrimaryKey, error) {
	rows, err := p.db.Query(ctx, primaryKeySQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk *schema.PrimaryKey
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return nil, err
		}
		if pk == nil {
			pk = &schema.PrimaryKey{Name: name}
		}
		pk.Columns = append(pk.Columns, col)
	}
	return pk, rows.Err()
}

const foreignKeysSQL = `
	SELECT con.conname,
	       a.attname::text,
	       rn.nspname::text,
	       rc.relname::text,
	       ra.attname::text,
	       con.confupdtype::text,
	       con.confdeltype::text
	FROM pg_catalog.pg_constraint con
	JOIN pg_catalog.pg_class cl ON cl.oid = con.conrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = cl.relnamespace
	JOIN pg_catalog.pg_class rc ON rc.oid = con.confrelid
	JOIN pg_catalog.pg_namespace rn ON rn.oid = rc.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
	JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
	JOIN pg_catalog.pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
	WHERE con.contype = 'f'
	  AND n.nspname   = $1
	  AND cl.relname  = $2
	ORDER BY con.conname, k.ord`

func (p *Introspector) foreignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := p.db.Query(ctx, foreignKeysSQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []database.ForeignKeyColumn
	for rows.Next() {
		var c database.ForeignKeyColumn
		var onUpdate, onDelete string
		if err := rows.Scan(&c.Name, &c.Column, &c.ReferencedSchema, &c.ReferencedTable,
			&c.ReferencedColumn, &onUpdate, &onDelete); err != nil {
			return nil, err
		}
		c.OnUpdate = referentialAction(onUpdate)
		c.OnDelete = referentialAction(onDelete)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return database.GroupForeignKeys(cols), nil
}

// referentialAction decodes pg_constraint.confupdtype / confdeltype.
func referentialAction(code string) string {
	switch code {
	case "a":
		return "NO ACTION"
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return ""
	}
}

const indexesSQL = `
	SELECT ic.relname::text,
	       ix.indisunique,
	       ix.indisprimary,
	       pg_catalog.pg_get_indexdef(ix.indexrelid),
	       COALESCE(array_agg(a.attname::text ORDER BY k.ord) FILTER (WHERE a.attname IS NOT NULL), '{}'::text[])
	FROM pg_catalog.pg_index ix
	JOIN pg_catalog.pg_class cl ON cl.oid = ix.indrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = cl.relnamespace
	JOIN pg_catalog.pg_class ic ON ic.oid = ix.indexrelid
	CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
	LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
	WHERE n.nspname  = $1
	  AND cl.relname = $2
	GROUP BY ic.relname, ix.indisunique, ix.indisprimary, ix.indexrelid
	ORDER BY ic.relname`

func (p *Introspector) indexes(ctx context.Context, schemaName, table string) ([]schema.IndexSchema, error) {
	rows, err := p.db.Query(ctx, indexesSQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	idx := make([]schema.IndexSchema, 0)
	for rows.Next() {
		var i schema.IndexSchema
		if err := rows.Scan(&i.Name, &i.IsUnique, &i.IsPrimary, &i.Definition, &i.Columns); err != nil {
			return nil, err
		}
		idx = append(idx, i)
	}
	return idx, rows.Err()
}
