package mysql

import (
	"context"
	"strings"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Introspector implements database.Introspector for MySQL.
type Introspector struct {
	db database.DB
}

// NewIntrospector creates a new MySQL schema introspector.
func NewIntrospector(db database.DB) *Introspector {
	return &Introspector{db: db}
}

const listTablesSQL = `
	SELECT table_name
	FROM information_schema.tables
	WHERE table_schema = ?
	  AND table_type   = 'BASE TABLE'
	ORDER BY table_name`

// ListTables returns all user-defined table names in the given database.
func (m *Introspector) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := m.db.Query(ctx, listTablesSQL, schemaName)
	if err != nil {
		return nil, err
	}
	return database.CollectStrings(rows, "table names")
}

const tableCommentSQL = `
	SELECT table_comment
	FROM information_schema.tables
	WHERE table_schema = ?
	  AND table_name   = ?
	  AND table_type   = 'BASE TABLE'`

// InspectTable returns columns, primary key, foreign keys and indexes of one table.
func (m *Introspector) InspectTable(ctx context.Context, schemaName, table string) (*schema.TableSchema, error) {
	t := &schema.TableSchema{Schema: schemaName, Table: table}

	var comment string
	if err := m.db.QueryRow(ctx, tableCommentSQL, schemaName, table).Scan(&comment); err != nil {
		if errs.IsNotFound(err) {
			return nil, database.TableNotFound(schemaName, table)
		}
		return nil, err
	}
	if comment != "" {
		t.Comment = &comment
	}

	var err error
	if t.Columns, err = m.columns(ctx, schemaName, table); err != nil {
		return nil, err
	}
	if t.PrimaryKey, err = m.primaryKey(ctx, schemaName, table); err != nil {
		return nil, err
	}
	if t.ForeignKeys, err = m.foreignKeys(ctx, schemaName, table); err != nil {
		return nil, err
	}
	if t.Indexes, err = m.indexes(ctx, schemaName, table); err != nil {
		return nil, err
	}
	return t, nil
}

const columnsSQL = `
	SELECT column_name,
	       ordinal_position,
	       data_type,
	       column_type,
	       is_nullable = 'YES',
	       column_default,
	       character_maximum_length,
	       numeric_precision,
	       numeric_scale,
	       NULLIF(column_comment, '')
	FROM information_schema.columns
	WHERE table_schema = ?
	  AND table_name   = ?
	ORDER BY ordinal_position`

func (m *Introspector) columns(ctx context.Context, schemaName, table string) ([]schema.ColumnSchema, error) {
	rows, err := m.db.Query(ctx, columnsSQL, schemaName, table)
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
	SELECT column_name
	FROM information_schema.key_column_usage
	WHERE table_schema    = ?
	  AND table_name      = ?
	  AND constraint_name = 'PRIMARY'
	ORDER BY ordinal_position`

func (m *Introspector) primaryKey(ctx context.Context, schemaName, table string) (*schema.PrimaryKey, error) {
	rows, err := m.db.Query(ctx, primaryKeySQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	cols, err := database.CollectStrings(rows, "primary key columns")
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return &schema.PrimaryKey{Name: "PRIMARY", Columns: cols}, nil
}

const foreignKeysSQL = `
	SELECT kcu.constraint_name,
	       kcu.column_name,
	       kcu.referenced_table_schema,
	       kcu.referenced_table_name,
	       kcu.referenced_column_name,
	       rc.update_rule,
	       rc.delete_rule
	FROM information_schema.key_column_usage kcu
	JOIN information_schema.referential_constraints rc
	  ON rc.constraint_schema = kcu.constraint_schema
	 AND rc.constraint_name   = kcu.constraint_name
	 AND rc.table_name        = kcu.table_name
	WHERE kcu.table_schema = ?
	  AND kcu.table_name   = ?
	  AND kcu.referenced_table_name IS NOT NULL
	ORDER BY kcu.constraint_name, kcu.ordinal_position`

func (m *Introspector) foreignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := m.db.Query(ctx, foreignKeysSQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []database.ForeignKeyColumn
	for rows.Next() {
		var c database.ForeignKeyColumn
		if err := rows.Scan(&c.Name, &c.Column, &c.ReferencedSchema, &c.ReferencedTable,
			&c.ReferencedColumn, &c.OnUpdate, &c.OnDelete); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return database.GroupForeignKeys(cols), nil
}

const indexesSQL = `
	SELECT index_name,
	       non_unique = 0,
	       column_name,
	       index_type
	FROM information_schema.statistics
	WHERE table_schema = ?
	  AND table_name   = ?
	ORDER BY index_name, seq_in_index`

type indexPart struct {
	name      string
	unique    bool
	column    *string // nil for functional key parts
	indexType string
}

func (m *Introspector) indexes(ctx context.Context, schemaName, table string) ([]schema.IndexSchema, error) {
	rows, err := m.db.Query(ctx, indexesSQL, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []indexPart
	for rows.Next() {
		var p indexPart
		if err := rows.Scan(&p.name, &p.unique, &p.column, &p.indexType); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupIndexes(Dialect{Database: schemaName}, schemaName, table, parts), nil
}

// groupIndexes folds statistics rows into indexes and renders a definition
// resembling MySQL's own DDL, since information_schema carries none.
func groupIndexes(d Dialect, schemaName, table string, parts []indexPart) []schema.IndexSchema {
	out := make([]schema.IndexSchema, 0)
	var keyParts [][]string
	var types []string

	for _, p := range parts {
		n := len(out)
		if n == 0 || out[n-1].Name != p.name {
			out = append(out, schema.IndexSchema{
				Name:      p.name,
				IsUnique:  p.unique,
				IsPrimary: p.name == "PRIMARY",
			})
			keyParts = append(keyParts, nil)
			types = append(types, p.indexType)
			n++
		}
		part := "(expression)"
		if p.column != nil {
			out[n-1].Columns = append(out[n-1].Columns, *p.column)
			part = d.QuoteIdentifier(*p.column)
		}
		keyParts[n-1] = append(keyParts[n-1], part)
	}

	target := d.QuoteIdentifier(schemaName) + "." + d.QuoteIdentifier(table)
	for i := range out {
		cols := "(" + strings.Join(keyParts[i], ", ") + ")"
		var def string
		switch {
		case out[i].IsPrimary:
			def = "ALTER TABLE " + target + " ADD PRIMARY KEY " + cols
		case out[i].IsUnique:
			def = "CREATE UNIQUE INDEX " + d.QuoteIdentifier(out[i].Name) + " ON " + target + " " + cols
		default:
			def = "CREATE INDEX " + d.QuoteIdentifier(out[i].Name) + " ON " + target + " " + cols
		}
		if types[i] != "" {
			def += " USING " + types[i]
		}
		out[i].Definition = def
	}
	return out
}
