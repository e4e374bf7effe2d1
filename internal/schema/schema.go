package schema

import (
	"fmt"
	"strings"

	"github.com/koustreak/dbjoin/internal/errs"
)

// Key returns the canonical table key used as graph node id: "schema.table".
func Key(schemaName, table string) string {
	return schemaName + "." + table
}

// Key returns the canonical key of the reference.
func (r TableReference) Key() string {
	return Key(r.Schema, r.Table)
}

// String renders the reference as [schema.]table.
func (r TableReference) String() string {
	if r.Schema == "" {
		return r.Table
	}
	return r.Schema + "." + r.Table
}

// ParseTableReference parses "[schema.]table". A bare table name is placed
// in defaultSchema.
func ParseTableReference(s, defaultSchema string) (TableReference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TableReference{}, errs.New(errs.ErrKindInvalidInput, "empty table name")
	}

	schemaName, table, found := strings.Cut(s, ".")
	if !found {
		return TableReference{Schema: defaultSchema, Table: s}, nil
	}
	schemaName, table = strings.TrimSpace(schemaName), strings.TrimSpace(table)
	if schemaName == "" || table == "" || strings.Contains(table, ".") {
		return TableReference{}, errs.Newf(errs.ErrKindInvalidInput, "invalid table reference %q", s)
	}
	return TableReference{Schema: schemaName, Table: table}, nil
}

// ParseTableList parses a comma-separated list of [schema.]table entries.
func ParseTableList(s, defaultSchema string) ([]TableReference, error) {
	var refs []TableReference
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		ref, err := ParseTableReference(part, defaultSchema)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "no tables given")
	}
	return refs, nil
}

// Ref returns the table's reference.
func (t *TableSchema) Ref() TableReference {
	return TableReference{Schema: t.Schema, Table: t.Table}
}

// Key returns the table's canonical key.
func (t *TableSchema) Key() string {
	return Key(t.Schema, t.Table)
}

// Column looks up a column by name.
func (t *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// IsPrimaryKeyColumn reports whether name is part of the primary key.
func (t *TableSchema) IsPrimaryKeyColumn(name string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// IsUniqueColumn reports whether name alone is covered by a unique,
// non-primary index.
func (t *TableSchema) IsUniqueColumn(name string) bool {
	for _, idx := range t.Indexes {
		if idx.IsUnique && !idx.IsPrimary && len(idx.Columns) == 1 && idx.Columns[0] == name {
			return true
		}
	}
	return false
}

// ReferencedRef returns the reference of the table the key points to.
func (fk ForeignKey) ReferencedRef() TableReference {
	return TableReference{Schema: fk.ReferencedSchema, Table: fk.ReferencedTable}
}

// Validate checks that the key's column lists are non-empty, pair up one to
// one and name real columns.
func (fk ForeignKey) Validate() error {
	if len(fk.Columns) == 0 || len(fk.ReferencedColumns) == 0 {
		return errs.Newf(errs.ErrKindMalformedSchema, "foreign key %q has no columns", fk.Name)
	}
	if len(fk.Columns) != len(fk.ReferencedColumns) {
		return errs.Newf(errs.ErrKindMalformedSchema,
			"foreign key %q maps %d column(s) to %d referenced column(s)",
			fk.Name, len(fk.Columns), len(fk.ReferencedColumns))
	}
	for i := range fk.Columns {
		if fk.Columns[i] == "" || fk.ReferencedColumns[i] == "" {
			return errs.Newf(errs.ErrKindMalformedSchema, "foreign key %q has an empty column name at position %d", fk.Name, i+1)
		}
	}
	return nil
}

// Describe renders a compact one-line summary, e.g. "orders(customer_id) -> public.customers(id)".
func (fk ForeignKey) Describe(owner string) string {
	return fmt.Sprintf("%s(%s) -> %s(%s)",
		owner, strings.Join(fk.Columns, ", "),
		fk.ReferencedRef(), strings.Join(fk.ReferencedColumns, ", "))
}
