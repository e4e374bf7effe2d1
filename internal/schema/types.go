// Package schema holds the immutable metadata snapshot of a database: tables,
// their columns, primary keys, foreign keys and indexes.
//
// Values are produced by an introspector (one per database engine) or loaded
// from a snapshot file, consumed by the join resolver, and discarded once the
// request that fetched them completes.
package schema

// TableReference identifies a table uniquely within a database.
type TableReference struct {
	Schema string `json:"schema" yaml:"schema"`
	Table  string `json:"table" yaml:"table"`
}

// ColumnSchema describes a single column in a table
type ColumnSchema struct {
	Name            string  `json:"name" yaml:"name"`
	OrdinalPosition int     `json:"ordinalPosition" yaml:"ordinalPosition"`
	DataType        string  `json:"dataType" yaml:"dataType"`                   // information_schema data_type
	UDTName         string  `json:"udtName,omitempty" yaml:"udtName,omitempty"` // engine type name: int4, varchar(255), ...
	IsNullable      bool    `json:"isNullable" yaml:"isNullable"`
	DefaultValue    *string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	MaxLength       *int64  `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Precision       *int64  `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale           *int64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Comment         *string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// PrimaryKey lists key columns in declared order.
type PrimaryKey struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// ForeignKey describes a (possibly composite) reference from the owning
// table's Columns to ReferencedColumns of the referenced table. Both lists
// are ordered and pair up by position.
type ForeignKey struct {
	Name              string   `json:"name" yaml:"name"`
	Columns           []string `json:"columns" yaml:"columns"`
	ReferencedSchema  string   `json:"referencedSchema" yaml:"referencedSchema"`
	ReferencedTable   string   `json:"referencedTable" yaml:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns" yaml:"referencedColumns"`
	OnUpdate          string   `json:"onUpdate,omitempty" yaml:"onUpdate,omitempty"`
	OnDelete          string   `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
}

// IndexSchema describes an index. Definition is the engine's own DDL text.
type IndexSchema struct {
	Name       string   `json:"name" yaml:"name"`
	IsUnique   bool     `json:"isUnique" yaml:"isUnique"`
	IsPrimary  bool     `json:"isPrimary" yaml:"isPrimary"`
	Columns    []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Definition string   `json:"definition" yaml:"definition"`
}

// TableSchema is the full metadata of one table.
type TableSchema struct {
	Schema      string         `json:"schema" yaml:"schema"`
	Table       string         `json:"table" yaml:"table"`
	Comment     *string        `json:"comment,omitempty" yaml:"comment,omitempty"`
	Columns     []ColumnSchema `json:"columns" yaml:"columns"`
	PrimaryKey  *PrimaryKey    `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey   `json:"foreignKeys" yaml:"foreignKeys"`
	Indexes     []IndexSchema  `json:"indexes" yaml:"indexes"`
}
