package joinpath

import (
	"sort"
	"strconv"
	"strings"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Dialect is the SQL capability the synthesizer needs from a database engine.
type Dialect interface {
	// QuoteIdentifier quotes a single identifier (no dots).
	QuoteIdentifier(name string) string
	// DefaultSchema is the schema that needs no qualifier ("public" for
	// Postgres, the connected database for MySQL).
	DefaultSchema() string
}

// GenerateJoinSQL renders path as SELECT <columns> FROM <first> JOIN ... ON ....
// tables must contain the schema of every table in path.Tables; extra
// entries are ignored.
//
// Columns are listed in path order, then ordinal position. A column name
// that occurs in more than one joined table is aliased as
// [schema_]table_column so the result set has no ambiguous names. An alias
// already used by another output column gets a _2, _3, ... suffix.
func GenerateJoinSQL(d Dialect, path *Path, tables []*schema.TableSchema) (string, error) {
	if path == nil || len(path.Tables) == 0 {
		return "", errs.New(errs.ErrKindInvalidInput, "join path has no tables")
	}

	byKey := make(map[string]*schema.TableSchema, len(tables))
	for _, t := range tables {
		byKey[t.Key()] = t
	}

	ordered := make([]*schema.TableSchema, 0, len(path.Tables))
	for _, ref := range path.Tables {
		t, ok := byKey[ref.Key()]
		if !ok {
			return "", errs.Newf(errs.ErrKindNotFound, "no schema for table %s", ref)
		}
		ordered = append(ordered, t)
	}

	joined := map[string]bool{path.Tables[0].Key(): true}
	for i, rel := range path.Relations {
		if err := validateRelation(rel); err != nil {
			return "", err
		}
		if !joined[rel.From.Key()] {
			return "", errs.Newf(errs.ErrKindInvalidInput,
				"join %d references %s before it is introduced", i+1, rel.From.Ref())
		}
		joined[rel.To.Key()] = true
	}

	s := synth{d: d}

	occurrences := make(map[string]int)
	for _, t := range ordered {
		for _, c := range t.Columns {
			occurrences[c.Name]++
		}
	}

	taken := make(map[string]bool)
	for name, n := range occurrences {
		if n == 1 {
			taken[name] = true
		}
	}

	var cols []string
	for _, t := range ordered {
		for _, c := range byOrdinal(t.Columns) {
			ref := s.column(t.Schema, t.Table, c.Name)
			if occurrences[c.Name] > 1 {
				ref += " AS " + d.QuoteIdentifier(uniqueName(s.alias(t.Schema, t.Table, c.Name), taken))
			}
			cols = append(cols, ref)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT\n")
	if len(cols) == 0 {
		sb.WriteString("  *")
	} else {
		sb.WriteString("  ")
		sb.WriteString(strings.Join(cols, ",\n  "))
	}
	sb.WriteString("\nFROM ")
	sb.WriteString(s.table(path.Tables[0].Schema, path.Tables[0].Table))

	for _, rel := range path.Relations {
		sb.WriteString("\nJOIN ")
		sb.WriteString(s.table(rel.To.Schema, rel.To.Table))
		sb.WriteString(" ON ")
		sb.WriteString(s.condition(rel))
	}

	return sb.String(), nil
}

// validateRelation rejects relations that would render a malformed ON clause.
func validateRelation(rel Relation) error {
	pair := rel.From.Ref().String() + " and " + rel.To.Ref().String()
	if len(rel.From.Columns) == 0 || len(rel.To.Columns) == 0 {
		return errs.Newf(errs.ErrKindMalformedSchema, "relation between %s has no join columns", pair)
	}
	if len(rel.From.Columns) != len(rel.To.Columns) {
		return errs.Newf(errs.ErrKindMalformedSchema,
			"relation between %s pairs %d column(s) with %d column(s)",
			pair, len(rel.From.Columns), len(rel.To.Columns))
	}
	for i := range rel.From.Columns {
		if rel.From.Columns[i] == "" || rel.To.Columns[i] == "" {
			return errs.Newf(errs.ErrKindMalformedSchema, "relation between %s has an empty column at position %d", pair, i+1)
		}
	}
	return nil
}

// uniqueName returns name, or name with the first free numeric suffix, and
// marks the result as taken.
func uniqueName(name string, taken map[string]bool) string {
	out := name
	for i := 2; taken[out]; i++ {
		out = name + "_" + strconv.Itoa(i)
	}
	taken[out] = true
	return out
}

func byOrdinal(cols []schema.ColumnSchema) []schema.ColumnSchema {
	out := make([]schema.ColumnSchema, len(cols))
	copy(out, cols)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrdinalPosition < out[j].OrdinalPosition
	})
	return out
}

type synth struct {
	d Dialect
}

func (s synth) qualified(schemaName string) bool {
	return schemaName != "" && schemaName != s.d.DefaultSchema()
}

func (s synth) table(schemaName, table string) string {
	if !s.qualified(schemaName) {
		return s.d.QuoteIdentifier(table)
	}
	return s.d.QuoteIdentifier(schemaName) + "." + s.d.QuoteIdentifier(table)
}

func (s synth) column(schemaName, table, column string) string {
	return s.table(schemaName, table) + "." + s.d.QuoteIdentifier(column)
}

func (s synth) alias(schemaName, table, column string) string {
	if s.qualified(schemaName) {
		return schemaName + "_" + table + "_" + column
	}
	return table + "_" + column
}

func (s synth) condition(rel Relation) string {
	parts := make([]string, len(rel.From.Columns))
	for i := range rel.From.Columns {
		parts[i] = s.column(rel.From.Schema, rel.From.Table, rel.From.Columns[i]) +
			" = " + s.column(rel.To.Schema, rel.To.Table, rel.To.Columns[i])
	}
	return strings.Join(parts, " AND ")
}
