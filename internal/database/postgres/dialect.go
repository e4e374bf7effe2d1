package postgres

import "strings"

// DefaultSchema is the schema PostgreSQL resolves unqualified names in.
const DefaultSchema = "public"

// Dialect renders identifiers the PostgreSQL way.
type Dialect struct{}

// QuoteIdentifier wraps name in double quotes, doubling embedded quotes.
func (Dialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// DefaultSchema returns "public".
func (Dialect) DefaultSchema() string { return DefaultSchema }
