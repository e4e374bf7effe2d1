package mysql

import "strings"

// Dialect renders identifiers the MySQL way. Database is the connected
// database, which unqualified table names resolve in.
type Dialect struct {
	Database string
}

// QuoteIdentifier wraps name in backticks, doubling embedded backticks.
func (Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// DefaultSchema returns the connected database.
func (d Dialect) DefaultSchema() string { return d.Database }
