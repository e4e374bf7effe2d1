package snapshot

import (
	"context"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/database/mysql"
	"github.com/koustreak/dbjoin/internal/database/postgres"
	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Source serves a Document through the database.Provider interface.
// It is read-only and safe for concurrent use.
type Source struct {
	doc     *Document
	dialect database.Dialect
	byKey   map[string]*schema.TableSchema
}

var _ database.Provider = (*Source)(nil)

// NewSource validates doc and wraps it. The SQL dialect follows the
// recorded driver.
func NewSource(doc *Document) (*Source, error) {
	if doc == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "snapshot document is nil")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	driver, _ := database.ParseDriver(string(doc.Driver))

	var dialect database.Dialect
	switch driver {
	case database.DriverMySQL:
		dialect = mysql.Dialect{Database: doc.DefaultSchema}
	default:
		dialect = postgres.Dialect{}
	}

	byKey := make(map[string]*schema.TableSchema, len(doc.Tables))
	for _, t := range doc.Tables {
		byKey[t.Key()] = t
	}
	return &Source{doc: doc, dialect: dialect, byKey: byKey}, nil
}

// Document returns the wrapped document.
func (s *Source) Document() *Document { return s.doc }

func (s *Source) QuoteIdentifier(name string) string { return s.dialect.QuoteIdentifier(name) }

// DefaultSchema is the schema recorded at capture time.
func (s *Source) DefaultSchema() string { return s.doc.DefaultSchema }

func (s *Source) Driver() database.Driver { return s.doc.Driver }

func (s *Source) Close() {}

// FetchSchemas returns every table of the snapshot.
func (s *Source) FetchSchemas(ctx context.Context) ([]*schema.TableSchema, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "fetch snapshot schemas", err)
	}
	out := make([]*schema.TableSchema, len(s.doc.Tables))
	copy(out, s.doc.Tables)
	return out, nil
}

// ListTables returns the snapshot's tables in document order.
func (s *Source) ListTables(ctx context.Context) ([]schema.TableReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "list snapshot tables", err)
	}
	out := make([]schema.TableReference, len(s.doc.Tables))
	for i, t := range s.doc.Tables {
		out[i] = t.Ref()
	}
	return out, nil
}

// DescribeTable looks up one table. An empty ref.Schema means the default
// schema.
func (s *Source) DescribeTable(ctx context.Context, ref schema.TableReference) (*schema.TableSchema, error) {
	if ref.Table == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "table name must not be empty")
	}
	if ref.Schema == "" {
		ref.Schema = s.doc.DefaultSchema
	}
	t, ok := s.byKey[ref.Key()]
	if !ok {
		return nil, database.TableNotFound(ref.Schema, ref.Table)
	}
	return t, nil
}
