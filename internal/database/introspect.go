package database

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Introspector reads the structure of a database (tables, columns, keys).
// Each driver implements the DB-specific queries; InspectSchema is shared.
type Introspector interface {
	// ListTables returns the base tables of schemaName, sorted by name.
	ListTables(ctx context.Context, schemaName string) ([]string, error)

	// InspectTable returns the full metadata of one table, or an
	// errs.ErrKindNotFound error when it does not exist.
	InspectTable(ctx context.Context, schemaName, table string) (*schema.TableSchema, error)
}

// InspectSchema builds the complete snapshot of schemas by orchestrating the
// Introspector. Tables are inspected concurrently, at most concurrency at a
// time, and returned in listing order. The first failure cancels the rest and
// is returned alone: a partial snapshot would make missing relationships
// look like "no join path".
func InspectSchema(ctx context.Context, i Introspector, schemas []string, concurrency int) ([]*schema.TableSchema, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	var refs []schema.TableReference
	for _, s := range schemas {
		names, err := i.ListTables(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			refs = append(refs, schema.TableReference{Schema: s, Table: n})
		}
	}

	tables := make([]*schema.TableSchema, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for idx, ref := range refs {
		g.Go(func() error {
			t, err := i.InspectTable(gctx, ref.Schema, ref.Table)
			if err != nil {
				return err
			}
			tables[idx] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// ForeignKeyColumn is one row of a foreign-key listing: a single column pair
// of a possibly composite key. Drivers read these ordered by constraint name
// then key position and fold them with GroupForeignKeys.
type ForeignKeyColumn struct {
	Name             string
	Column           string
	ReferencedSchema string
	ReferencedTable  string
	ReferencedColumn string
	OnUpdate         string
	OnDelete         string
}

// GroupForeignKeys folds consecutive rows of the same constraint into one
// composite schema.ForeignKey, keeping column order.
func GroupForeignKeys(rows []ForeignKeyColumn) []schema.ForeignKey {
	fks := make([]schema.ForeignKey, 0)
	for _, r := range rows {
		if n := len(fks); n > 0 && fks[n-1].Name == r.Name {
			fks[n-1].Columns = append(fks[n-1].Columns, r.Column)
			fks[n-1].ReferencedColumns = append(fks[n-1].ReferencedColumns, r.ReferencedColumn)
			continue
		}
		fks = append(fks, schema.ForeignKey{
			Name:              r.Name,
			Columns:           []string{r.Column},
			ReferencedSchema:  r.ReferencedSchema,
			ReferencedTable:   r.ReferencedTable,
			ReferencedColumns: []string{r.ReferencedColumn},
			OnUpdate:          r.OnUpdate,
			OnDelete:          r.OnDelete,
		})
	}
	return fks
}

// TableNotFound is the error introspectors return for a missing table.
func TableNotFound(schemaName, table string) error {
	return errs.Newf(errs.ErrKindNotFound, "table %s.%s not found", schemaName, table)
}
