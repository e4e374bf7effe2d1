// Package dbtest provides an in-memory database.DB for introspector tests.
//
// Results are scripted by SQL fragment: the first registered fragment that
// occurs in the executed statement answers it.
//
//	db := dbtest.New()
//	db.On("FROM pg_catalog.pg_class", dbtest.Row("orders"), dbtest.Row("customers"))
//	db.Fail("pg_constraint", errs.New(errs.ErrKindQueryFailed, "boom"))
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/errs"
)

type script struct {
	fragment string
	rows     [][]any
	err      error
}

// Call records one executed statement.
type Call struct {
	SQL  string
	Args []any
}

// DB is a scripted, concurrency-safe fake of database.DB.
type DB struct {
	mu      sync.Mutex
	scripts []script
	calls   []Call
	closed  bool
	pingErr error
}

var _ database.DB = (*DB)(nil)

// New returns an empty fake. Unscripted statements return no rows.
func New() *DB {
	return &DB{}
}

// Row is shorthand for one result row.
func Row(values ...any) []any {
	return values
}

// On scripts the rows returned for statements containing fragment.
func (d *DB) On(fragment string, rows ...[]any) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script{fragment: fragment, rows: rows})
	return d
}

// Fail scripts an error for statements containing fragment.
func (d *DB) Fail(fragment string, err error) *DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, script{fragment: fragment, err: err})
	return d
}

// FailPing makes Ping return err.
func (d *DB) FailPing(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pingErr = err
}

// Calls returns the statements executed so far.
func (d *DB) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Closed reports whether Close was called.
func (d *DB) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *DB) Ping(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pingErr
}

func (d *DB) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *DB) lookup(ctx context.Context, sql string, args []any) ([][]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{SQL: sql, Args: args})
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "query interrupted", err)
	}
	for _, s := range d.scripts {
		if strings.Contains(sql, s.fragment) {
			return s.rows, s.err
		}
	}
	return nil, nil
}

func (d *DB) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.lookup(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows, pos: -1}, nil
}

func (d *DB) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	rows, err := d.lookup(ctx, sql, args)
	if err == nil && len(rows) == 0 {
		err = errs.New(errs.ErrKindNotFound, "no rows in result set")
	}
	if err != nil {
		return &singleRow{err: err}
	}
	return &singleRow{values: rows[0]}
}

// Rows iterates scripted rows.
type Rows struct {
	rows   [][]any
	pos    int
	closed bool
}

func (r *Rows) Next() bool {
	if r.closed || r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return fmt.Errorf("dbtest: Scan called without a current row")
	}
	return scanInto(r.rows[r.pos], dest)
}

func (r *Rows) Close()     { r.closed = true }
func (r *Rows) Err() error { return nil }

type singleRow struct {
	values []any
	err    error
}

func (r *singleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("dbtest: row has %d values, Scan got %d destinations", len(values), len(dest))
	}
	for i := range dest {
		if err := assign(dest[i], values[i]); err != nil {
			return fmt.Errorf("dbtest: column %d: %w", i, err)
		}
	}
	return nil
}

// assign stores src into the pointer dest. nil clears the target; pointer
// targets (e.g. **string) are allocated, mirroring how drivers scan NULLs.
func assign(dest, src any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a non-nil pointer", dest)
	}
	target := dv.Elem()

	if src == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	if target.Kind() == reflect.Pointer {
		p := reflect.New(target.Type().Elem())
		if err := assign(p.Interface(), src); err != nil {
			return err
		}
		target.Set(p)
		return nil
	}

	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(target.Type()):
		target.Set(sv)
	case sv.Kind() != reflect.String && target.Kind() != reflect.String && sv.Type().ConvertibleTo(target.Type()):
		target.Set(sv.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot store %T into %s", src, target.Type())
	}
	return nil
}
