package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/koustreak/dbjoin/internal/errs"
	"github.com/koustreak/dbjoin/internal/logger"
	"github.com/koustreak/dbjoin/internal/schema"
)

// Dialect is the engine-specific SQL surface the join synthesizer needs.
type Dialect interface {
	QuoteIdentifier(name string) string
	DefaultSchema() string
}

// Provider is everything a command needs from one database: the schema
// snapshot for the resolver, the SQL dialect for rendering, and table
// browsing. Live connections and offline snapshots both implement it.
type Provider interface {
	Dialect

	// FetchSchemas returns the complete snapshot of the configured schemas.
	FetchSchemas(ctx context.Context) ([]*schema.TableSchema, error)

	// ListTables returns every table of the configured schemas.
	ListTables(ctx context.Context) ([]schema.TableReference, error)

	// DescribeTable returns the metadata of a single table.
	DescribeTable(ctx context.Context, ref schema.TableReference) (*schema.TableSchema, error)

	// Driver is the engine tag.
	Driver() Driver

	// Close releases the connection, if any.
	Close()
}

// Opener connects a driver and returns its Provider.
type Opener func(ctx context.Context, cfg *Config, log *logger.Logger) (Provider, error)

var (
	openersMu sync.RWMutex
	openers   = make(map[Driver]Opener)
)

// Register makes a driver available to Open. Driver packages call it from
// init; registering the same driver twice panics.
func Register(d Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if open == nil {
		panic("database: Register opener is nil")
	}
	if _, dup := openers[d]; dup {
		panic("database: Register called twice for driver " + string(d))
	}
	openers[d] = open
}

// Drivers returns the registered driver tags, sorted.
func Drivers() []Driver {
	openersMu.RLock()
	defer openersMu.RUnlock()
	out := make([]Driver, 0, len(openers))
	for d := range openers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Open connects to the database described by cfg using the registered driver.
func Open(ctx context.Context, cfg *Config, log *logger.Logger) (Provider, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "a database DSN is required")
	}
	d, err := cfg.ResolveDriver()
	if err != nil {
		return nil, err
	}

	openersMu.RLock()
	open, ok := openers[d]
	openersMu.RUnlock()
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "driver %q is not registered", d)
	}
	if log == nil {
		log = logger.Nop()
	}
	return open(ctx, cfg, log)
}

// Conn is the Provider shared by the live drivers: a DB, the driver's
// Introspector and Dialect, and the schemas to read.
type Conn struct {
	driver      Driver
	db          DB
	intro       Introspector
	dialect     Dialect
	schemas     []string
	concurrency int
	timeout     time.Duration
	log         *logger.Logger
}

// NewConn assembles a Conn. Empty cfg.Schemas means the dialect default.
func NewConn(driver Driver, db DB, intro Introspector, dialect Dialect, cfg *Config, log *logger.Logger) *Conn {
	if log == nil {
		log = logger.Nop()
	}
	schemas := cfg.Schemas
	if len(schemas) == 0 {
		schemas = []string{dialect.DefaultSchema()}
	}
	return &Conn{
		driver:      driver,
		db:          db,
		intro:       intro,
		dialect:     dialect,
		schemas:     schemas,
		concurrency: cfg.FetchConcurrency,
		timeout:     cfg.QueryTimeout,
		log:         log.Component("introspect").With().Str("driver", string(driver)).Logger(),
	}
}

func (c *Conn) QuoteIdentifier(name string) string { return c.dialect.QuoteIdentifier(name) }
func (c *Conn) DefaultSchema() string              { return c.dialect.DefaultSchema() }
func (c *Conn) Driver() Driver                     { return c.driver }
func (c *Conn) Close()                             { c.db.Close() }

// Schemas returns the schemas this connection reads.
func (c *Conn) Schemas() []string {
	out := make([]string, len(c.schemas))
	copy(out, c.schemas)
	return out
}

func (c *Conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// FetchSchemas introspects every configured schema.
func (c *Conn) FetchSchemas(ctx context.Context) ([]*schema.TableSchema, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	tables, err := InspectSchema(ctx, c.intro, c.schemas, c.concurrency)
	if err != nil {
		c.log.ErrorWith("schema fetch failed", err, map[string]interface{}{
			"schemas": c.schemas,
		})
		return nil, err
	}

	fks := 0
	for _, t := range tables {
		fks += len(t.ForeignKeys)
	}
	c.log.DebugWith("schema fetched", map[string]interface{}{
		"tables":       len(tables),
		"foreign_keys": fks,
		"elapsed":      time.Since(start).String(),
	})
	return tables, nil
}

// ListTables lists the tables of every configured schema.
func (c *Conn) ListTables(ctx context.Context) ([]schema.TableReference, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var out []schema.TableReference
	for _, s := range c.schemas {
		names, err := c.intro.ListTables(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			out = append(out, schema.TableReference{Schema: s, Table: n})
		}
	}
	return out, nil
}

// DescribeTable inspects a single table. An empty ref.Schema means the
// dialect default.
func (c *Conn) DescribeTable(ctx context.Context, ref schema.TableReference) (*schema.TableSchema, error) {
	if ref.Table == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "table name must not be empty")
	}
	if ref.Schema == "" {
		ref.Schema = c.dialect.DefaultSchema()
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.intro.InspectTable(ctx, ref.Schema, ref.Table)
}
