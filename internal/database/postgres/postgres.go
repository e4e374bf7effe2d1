// Package postgres is the PostgreSQL driver: a pgxpool-backed database.DB,
// the pg_catalog introspector and the double-quote SQL dialect.
//
// Importing the package registers it with database.Open.
package postgres

import (
	"context"

	"github.com/koustreak/dbjoin/internal/database"
	"github.com/koustreak/dbjoin/internal/logger"
)

func init() {
	database.Register(database.DriverPostgres, Open)
}

// Open connects to PostgreSQL and returns a Provider reading cfg.Schemas
// (default "public").
func Open(ctx context.Context, cfg *database.Config, log *logger.Logger) (database.Provider, error) {
	if log == nil {
		log = logger.Nop()
	}
	drv, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Component("postgres").With().
		Str("database", drv.DatabaseName()).
		Logger().
		Debug("connected")
	return NewProvider(drv, cfg, log), nil
}

// NewProvider wires db into a database.Conn with the PostgreSQL introspector
// and dialect.
func NewProvider(db database.DB, cfg *database.Config, log *logger.Logger) *database.Conn {
	return database.NewConn(database.DriverPostgres, db, NewIntrospector(db), Dialect{}, cfg, log)
}
