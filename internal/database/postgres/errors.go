package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/dbjoin/internal/errs"
)

// PostgreSQL SQLSTATE codes the introspector cares about.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrInsufficientPrivilege = "42501"
	pgErrUndefinedTable        = "42P01"
	pgErrInvalidSchemaName     = "3F000"
	pgErrInvalidCatalogName    = "3D000"
	pgErrQueryCanceled         = "57014"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Context cancellation / deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	// No rows
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	// Postgres server-side error (SQLSTATE codes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	// Fallthrough: connection-level errors (TLS, network, auth)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifySQLState maps a SQLSTATE code to an ErrKind.
func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case pgErrUndefinedTable, pgErrInvalidSchemaName, pgErrInvalidCatalogName:
		return errs.ErrKindNotFound
	case pgErrQueryCanceled:
		return errs.ErrKindTimeout
	}
	if len(code) >= 2 {
		switch code[:2] {
		case "08": // connection exception
			return errs.ErrKindConnectionFailed
		case "28": // invalid authorization specification
			return errs.ErrKindPermissionDenied
		}
	}
	return errs.ErrKindQueryFailed
}
