package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/dbjoin/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errNoDatabaseSelected = 1046
	errUnknownDatabase    = 1049
	errTooManyConnections = 1040
	errTableAccessDenied  = 1142
	errColumnAccessDenied = 1143
	errNoSuchTable        = 1146
	errQueryInterrupted   = 1317
	errMaxExecutionTime   = 3024
	errConnRefused        = 2003
)

// mapError translates go-sql-driver/mysql errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDBAccessDenied, errAccessDenied, errTableAccessDenied, errColumnAccessDenied:
		return errs.ErrKindPermissionDenied
	case errUnknownDatabase, errNoSuchTable:
		return errs.ErrKindNotFound
	case errTooManyConnections, errConnRefused:
		return errs.ErrKindConnectionFailed
	case errQueryInterrupted, errMaxExecutionTime:
		return errs.ErrKindTimeout
	case errNoDatabaseSelected:
		return errs.ErrKindInvalidInput
	default:
		return errs.ErrKindQueryFailed
	}
}
