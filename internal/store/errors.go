package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"
	"strings"

	"marketfeed/pkg/exception"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/yanun0323/errors"
)

// sqlite reports contention through the message only
var sqliteTransient = []string{
	"database is locked",
	"database table is locked",
	"sqlite_busy",
	"sqlite_locked",
}

// postgres error classes that describe the server, not the statement
var transientClasses = []string{
	pgerrcode.ConnectionException[:2],
	pgerrcode.TransactionRollback[:2],
	pgerrcode.InsufficientResources[:2],
	pgerrcode.OperatorIntervention[:2],
}

// Classify marks err as exception.ErrStoreUnavailable when the store could not
// accept the write for transient reasons. Other errors are returned as-is.
func Classify(err error) error {
	if err == nil || exception.IsStoreUnavailable(err) {
		return err
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %w", exception.ErrStoreUnavailable, err)
	}
	return err
}

// IsUnavailable reports whether err means the store is locked, unreachable or
// temporarily refusing work.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientCode(pgErr.Code)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	if pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range sqliteTransient {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isTransientCode(code string) bool {
	switch code {
	case pgerrcode.LockNotAvailable, pgerrcode.ReadOnlySQLTransaction:
		return true
	}
	for _, class := range transientClasses {
		if strings.HasPrefix(code, class) {
			return true
		}
	}
	return false
}
