// Package dbx holds the small database/sql plumbing shared by the
// repositories.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query surface the repositories depend on. Both *sql.DB and
// *sql.Tx satisfy it, so the same repository code runs inside or outside a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
