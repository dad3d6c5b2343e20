// Package tx defines the transaction contract used by registry code.
// The implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Manager runs fn inside a database transaction.
// A non-nil error from fn rolls the transaction back; nested calls reuse the transaction in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Querier is the statement surface shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierManager hands out the transaction bound to ctx, or the pool when there is none.
type QuerierManager interface {
	Manager
	GetQuerier(ctx context.Context) Querier
}
