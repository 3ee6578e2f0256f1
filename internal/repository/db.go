// Package repository implements Postgres persistence with pgx.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the subset of pgxpool.Pool and pgx.Tx the repositories use, so
// every repository works both pooled and transaction-bound.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
