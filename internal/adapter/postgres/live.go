package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LiveCursor is the capability set of one acquired connection that a Cursor
// consumes. *pgxpool.Conn satisfies it.
type LiveCursor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Release()
}

// LivePool is the capability set of a live connection pool that a
// Connection consumes. WrapPool adapts a *pgxpool.Pool to it.
type LivePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Acquire(ctx context.Context) (LiveCursor, error)
	Stat() *pgxpool.Stat
	Close()
}

var _ LiveCursor = (*pgxpool.Conn)(nil)

type poolAdapter struct {
	*pgxpool.Pool
}

// WrapPool exposes a pool as a LivePool.
func WrapPool(pool *pgxpool.Pool) LivePool {
	return poolAdapter{Pool: pool}
}

func (p poolAdapter) Acquire(ctx context.Context) (LiveCursor, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
