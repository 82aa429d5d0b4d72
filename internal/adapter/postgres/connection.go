package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connection stands in for a live pool. Exec, Query and QueryRow record one
// bulk_api record; ExecMany and CopyFrom record one bulk_api_bulk record
// sampled from the first parameter set. Recording always happens before the
// statement reaches the driver, and driver results and errors are returned
// unchanged.
//
// The live pool's methods are captured when the Connection is built and are
// the only path to the driver, so delegated calls never re-enter recording.
type Connection struct {
	live LivePool
	*interceptor

	exec      func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	query     func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRow  func(ctx context.Context, sql string, args ...any) pgx.Row
	sendBatch func(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	copyFrom  func(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	acquire   func(ctx context.Context) (LiveCursor, error)
}

// Wrap builds a Connection over a pgx pool.
func Wrap(pool *pgxpool.Pool, rec port.StatementRecorder, opts ...Option) *Connection {
	return NewConnection(WrapPool(pool), rec, opts...)
}

func NewConnection(live LivePool, rec port.StatementRecorder, opts ...Option) *Connection {
	return &Connection{
		live:        live,
		interceptor: newInterceptor(rec, opts),
		exec:        live.Exec,
		query:       live.Query,
		queryRow:    live.QueryRow,
		sendBatch:   live.SendBatch,
		copyFrom:    live.CopyFrom,
		acquire:     live.Acquire,
	}
}

// Cursor acquires a connection from the pool and wraps it. The caller must
// Close the cursor to return the connection.
func (c *Connection) Cursor(ctx context.Context) (*Cursor, error) {
	conn, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	return newCursor(conn, c.interceptor), nil
}

func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := c.begin(ctx, "Connection.Exec", sql, domain.SourceBulkAPI)
	if err := c.rec.Capture(ctx, sql, boundArgs(args), domain.SourceBulkAPI); err != nil {
		end(err, false)
		return pgconn.CommandTag{}, err
	}
	tag, err := c.exec(ctx, sql, driverArgs(args)...)
	end(err, true)
	return tag, err
}

func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, end := c.begin(ctx, "Connection.Query", sql, domain.SourceBulkAPI)
	if err := c.rec.Capture(ctx, sql, boundArgs(args), domain.SourceBulkAPI); err != nil {
		end(err, false)
		return nil, err
	}
	rows, err := c.query(ctx, sql, driverArgs(args)...)
	end(err, true)
	if err != nil {
		return nil, err
	}
	return &recordedRows{Rows: rows, report: c.deferredFailure(ctx, sql, domain.SourceBulkAPI)}, nil
}

// QueryRow records and delegates. Driver errors surface from Scan, as with
// pgx, and are reported there; a fail-closed recording error surfaces from
// Scan too.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, end := c.begin(ctx, "Connection.QueryRow", sql, domain.SourceBulkAPI)
	if err := c.rec.Capture(ctx, sql, boundArgs(args), domain.SourceBulkAPI); err != nil {
		end(err, false)
		return errRow{err: err}
	}
	row := c.queryRow(ctx, sql, driverArgs(args)...)
	end(nil, true)
	return recordedRow{Row: row, report: c.deferredFailure(ctx, sql, domain.SourceBulkAPI)}
}

// ExecMany runs sql once per parameter set in a single batch. Only the first
// set is recorded. With no sets nothing is recorded or sent.
func (c *Connection) ExecMany(ctx context.Context, sql string, argSets [][]any) ([]pgconn.CommandTag, error) {
	if len(argSets) == 0 {
		return []pgconn.CommandTag{}, nil
	}

	ctx, end := c.begin(ctx, "Connection.ExecMany", sql, domain.SourceBulkAPIBulk)
	if err := c.rec.Capture(ctx, sql, boundArgs(argSets[0]), domain.SourceBulkAPIBulk); err != nil {
		end(err, false)
		return nil, err
	}

	tags, err := execBatch(ctx, c.sendBatch, sql, argSets)
	end(err, true)
	return tags, err
}

// CopyFrom streams rows with the COPY protocol. The record carries the COPY
// statement and the first row, and is written when that row is pulled from
// rowSrc. An empty source records nothing.
func (c *Connection) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	stmt := copyStatement(tableName, columnNames)
	ctx, end := c.begin(ctx, "Connection.CopyFrom", stmt, domain.SourceBulkAPIBulk)

	src := &sampledSource{
		CopyFromSource: rowSrc,
		sample: func(values []any) error {
			return c.rec.Capture(ctx, stmt, values, domain.SourceBulkAPIBulk)
		},
	}
	n, err := c.copyFrom(ctx, tableName, columnNames, src)
	if src.recordErr != nil {
		end(src.recordErr, false)
		return n, src.recordErr
	}
	end(err, true)
	return n, err
}

// SendBatch forwards to the pool unrecorded. Use ExecMany for recorded batches.
func (c *Connection) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return c.sendBatch(ctx, b)
}

func (c *Connection) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.live.Begin(ctx)
}

func (c *Connection) Ping(ctx context.Context) error {
	return c.live.Ping(ctx)
}

func (c *Connection) Stat() *pgxpool.Stat {
	return c.live.Stat()
}

// Raw returns the wrapped pool. Calls made on it are not recorded.
func (c *Connection) Raw() LivePool {
	return c.live
}

func (c *Connection) Close() {
	c.live.Close()
}

// execBatch queues one statement per parameter set and returns a command tag
// per set. It stops at the first failing statement.
func execBatch(ctx context.Context, send func(context.Context, *pgx.Batch) pgx.BatchResults, sql string, argSets [][]any) ([]pgconn.CommandTag, error) {
	batch := &pgx.Batch{}
	for _, args := range argSets {
		batch.Queue(sql, driverArgs(args)...)
	}

	br := send(ctx, batch)
	tags := make([]pgconn.CommandTag, 0, len(argSets))
	for range argSets {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return tags, err
		}
		tags = append(tags, tag)
	}
	if err := br.Close(); err != nil {
		return tags, err
	}
	return tags, nil
}

func copyStatement(tableName pgx.Identifier, columnNames []string) string {
	cols := make([]string, len(columnNames))
	for i, name := range columnNames {
		cols[i] = pgx.Identifier{name}.Sanitize()
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN", tableName.Sanitize(), strings.Join(cols, ", "))
}

// errRow is a pgx.Row whose Scan reports a recording failure.
type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
