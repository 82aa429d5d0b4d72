package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoResult is returned by fetch methods when no statement has been executed.
var ErrNoResult = errors.New("cursor has no result set")

// Cursor wraps one acquired connection for statement-level use. Execute and
// ExecuteMany record, then delegate, and return the cursor itself so a fetch
// can follow. Every parameter set of ExecuteMany is recorded.
//
// A Cursor holds at most one open result set. It is not safe for concurrent
// use; share the Connection and take a Cursor per goroutine instead.
type Cursor struct {
	conn LiveCursor
	*interceptor

	query     func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	sendBatch func(ctx context.Context, b *pgx.Batch) pgx.BatchResults

	rows pgx.Rows
	tags []pgconn.CommandTag

	closeOnce sync.Once
}

// NewCursor wraps an already acquired connection.
func NewCursor(conn LiveCursor, rec port.StatementRecorder, opts ...Option) *Cursor {
	return newCursor(conn, newInterceptor(rec, opts))
}

func newCursor(conn LiveCursor, i *interceptor) *Cursor {
	return &Cursor{
		conn:        conn,
		interceptor: i,
		query:       conn.Query,
		sendBatch:   conn.SendBatch,
	}
}

// Execute records sql, then runs it and keeps the result set for fetching.
// Any previous result set is closed first. A server error that pgx defers to
// the result set is reported once, by whichever of Next, FetchAll,
// CommandTag, Err or Close first observes it.
func (c *Cursor) Execute(ctx context.Context, sql string, args ...any) (*Cursor, error) {
	c.reset()

	ctx, end := c.begin(ctx, "Cursor.Execute", sql, domain.SourceCursor)
	if err := c.rec.Capture(ctx, sql, boundArgs(args), domain.SourceCursor); err != nil {
		end(err, false)
		return c, err
	}

	rows, err := c.query(ctx, sql, driverArgs(args)...)
	end(err, true)
	if err != nil {
		return c, err
	}
	c.rows = &recordedRows{Rows: rows, report: c.deferredFailure(ctx, sql, domain.SourceCursor)}
	return c, nil
}

// ExecuteMany records sql once per parameter set, then runs every set in a
// single batch. Command tags are available through CommandTag and
// RowsAffected; there is no result set to fetch.
func (c *Cursor) ExecuteMany(ctx context.Context, sql string, argSets [][]any) (*Cursor, error) {
	c.reset()
	if len(argSets) == 0 {
		return c, nil
	}

	ctx, end := c.begin(ctx, "Cursor.ExecuteMany", sql, domain.SourceCursorBulk)
	for _, args := range argSets {
		if err := c.rec.Capture(ctx, sql, boundArgs(args), domain.SourceCursorBulk); err != nil {
			end(err, false)
			return c, err
		}
	}

	tags, err := execBatch(ctx, c.sendBatch, sql, argSets)
	end(err, true)
	c.tags = tags
	return c, err
}

// Next advances the current result set.
func (c *Cursor) Next() bool {
	if c.rows == nil {
		return false
	}
	return c.rows.Next()
}

func (c *Cursor) Scan(dest ...any) error {
	if c.rows == nil {
		return ErrNoResult
	}
	return c.rows.Scan(dest...)
}

func (c *Cursor) Values() ([]any, error) {
	if c.rows == nil {
		return nil, ErrNoResult
	}
	return c.rows.Values()
}

// FetchOne returns the next row, or nil when the result set is exhausted.
func (c *Cursor) FetchOne() ([]any, error) {
	if c.rows == nil {
		return nil, ErrNoResult
	}
	if !c.rows.Next() {
		return nil, c.rows.Err()
	}
	return c.rows.Values()
}

// FetchAll returns the remaining rows of the result set.
func (c *Cursor) FetchAll() ([][]any, error) {
	if c.rows == nil {
		return nil, ErrNoResult
	}
	return rowsToValues(c.rows)
}

// FetchMaps returns the remaining rows keyed by column name.
func (c *Cursor) FetchMaps() ([]map[string]any, error) {
	if c.rows == nil {
		return nil, ErrNoResult
	}
	return rowsToMaps(c.rows)
}

func (c *Cursor) FieldDescriptions() []pgconn.FieldDescription {
	if c.rows == nil {
		return nil
	}
	return c.rows.FieldDescriptions()
}

// CommandTag returns the tag of the last statement. For Execute it closes
// the result set, since pgx only reports the tag once rows are drained.
func (c *Cursor) CommandTag() pgconn.CommandTag {
	if c.rows != nil {
		c.rows.Close()
		return c.rows.CommandTag()
	}
	if len(c.tags) > 0 {
		return c.tags[len(c.tags)-1]
	}
	return pgconn.CommandTag{}
}

// RowsAffected sums the rows affected by the last Execute or ExecuteMany.
func (c *Cursor) RowsAffected() int64 {
	if c.rows != nil {
		return c.CommandTag().RowsAffected()
	}
	var n int64
	for _, tag := range c.tags {
		n += tag.RowsAffected()
	}
	return n
}

// Err returns any error that occurred while reading the result set.
func (c *Cursor) Err() error {
	if c.rows == nil {
		return nil
	}
	return c.rows.Err()
}

func (c *Cursor) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Raw returns the wrapped connection. Calls made on it are not recorded.
func (c *Cursor) Raw() LiveCursor {
	return c.conn
}

// Close closes the open result set and releases the connection to its pool.
// It is safe to call more than once.
func (c *Cursor) Close() {
	c.closeOnce.Do(func() {
		c.reset()
		c.conn.Release()
	})
}

func (c *Cursor) reset() {
	if c.rows != nil {
		c.rows.Close()
		c.rows = nil
	}
	c.tags = nil
}
