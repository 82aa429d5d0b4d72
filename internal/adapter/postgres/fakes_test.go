package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// --- fake StatementRecorder ---

type capture struct {
	sql    string
	args   []any
	source domain.Source
}

type fakeRecorder struct {
	mu       sync.Mutex
	captures []capture
	failures []error
	err      error
}

func (f *fakeRecorder) Capture(_ context.Context, sql string, args []any, source domain.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.captures = append(f.captures, capture{sql: sql, args: args, source: source})
	return nil
}

func (f *fakeRecorder) ExecutionFailed(_ context.Context, _ string, _ domain.Source, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, err)
}

// --- fake pgx.Rows ---

type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	pos    int
	closed bool
	err    error
	tag    pgconn.CommandTag
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return r.tag }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.closed || r.pos >= len(r.data) {
		r.closed = true
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	if r.pos == 0 || r.pos > len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	vals, err := r.Values()
	if err != nil {
		return err
	}
	for i := range dest {
		if p, ok := dest[i].(*any); ok {
			*p = vals[i]
		}
	}
	return nil
}

// --- fake pgx.BatchResults ---

type fakeBatchResults struct {
	n      int
	read   int
	failAt int // 1-based; 0 means never
	err    error
	closed bool
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	b.read++
	if b.failAt > 0 && b.read == b.failAt {
		return pgconn.CommandTag{}, b.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) { return &fakeRows{}, nil }
func (b *fakeBatchResults) QueryRow() pgx.Row         { return errRow{err: pgx.ErrNoRows} }

func (b *fakeBatchResults) Close() error {
	b.closed = true
	return nil
}

// --- fake live pool / connection ---

type execCall struct {
	sql  string
	args []any
}

// fakeLive implements both LivePool and LiveCursor.
type fakeLive struct {
	mu sync.Mutex

	execs     []execCall
	queries   []execCall
	batches   []*pgx.Batch
	copied    [][]any
	execErr   error
	queryErr  error
	rowErr    error
	batchFail int
	rows      *fakeRows
	lastBatch *fakeBatchResults

	acquired int
	released int
	closed   bool
}

func (f *fakeLive) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeLive) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, execCall{sql: sql, args: args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows != nil {
		return f.rows, nil
	}
	return &fakeRows{tag: pgconn.NewCommandTag("INSERT 0 1")}, nil
}

func (f *fakeLive) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, execCall{sql: sql, args: args})
	if f.rowErr != nil {
		return errRow{err: f.rowErr}
	}
	return errRow{err: pgx.ErrNoRows}
}

func (f *fakeLive) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	f.lastBatch = &fakeBatchResults{n: b.Len(), failAt: f.batchFail, err: f.execErr}
	return f.lastBatch
}

func (f *fakeLive) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copied = append(f.copied, vals)
		n++
	}
	return n, src.Err()
}

func (f *fakeLive) Begin(context.Context) (pgx.Tx, error) { return nil, errors.New("not supported") }
func (f *fakeLive) Ping(context.Context) error            { return nil }
func (f *fakeLive) Stat() *pgxpool.Stat                   { return nil }

func (f *fakeLive) Acquire(context.Context) (LiveCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return f, nil
}

func (f *fakeLive) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeLive) Close() { f.closed = true }

var (
	_ LivePool   = (*fakeLive)(nil)
	_ LiveCursor = (*fakeLive)(nil)
)
