package port

import (
	"context"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

// RecordWriter appends records to the query log. Implementations must
// serialize concurrent calls so IDs stay unique and strictly increasing.
type RecordWriter interface {
	// Insert persists rec and sets rec.ID.
	Insert(ctx context.Context, rec *domain.QueryRecord) error
}

// RecordReader reads the query log.
type RecordReader interface {
	// History returns records newest first (timestamp, then id, descending),
	// narrowed by a raw backend predicate when where is non-empty.
	History(ctx context.Context, where string) ([]domain.QueryRecord, error)
	// Get returns domain.ErrNotFound when no record has the id.
	Get(ctx context.Context, id int64) (*domain.QueryRecord, error)
}

// RecordStore is the append-only query log.
type RecordStore interface {
	RecordWriter
	RecordReader
	Close() error
}
