package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

// Insert appends rec and sets rec.ID to the assigned row id.
// Concurrent callers are serialized; ids are unique and strictly increasing.
func (s *Store) Insert(ctx context.Context, rec *domain.QueryRecord) error {
	params := rec.ParamValues
	if params == nil {
		params = []string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("write record: marshal params: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log
		(raw_statement, normalized_statement, statement_hash, param_values, timestamp, caller_name, caller_address, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RawStatement,
		rec.NormalizedStatement,
		rec.StatementHash,
		string(paramsJSON),
		rec.Timestamp.UTC().Format(domain.TimestampLayout),
		rec.CallerName,
		rec.CallerAddress,
		string(rec.Source),
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("write record: last insert id: %w", err)
	}
	rec.ID = id
	return nil
}
