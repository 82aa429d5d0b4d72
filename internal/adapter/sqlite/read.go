package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

const selectColumns = `
	SELECT id, raw_statement, normalized_statement, statement_hash, param_values,
	       timestamp, caller_name, caller_address, source
	FROM query_log`

// History returns records newest first. where is an optional raw SQLite
// predicate over the query_log columns; it is not validated.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) History(ctx context.Context, where string) ([]domain.QueryRecord, error) {
	query := selectColumns
	if where != "" {
		query += "\n\tWHERE " + where
	}
	query += "\n\tORDER BY timestamp DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []domain.QueryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Get returns the record with the given id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*domain.QueryRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+"\n\tWHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.QueryRecord, error) {
	var (
		rec        domain.QueryRecord
		paramsJSON string
		ts         string
		source     string
	)
	err := row.Scan(
		&rec.ID,
		&rec.RawStatement,
		&rec.NormalizedStatement,
		&rec.StatementHash,
		&paramsJSON,
		&ts,
		&rec.CallerName,
		&rec.CallerAddress,
		&source,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan record: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &rec.ParamValues); err != nil {
		return rec, fmt.Errorf("record %d: unmarshal params: %w", rec.ID, err)
	}
	if rec.ParamValues == nil {
		rec.ParamValues = []string{}
	}

	rec.Timestamp, err = time.ParseInLocation(domain.TimestampLayout, ts, time.UTC)
	if err != nil {
		return rec, fmt.Errorf("record %d: parse timestamp: %w", rec.ID, err)
	}
	rec.Source = domain.Source(source)
	return rec, nil
}
