package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// rowsToValues drains rows into positional values. Returns an empty slice
// (not nil) when there are no rows.
func rowsToValues(rows pgx.Rows) ([][]any, error) {
	result := [][]any{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		result = append(result, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// rowsToMaps converts pgx.Rows into a slice of maps keyed by column name.
func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	result := []map[string]any{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = vals[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// recordedRows passes a result set through and reports the server error that
// pgx defers to Err. A failing INSERT run through Query returns no error
// until the rows are read or closed.
type recordedRows struct {
	pgx.Rows
	report func(error)
}

func (r *recordedRows) Next() bool {
	if r.Rows.Next() {
		return true
	}
	r.report(r.Rows.Err())
	return false
}

func (r *recordedRows) Close() {
	r.Rows.Close()
	r.report(r.Rows.Err())
}

func (r *recordedRows) Err() error {
	err := r.Rows.Err()
	r.report(err)
	return err
}

// recordedRow reports a QueryRow failure when Scan surfaces it. An empty
// result is not a failure.
type recordedRow struct {
	pgx.Row
	report func(error)
}

func (r recordedRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	if !errors.Is(err, pgx.ErrNoRows) {
		r.report(err)
	}
	return err
}
