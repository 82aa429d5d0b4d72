package postgres

import "github.com/jackc/pgx/v5"

// sampledSource passes rows through to COPY and hands the first row to
// sample before it is sent. A sample error aborts the copy.
type sampledSource struct {
	pgx.CopyFromSource
	sample    func(values []any) error
	sampled   bool
	recordErr error
}

func (s *sampledSource) Values() ([]any, error) {
	values, err := s.CopyFromSource.Values()
	if err != nil || s.sampled {
		return values, err
	}
	s.sampled = true
	if err := s.sample(values); err != nil {
		s.recordErr = err
		return nil, err
	}
	return values, nil
}

func (s *sampledSource) Err() error {
	if s.recordErr != nil {
		return s.recordErr
	}
	return s.CopyFromSource.Err()
}
