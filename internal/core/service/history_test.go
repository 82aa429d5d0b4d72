package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock RecordReader ---

type mockReader struct {
	records   []domain.QueryRecord
	err       error
	lastWhere string
}

func (m *mockReader) History(_ context.Context, where string) ([]domain.QueryRecord, error) {
	m.lastWhere = where
	return m.records, m.err
}

func (m *mockReader) Get(_ context.Context, id int64) (*domain.QueryRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func newTestHistory(r *mockReader) *HistoryService {
	s := NewHistoryService(r)
	s.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestHistoryService_Predicate(t *testing.T) {
	svc := newTestHistory(&mockReader{})

	tests := []struct {
		name  string
		query domain.HistoryQuery
		want  string
	}{
		{
			name:  "empty",
			query: domain.HistoryQuery{},
			want:  "",
		},
		{
			name:  "last hour",
			query: domain.HistoryQuery{Range: domain.RangeLastHour},
			want:  "timestamp >= '2026-04-01 11:00:00.000000'",
		},
		{
			name:  "select only",
			query: domain.HistoryQuery{Type: domain.StatementSelect},
			want:  "UPPER(LTRIM(raw_statement, ' ' || char(9) || char(10) || char(13))) LIKE 'SELECT%'",
		},
		{
			name:  "caller is quoted",
			query: domain.HistoryQuery{Caller: "o'host"},
			want:  "caller_name = 'o''host'",
		},
		{
			name:  "source and raw where",
			query: domain.HistoryQuery{Source: domain.SourceCursorBulk, Where: "id > 3"},
			want:  "source = 'cursor_bulk' AND (id > 3)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Predicate(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoryService_Predicate_Other(t *testing.T) {
	svc := newTestHistory(&mockReader{})

	got, err := svc.Predicate(domain.HistoryQuery{Type: domain.StatementOther})
	require.NoError(t, err)
	assert.True(t, len(got) > 0)
	assert.Contains(t, got, "NOT (")
	for _, typ := range domain.ClassifiedTypes {
		assert.Contains(t, got, "LIKE '"+string(typ)+"%'")
	}
}

func TestHistoryService_Predicate_Invalid(t *testing.T) {
	svc := newTestHistory(&mockReader{})

	_, err := svc.Predicate(domain.HistoryQuery{Type: "MERGE"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatementType)

	_, err = svc.Predicate(domain.HistoryQuery{Source: "pandas"})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestHistoryService_Search_Limit(t *testing.T) {
	r := &mockReader{records: []domain.QueryRecord{{ID: 3}, {ID: 2}, {ID: 1}}}
	svc := newTestHistory(r)

	got, err := svc.Search(context.Background(), domain.HistoryQuery{Limit: 2, Caller: "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "caller_name = 'a'", r.lastWhere)
}

func TestHistoryService_Search_ReaderError(t *testing.T) {
	svc := newTestHistory(&mockReader{err: errors.New("no such column: foo")})

	_, err := svc.Search(context.Background(), domain.HistoryQuery{Where: "foo = 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such column")
}

func TestHistoryService_Get(t *testing.T) {
	svc := newTestHistory(&mockReader{records: []domain.QueryRecord{{ID: 9, RawStatement: "SELECT 1"}}})

	rec, err := svc.Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", rec.RawStatement)

	_, err = svc.Get(context.Background(), 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	rec := func(id int64, stmt, caller string, src domain.Source, offset time.Duration) domain.QueryRecord {
		return domain.QueryRecord{
			ID:            id,
			RawStatement:  stmt,
			StatementHash: domain.StatementHash(stmt),
			CallerName:    caller,
			Source:        src,
			Timestamp:     base.Add(offset),
		}
	}
	records := []domain.QueryRecord{
		rec(4, "SELECT 1", "b", domain.SourceCursor, 4*time.Hour),
		rec(3, "SELECT 1", "a", domain.SourceCursor, 2*time.Hour),
		rec(2, "INSERT INTO t VALUES ($1)", "a", domain.SourceBulkAPIBulk, time.Hour),
		rec(1, "DROP TABLE t", "a", domain.SourceBulkAPI, 0),
	}

	st := Summarize(records)

	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 2, st.UniqueCallers)
	assert.InDelta(t, 1.0, st.QueriesPerHour, 0.0001)
	assert.Equal(t, base, *st.First)
	assert.Equal(t, base.Add(4*time.Hour), *st.Last)
	assert.Equal(t, 2, st.ByType[domain.StatementSelect])
	assert.Equal(t, 1, st.ByType[domain.StatementInsert])
	assert.Equal(t, 1, st.ByType[domain.StatementOther])
	assert.Equal(t, 2, st.BySource[domain.SourceCursor])
	require.Len(t, st.TopStatements, 3)
	assert.Equal(t, "SELECT 1", st.TopStatements[0].Statement)
	assert.Equal(t, 2, st.TopStatements[0].Count)
	assert.Equal(t, []domain.CallerCount{{CallerName: "a", Count: 3}, {CallerName: "b", Count: 1}}, st.ByCaller)
}

func TestSummarize_Empty(t *testing.T) {
	st := Summarize(nil)
	assert.Equal(t, 0, st.Total)
	assert.Nil(t, st.First)
	assert.Empty(t, st.TopStatements)
}

func TestHistoryService_Stats_IgnoresLimit(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	r := &mockReader{records: []domain.QueryRecord{
		{ID: 2, RawStatement: "SELECT 1", StatementHash: "h", Timestamp: now, CallerName: "a", Source: domain.SourceCursor},
		{ID: 1, RawStatement: "SELECT 1", StatementHash: "h", Timestamp: now, CallerName: "a", Source: domain.SourceCursor},
	}}
	svc := newTestHistory(r)

	st, err := svc.Stats(context.Background(), domain.HistoryQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.InDelta(t, 2.0, st.QueriesPerHour, 0.0001)
}
