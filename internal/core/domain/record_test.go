package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementHash_Deterministic(t *testing.T) {
	t.Parallel()
	a := StatementHash("SELECT 1")
	assert.Equal(t, a, StatementHash("SELECT 1"))
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, StatementHash("SELECT 2"))
	assert.NotEqual(t, a, StatementHash("select 1"))
	// sha256("") is a well-known constant.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", StatementHash(""))
}

func TestNewQueryRecord(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.FixedZone("CET", 3600))
	caller := Caller{Name: "host-a", Address: "10.0.0.5"}

	rec := NewQueryRecord("INSERT INTO t VALUES ($1)", []string{"5"}, at, caller, SourceCursor)

	assert.Zero(t, rec.ID)
	assert.Equal(t, "INSERT INTO t VALUES ($1)", rec.RawStatement)
	assert.Equal(t, rec.RawStatement, rec.NormalizedStatement)
	assert.Equal(t, StatementHash(rec.RawStatement), rec.StatementHash)
	assert.Equal(t, []string{"5"}, rec.ParamValues)
	assert.Equal(t, time.UTC, rec.Timestamp.Location())
	assert.Equal(t, 123456000, rec.Timestamp.Nanosecond())
	assert.Equal(t, "host-a", rec.CallerName)
	assert.Equal(t, "10.0.0.5", rec.CallerAddress)
	assert.Equal(t, SourceCursor, rec.Source)
	assert.Equal(t, StatementInsert, rec.StatementType())
}

func TestNewQueryRecord_NilParams(t *testing.T) {
	t.Parallel()
	rec := NewQueryRecord("SELECT 1", nil, time.Now(), Caller{}, SourceBulkAPI)
	assert.NotNil(t, rec.ParamValues)
	assert.Empty(t, rec.ParamValues)
}

func TestParseSource(t *testing.T) {
	t.Parallel()
	for _, s := range Sources {
		got, err := ParseSource(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseSource("pandas")
	assert.True(t, errors.Is(err, ErrInvalidSource))
}

func TestParseFailurePolicy(t *testing.T) {
	t.Parallel()
	p, err := ParseFailurePolicy(" FAIL_CLOSED ")
	require.NoError(t, err)
	assert.Equal(t, FailClosed, p)

	_, err = ParseFailurePolicy("retry")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
