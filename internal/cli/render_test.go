package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/service"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureBase = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func fixtureRecords() []domain.QueryRecord {
	caller := func(name string) domain.Caller { return domain.Caller{Name: name, Address: "10.0.0.7"} }

	update := domain.NewQueryRecord(
		"UPDATE accounts SET balance = balance - $1, updated_at = now() WHERE id = $2 AND balance >= $1",
		[]string{"100", "7"}, fixtureBase.Add(3*time.Minute), caller("web-2"), domain.SourceCursorBulk)
	update.ID = 4

	sel := domain.NewQueryRecord(
		"SELECT id, name\n  FROM users\n WHERE id = $1",
		[]string{"42"}, fixtureBase.Add(2*time.Minute+123456*time.Microsecond), caller("web-1"), domain.SourceCursor)
	sel.ID = 3

	ins := domain.NewQueryRecord(
		"INSERT INTO events (kind, payload) VALUES ($1, $2)",
		[]string{"'login'", "NULL"}, fixtureBase.Add(time.Minute), caller("etl-worker"), domain.SourceBulkAPIBulk)
	ins.ID = 2

	cp := domain.NewQueryRecord(
		`COPY "events" ("kind", "payload") FROM STDIN`,
		[]string{"'signup'", "'{}'"}, fixtureBase, caller("etl-worker"), domain.SourceBulkAPIBulk)
	cp.ID = 1

	return []domain.QueryRecord{update, sel, ins, cp}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestWriteHistoryText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistoryText(&buf, fixtureRecords()))

	newGoldie(t).Assert(t, "history_text", buf.Bytes())
}

func TestWriteHistoryText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistoryText(&buf, []domain.QueryRecord{}))
	assert.Equal(t, "no records\n", buf.String())
}

func TestWriteStatsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatsText(&buf, service.Summarize(fixtureRecords())))

	newGoldie(t).Assert(t, "stats_text", buf.Bytes())
}

func TestWriteStatsText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatsText(&buf, service.Summarize(nil)))

	newGoldie(t).Assert(t, "stats_text_empty", buf.Bytes())
}

func TestWriteJSON_History(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, fixtureRecords()[1:2]))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(3), got[0]["id"])
	assert.Equal(t, "cursor", got[0]["source"])
	assert.Equal(t, "2026-05-04T10:32:00.123456Z", got[0]["timestamp"])
	assert.Equal(t, []any{"42"}, got[0]["param_values"])
	assert.Equal(t, domain.StatementHash("SELECT id, name\n  FROM users\n WHERE id = $1"), got[0]["statement_hash"])
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM t", oneLine("  SELECT 1\n\tFROM   t  "))

	long := oneLine("SELECT " + string(bytes.Repeat([]byte("x"), 100)))
	assert.Len(t, []rune(long), maxStatementWidth)
	assert.True(t, len(long) > 3 && long[len(long)-3:] == "...")
}
