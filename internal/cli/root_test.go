package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/guillermoBallester/querytrail/internal/adapter/sqlite"
	"github.com/guillermoBallester/querytrail/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"CONFIG_FILE", "STORE_PATH", "DATABASE_URL", "LOG_LEVEL", "ON_RECORD_ERROR",
	"CALLER_NAME", "IDENTITY_TTL", "POLICY_FILE", "AUDIT_LOG", "TRANSPORT",
	"HTTP_ADDR", "HTTP_BEARER_TOKEN", "OTEL_ENABLED", "ALLOW_RAW_FILTER",
	"POOL_MAX_CONNS", "POOL_MIN_CONNS", "POOL_MAX_CONN_LIFETIME",
}

// runCLI executes the root command with a clean environment.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}

	cmd := NewRootCommand("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedStore writes the fixture records oldest first so ids match.
func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ql.db")
	st, err := sqlite.Open(path)
	require.NoError(t, err)
	defer st.Close()

	records := fixtureRecords()
	for i := len(records) - 1; i >= 0; i-- {
		require.NoError(t, st.Insert(context.Background(), &records[i]))
	}
	return path
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o config.Overrides)
	}{
		{
			name: "no flags",
			args: []string{},
			check: func(t *testing.T, o config.Overrides) {
				assert.False(t, o.OTelEnabled)
				assert.False(t, o.AllowRawFilter)
				assert.Nil(t, o.DatabaseURL)
				assert.Nil(t, o.StorePath)
				assert.Nil(t, o.PoolMaxConns)
			},
		},
		{
			name: "store",
			args: []string{"--store", "/data/ql.db"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.StorePath)
				assert.Equal(t, "/data/ql.db", *o.StorePath)
			},
		},
		{
			name: "database-url",
			args: []string{"--database-url", "postgres://localhost:5432/test"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.DatabaseURL)
				assert.Equal(t, "postgres://localhost:5432/test", *o.DatabaseURL)
			},
		},
		{
			name: "on-record-error",
			args: []string{"--on-record-error", "fail_closed"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.OnRecordError)
				assert.Equal(t, "fail_closed", *o.OnRecordError)
			},
		},
		{
			name: "caller-name set to empty is still an override",
			args: []string{"--caller-name", ""},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.CallerName)
				assert.Equal(t, "", *o.CallerName)
			},
		},
		{
			name: "transport http with addr and token",
			args: []string{"--transport", "http", "--http-addr", ":9090", "--http-bearer-token", "tok"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.Transport)
				assert.Equal(t, "http", *o.Transport)
				require.NotNil(t, o.HTTPAddr)
				assert.Equal(t, ":9090", *o.HTTPAddr)
				require.NotNil(t, o.HTTPBearerToken)
				assert.Equal(t, "tok", *o.HTTPBearerToken)
			},
		},
		{
			name: "otel and raw filter",
			args: []string{"--otel", "--allow-raw-filter"},
			check: func(t *testing.T, o config.Overrides) {
				assert.True(t, o.OTelEnabled)
				assert.True(t, o.AllowRawFilter)
			},
		},
		{
			name: "pool settings",
			args: []string{"--pool-max-conns", "20", "--pool-min-conns", "2", "--pool-max-conn-lifetime", "1h"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.PoolMaxConns)
				assert.Equal(t, int32(20), *o.PoolMaxConns)
				require.NotNil(t, o.PoolMinConns)
				assert.Equal(t, int32(2), *o.PoolMinConns)
				require.NotNil(t, o.PoolMaxConnLifetime)
				assert.Equal(t, time.Hour, *o.PoolMaxConnLifetime)
			},
		},
		{
			name: "audit-log",
			args: []string{"--audit-log", "/tmp/audit.ndjson"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.AuditLog)
				assert.Equal(t, "/tmp/audit.ndjson", *o.AuditLog)
			},
		},
		{
			name: "log-level",
			args: []string{"--log-level", "debug"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.LogLevel)
				assert.Equal(t, "debug", *o.LogLevel)
			},
		},
		{
			name: "policy-file and config",
			args: []string{"--policy-file", "policy.yaml", "--config", "querytrail.yaml"},
			check: func(t *testing.T, o config.Overrides) {
				require.NotNil(t, o.PolicyFile)
				assert.Equal(t, "policy.yaml", *o.PolicyFile)
				require.NotNil(t, o.ConfigFile)
				assert.Equal(t, "querytrail.yaml", *o.ConfigFile)
			},
		},
		{
			name:    "bad duration returns error",
			args:    []string{"--pool-max-conn-lifetime", "forever"},
			wantErr: true,
		},
		{
			name:    "unknown flag returns error",
			args:    []string{"--unknown-flag"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, overrides)
			}
		})
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := runCLI(t, "--format", "xml", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "querytrail 1.2.3")

	out, err = runCLI(t, "version", "--format", "json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "1.2.3", v["version"])
}

func TestHistoryCommand(t *testing.T) {
	path := seedStore(t)

	out, err := runCLI(t, "history", "--store", path)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "history_text", []byte(out))
}

func TestHistoryCommand_FiltersAndJSON(t *testing.T) {
	path := seedStore(t)

	out, err := runCLI(t, "history", "--store", path, "--type", "insert", "--format", "json")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0]["id"])
	assert.Equal(t, "bulk_api_bulk", got[0]["source"])

	out, err = runCLI(t, "history", "--store", path, "--caller", "etl-worker", "--limit", "1", "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0]["id"])
}

func TestHistoryCommand_InvalidArguments(t *testing.T) {
	path := seedStore(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"limit", []string{"--limit", "0"}, "invalid limit"},
		{"range", []string{"--range", "yesterday"}, "invalid time range"},
		{"type", []string{"--type", "merge"}, "invalid statement type"},
		{"source", []string{"--source", "orm"}, "invalid source"},
		{"where", []string{"--where", "no_such_column = 1"}, "no such column"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, append([]string{"history", "--store", path}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStatsCommand(t *testing.T) {
	path := seedStore(t)

	out, err := runCLI(t, "stats", "--store", path)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "stats_text", []byte(out))
}

func TestStatsCommand_EmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")

	out, err := runCLI(t, "stats", "--store", path)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "stats_text_empty", []byte(out))
}

func TestDemoCommand_RequiresDatabaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ql.db")

	_, err := runCLI(t, "demo", "--store", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestServeCommand_HTTPRequiresToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ql.db")

	_, err := runCLI(t, "serve", "--store", path, "--transport", "http")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_BEARER_TOKEN")
}
