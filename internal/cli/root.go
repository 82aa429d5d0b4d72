package cli

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/guillermoBallester/querytrail/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Version   string
	Format    string // "json" | "text"
	Overrides config.Overrides

	flags globalFlags
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the querytrail CLI.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "querytrail",
		Short: "querytrail - a recording proxy for Postgres pools",
		Long: `querytrail wraps a pgx connection pool and records every statement sent
through it, with its bound parameters, caller and interception source, into
an embedded SQLite query log. The log can be browsed from the command line
or served to MCP clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.Overrides = opts.flags.overrides(cmd.Flags())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	opts.flags.register(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// globalFlags are the config overrides every command accepts.
type globalFlags struct {
	configFile      string
	storePath       string
	databaseURL     string
	logLevel        string
	onRecordError   string
	callerName      string
	policyFile      string
	transport       string
	httpAddr        string
	httpBearerToken string
	auditLog        string
	otel            bool
	allowRawFilter  bool

	poolMaxConns        int32
	poolMinConns        int32
	poolMaxConnLifetime time.Duration
}

func (f *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.configFile, "config", "", "path to YAML config file (env: CONFIG_FILE)")
	fs.StringVar(&f.storePath, "store", "", "SQLite query log path (env: STORE_PATH)")
	fs.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection string (env: DATABASE_URL)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (env: LOG_LEVEL)")
	fs.StringVar(&f.onRecordError, "on-record-error", "", "fail_open or fail_closed (env: ON_RECORD_ERROR)")
	fs.StringVar(&f.callerName, "caller-name", "", "caller name recorded instead of the host name (env: CALLER_NAME)")
	fs.StringVar(&f.policyFile, "policy-file", "", "path to parameter masking policy YAML (env: POLICY_FILE)")
	fs.StringVar(&f.transport, "transport", "", "MCP transport: stdio or http (env: TRANSPORT)")
	fs.StringVar(&f.httpAddr, "http-addr", "", "listen address for HTTP transport (env: HTTP_ADDR)")
	fs.StringVar(&f.httpBearerToken, "http-bearer-token", "", "bearer token for HTTP transport (env: HTTP_BEARER_TOKEN)")
	fs.StringVar(&f.auditLog, "audit-log", "", "path to NDJSON diagnostic log (env: AUDIT_LOG)")
	fs.BoolVar(&f.otel, "otel", false, "enable OpenTelemetry tracing and metrics (env: OTEL_ENABLED)")
	fs.BoolVar(&f.allowRawFilter, "allow-raw-filter", false, "expose the raw where filter to MCP clients (env: ALLOW_RAW_FILTER)")
	fs.Int32Var(&f.poolMaxConns, "pool-max-conns", 0, "maximum pool connections (env: POOL_MAX_CONNS)")
	fs.Int32Var(&f.poolMinConns, "pool-min-conns", 0, "minimum pool connections (env: POOL_MIN_CONNS)")
	fs.DurationVar(&f.poolMaxConnLifetime, "pool-max-conn-lifetime", 0, "maximum connection lifetime (env: POOL_MAX_CONN_LIFETIME)")
}

// overrides keeps only the flags that were set on the command line.
func (f *globalFlags) overrides(fs *pflag.FlagSet) config.Overrides {
	return config.Overrides{
		ConfigFile:          changed(fs, "config", f.configFile),
		StorePath:           changed(fs, "store", f.storePath),
		DatabaseURL:         changed(fs, "database-url", f.databaseURL),
		LogLevel:            changed(fs, "log-level", f.logLevel),
		OnRecordError:       changed(fs, "on-record-error", f.onRecordError),
		CallerName:          changed(fs, "caller-name", f.callerName),
		PolicyFile:          changed(fs, "policy-file", f.policyFile),
		Transport:           changed(fs, "transport", f.transport),
		HTTPAddr:            changed(fs, "http-addr", f.httpAddr),
		HTTPBearerToken:     changed(fs, "http-bearer-token", f.httpBearerToken),
		AuditLog:            changed(fs, "audit-log", f.auditLog),
		OTelEnabled:         f.otel,
		AllowRawFilter:      f.allowRawFilter,
		PoolMaxConns:        changed(fs, "pool-max-conns", f.poolMaxConns),
		PoolMinConns:        changed(fs, "pool-min-conns", f.poolMinConns),
		PoolMaxConnLifetime: changed(fs, "pool-max-conn-lifetime", f.poolMaxConnLifetime),
	}
}

func changed[T any](fs *pflag.FlagSet, name string, v T) *T {
	if fs.Lookup(name) == nil || !fs.Changed(name) {
		return nil
	}
	return &v
}

// parseFlags parses the global flags on their own.
func parseFlags(args []string) (config.Overrides, error) {
	var f globalFlags
	fs := pflag.NewFlagSet("querytrail", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}
	return f.overrides(fs), nil
}
