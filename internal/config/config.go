package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
)

type Config struct {
	// Query log.
	StorePath     string               // SQLite file the query log lives in
	OnRecordError domain.FailurePolicy // what a recording failure does to the real call
	CallerName    string               // overrides the host name recorded as caller
	IdentityTTL   time.Duration        // how long a resolved caller identity is reused
	PolicyFile    string               // optional path to parameter masking YAML
	AuditLog      string               // path to NDJSON diagnostic log file

	// Database connection, used by the demo harness.
	DatabaseURL string

	// Logging.
	LogLevel slog.Level

	// Transport for `serve`.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http
	AllowRawFilter  bool   // expose the raw `where` argument on query_history

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	ConfigFile      *string
	StorePath       *string
	DatabaseURL     *string
	LogLevel        *string
	OnRecordError   *string
	CallerName      *string
	PolicyFile      *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	AuditLog        *string
	OTelEnabled     bool
	AllowRawFilter  bool

	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from defaults, an optional YAML file, environment
// variables and CLI overrides, in that order of increasing precedence, then
// validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	path := os.Getenv("CONFIG_FILE")
	if overrides.ConfigFile != nil {
		path = *overrides.ConfigFile
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireDatabaseURL reports an error when no database is configured.
// Only commands that open a live pool need one.
func (c *Config) RequireDatabaseURL() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var, config file or --database-url flag)")
	}
	return nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		StorePath:           "querytrail.db",
		OnRecordError:       domain.FailOpen,
		IdentityTTL:         time.Minute,
		LogLevel:            slog.LevelInfo,
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("ON_RECORD_ERROR"); v != "" {
		p, err := domain.ParseFailurePolicy(v)
		if err != nil {
			return fmt.Errorf("invalid ON_RECORD_ERROR value: %w", err)
		}
		cfg.OnRecordError = p
	}

	if v := os.Getenv("CALLER_NAME"); v != "" {
		cfg.CallerName = v
	}
	if v := os.Getenv("IDENTITY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IDENTITY_TTL value %q: %w", v, err)
		}
		cfg.IdentityTTL = d
	}

	if v := os.Getenv("POLICY_FILE"); v != "" {
		cfg.PolicyFile = v
	}
	if v := os.Getenv("AUDIT_LOG"); v != "" {
		cfg.AuditLog = v
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("HTTP_BEARER_TOKEN"); v != "" {
		cfg.HTTPBearerToken = v
	}

	for name, dst := range map[string]*bool{
		"OTEL_ENABLED":     &cfg.OTelEnabled,
		"ALLOW_RAW_FILTER": &cfg.AllowRawFilter,
	} {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", name, v, err)
			}
			*dst = b
		}
	}

	if err := loadPoolEnvVars(cfg); err != nil {
		return err
	}

	return nil
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.StorePath != nil {
		cfg.StorePath = *o.StorePath
	}
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.OnRecordError != nil {
		p, err := domain.ParseFailurePolicy(*o.OnRecordError)
		if err != nil {
			return fmt.Errorf("invalid --on-record-error value: %w", err)
		}
		cfg.OnRecordError = p
	}
	if o.CallerName != nil {
		cfg.CallerName = *o.CallerName
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}
	if o.PoolMaxConns != nil {
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	cfg.AllowRawFilter = cfg.AllowRawFilter || o.AllowRawFilter

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.StorePath == "" {
		return fmt.Errorf("STORE_PATH must not be empty")
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.IdentityTTL < 0 {
		return fmt.Errorf("IDENTITY_TTL must not be negative, got %s", cfg.IdentityTTL)
	}

	if cfg.PoolMaxConns <= 0 || cfg.PoolMinConns < 0 {
		return fmt.Errorf("pool sizes must be positive, got max %d min %d", cfg.PoolMaxConns, cfg.PoolMinConns)
	}
	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
