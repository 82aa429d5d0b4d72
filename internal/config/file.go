package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML form of Config. Absent keys keep their defaults.
//
//	store_path: /var/lib/querytrail/log.db
//	on_record_error: fail_closed
//	identity_ttl: 5m
//	pool:
//	  max_conns: 10
type fileConfig struct {
	StorePath       *string  `yaml:"store_path"`
	DatabaseURL     *string  `yaml:"database_url"`
	LogLevel        *string  `yaml:"log_level"`
	OnRecordError   *string  `yaml:"on_record_error"`
	CallerName      *string  `yaml:"caller_name"`
	IdentityTTL     *string  `yaml:"identity_ttl"`
	PolicyFile      *string  `yaml:"policy_file"`
	AuditLog        *string  `yaml:"audit_log"`
	Transport       *string  `yaml:"transport"`
	HTTPAddr        *string  `yaml:"http_addr"`
	HTTPBearerToken *string  `yaml:"http_bearer_token"`
	AllowRawFilter  *bool    `yaml:"allow_raw_filter"`
	OTelEnabled     *bool    `yaml:"otel_enabled"`
	Pool            filePool `yaml:"pool"`
}

type filePool struct {
	MaxConns        *int32  `yaml:"max_conns"`
	MinConns        *int32  `yaml:"min_conns"`
	MaxConnLifetime *string `yaml:"max_conn_lifetime"`
}

// loadFile applies the YAML config file at path to cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&cfg.StorePath, fc.StorePath)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.CallerName, fc.CallerName)
	setString(&cfg.PolicyFile, fc.PolicyFile)
	setString(&cfg.AuditLog, fc.AuditLog)
	setString(&cfg.Transport, fc.Transport)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.HTTPBearerToken, fc.HTTPBearerToken)

	if fc.LogLevel != nil {
		level, err := parseLogLevel(*fc.LogLevel)
		if err != nil {
			return fmt.Errorf("config file: %w", err)
		}
		cfg.LogLevel = level
	}
	if fc.OnRecordError != nil {
		p, err := domain.ParseFailurePolicy(*fc.OnRecordError)
		if err != nil {
			return fmt.Errorf("config file: on_record_error: %w", err)
		}
		cfg.OnRecordError = p
	}
	if fc.IdentityTTL != nil {
		d, err := time.ParseDuration(*fc.IdentityTTL)
		if err != nil {
			return fmt.Errorf("config file: invalid identity_ttl %q: %w", *fc.IdentityTTL, err)
		}
		cfg.IdentityTTL = d
	}
	if fc.AllowRawFilter != nil {
		cfg.AllowRawFilter = *fc.AllowRawFilter
	}
	if fc.OTelEnabled != nil {
		cfg.OTelEnabled = *fc.OTelEnabled
	}

	if fc.Pool.MaxConns != nil {
		cfg.PoolMaxConns = *fc.Pool.MaxConns
	}
	if fc.Pool.MinConns != nil {
		cfg.PoolMinConns = *fc.Pool.MinConns
	}
	if fc.Pool.MaxConnLifetime != nil {
		d, err := time.ParseDuration(*fc.Pool.MaxConnLifetime)
		if err != nil {
			return fmt.Errorf("config file: invalid pool.max_conn_lifetime %q: %w", *fc.Pool.MaxConnLifetime, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
