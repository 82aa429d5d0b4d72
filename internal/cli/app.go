package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guillermoBallester/querytrail/internal/adapter/identity"
	"github.com/guillermoBallester/querytrail/internal/adapter/policy"
	"github.com/guillermoBallester/querytrail/internal/adapter/sqlite"
	"github.com/guillermoBallester/querytrail/internal/audit"
	"github.com/guillermoBallester/querytrail/internal/config"
	"github.com/guillermoBallester/querytrail/internal/core/port"
	"github.com/guillermoBallester/querytrail/internal/core/service"
	"github.com/guillermoBallester/querytrail/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
)

const serviceName = "querytrail"

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Store
	auditor port.QueryAuditor
	tracer  trace.Tracer
	inst    *telemetry.Instruments
	otel    *telemetry.Provider
}

// newApp loads config and opens the query log. Logs go to stderr; stdout
// is reserved for command output and the MCP stdio transport.
func newApp(ctx context.Context, opts *RootOptions, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	a := &app{
		cfg: cfg,
		logger: slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})),
		auditor: audit.NoopAuditor{},
		tracer:  telemetry.NoopTracer(),
		inst:    telemetry.NoopInstruments(),
	}

	if cfg.OTelEnabled {
		p, err := telemetry.Init(ctx, telemetry.Settings{
			ServiceName:   serviceName,
			Version:       opts.Version,
			StorePath:     cfg.StorePath,
			FailurePolicy: string(cfg.OnRecordError),
		})
		if err != nil {
			return nil, fmt.Errorf("initializing telemetry: %w", err)
		}
		a.otel = p
		a.tracer = telemetry.Tracer()
		a.inst = telemetry.NewInstruments()
		a.logger.Info("opentelemetry enabled")
	}

	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.auditor = fa
	}

	st, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening query log: %w", err)
	}
	a.store = st

	return a, nil
}

// recorder builds the QueryRecorder that proxies write through.
func (a *app) recorder() (*service.QueryRecorder, error) {
	opts := []service.RecorderOption{
		service.WithFailurePolicy(a.cfg.OnRecordError),
		service.WithTracer(a.tracer),
		service.WithInstrumentation(a.inst),
	}

	if a.cfg.PolicyFile != "" {
		pol, err := policy.LoadFromFile(a.cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("loading policy: %w", err)
		}
		opts = append(opts, service.WithMasker(policy.NewMasker(pol)))
		a.logger.Info("masking policy loaded", slog.String("file", a.cfg.PolicyFile))
	}

	resolver := identity.NewResolver(a.logger,
		identity.WithName(a.cfg.CallerName),
		identity.WithTTL(a.cfg.IdentityTTL),
	)

	return service.NewQueryRecorder(a.store, resolver, a.auditor, a.logger, opts...), nil
}

func (a *app) history() *service.HistoryService {
	return service.NewHistoryService(a.store)
}

// Close releases everything newApp opened.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing query log: %w", err))
		}
	}
	if err := a.auditor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing audit log: %w", err))
	}
	if a.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
