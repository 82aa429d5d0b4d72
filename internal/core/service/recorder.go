package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// QueryRecorder turns an intercepted call into a QueryRecord and appends it
// to the store. It is the single point every interception path calls into,
// and it runs inline on the caller's goroutine.
type QueryRecorder struct {
	store    port.RecordWriter
	identity port.IdentityResolver
	auditor  port.QueryAuditor
	logger   *slog.Logger
	policy   domain.FailurePolicy
	masker   port.ParamMasker
	tracer   trace.Tracer
	inst     port.Instrumentation
	now      func() time.Time
}

// RecorderOption configures optional QueryRecorder collaborators.
type RecorderOption func(*QueryRecorder)

// WithFailurePolicy sets what happens to the real call when recording fails.
func WithFailurePolicy(p domain.FailurePolicy) RecorderOption {
	return func(r *QueryRecorder) { r.policy = p }
}

// WithMasker masks bound values before they are rendered.
func WithMasker(m port.ParamMasker) RecorderOption {
	return func(r *QueryRecorder) { r.masker = m }
}

func WithTracer(t trace.Tracer) RecorderOption {
	return func(r *QueryRecorder) {
		if t != nil {
			r.tracer = t
		}
	}
}

func WithInstrumentation(inst port.Instrumentation) RecorderOption {
	return func(r *QueryRecorder) {
		if inst != nil {
			r.inst = inst
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *QueryRecorder) { r.now = now }
}

func NewQueryRecorder(store port.RecordWriter, identity port.IdentityResolver, auditor port.QueryAuditor, logger *slog.Logger, opts ...RecorderOption) *QueryRecorder {
	r := &QueryRecorder{
		store:    store,
		identity: identity,
		auditor:  auditor,
		logger:   logger,
		policy:   domain.FailOpen,
		tracer:   noop.NewTracerProvider().Tracer("noop"),
		inst:     port.NoopInstrumentation{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy reports the configured failure policy.
func (r *QueryRecorder) Policy() domain.FailurePolicy {
	return r.policy
}

// Record builds a QueryRecord for sql and its bound args and appends it to
// the store. The timestamp is taken before the store write.
func (r *QueryRecorder) Record(ctx context.Context, sql string, args []any, source domain.Source) (*domain.QueryRecord, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("%w %q", domain.ErrInvalidSource, source)
	}

	ctx, span := r.tracer.Start(ctx, "QueryRecorder.Record",
		trace.WithAttributes(
			attribute.String("db.statement", sql),
			attribute.String("querytrail.source", string(source)),
		),
	)
	defer span.End()

	start := time.Now()
	caller := r.identity.Resolve(ctx)

	values := domain.BoundValues(args)
	if r.masker != nil {
		values = r.masker.MaskParams(sql, values)
	}

	rec := domain.NewQueryRecord(sql, domain.RenderParams(values), r.now(), caller, source)
	err := r.store.Insert(ctx, &rec)
	r.inst.RecordRecordDuration(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("inserting query record: %w", err)
	}

	r.inst.IncrementRecordCount(ctx, string(source))
	span.SetAttributes(attribute.Int64("querytrail.record.id", rec.ID))
	return &rec, nil
}

// Capture records a statement and applies the failure policy. Recording
// failures always go to the log and the diagnostic channel; only under
// FailClosed are they returned, wrapped in domain.ErrRecordFailed.
func (r *QueryRecorder) Capture(ctx context.Context, sql string, args []any, source domain.Source) error {
	start := time.Now()
	_, err := r.Record(ctx, sql, args, source)
	if err == nil {
		return nil
	}

	r.inst.IncrementRecordErrors(ctx, string(source))
	r.logger.ErrorContext(ctx, "query record failed",
		slog.String("db.statement", sql),
		slog.String("querytrail.source", string(source)),
		slog.String("querytrail.policy", string(r.policy)),
		slog.String("error.type", "record_error"),
		slog.String("error.message", err.Error()),
	)
	r.auditor.Record(ctx, port.AuditEntry{
		Stage:      port.StageRecord,
		Source:     source,
		SQL:        sql,
		DurationMS: time.Since(start).Milliseconds(),
		Err:        err,
	})

	if r.policy == domain.FailClosed {
		return fmt.Errorf("%w: %w", domain.ErrRecordFailed, err)
	}
	return nil
}

// ExecutionFailed reports a driver error. The error itself is returned to
// the caller untouched by the proxy; this only makes it visible.
func (r *QueryRecorder) ExecutionFailed(ctx context.Context, sql string, source domain.Source, err error) {
	r.logger.WarnContext(ctx, "intercepted statement failed",
		slog.String("db.statement", sql),
		slog.String("querytrail.source", string(source)),
		slog.String("error.type", "execution_error"),
		slog.String("error.message", err.Error()),
	)
	r.auditor.Record(ctx, port.AuditEntry{
		Stage:  port.StageExecute,
		Source: source,
		SQL:    sql,
		Err:    err,
	})
}
