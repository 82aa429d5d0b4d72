package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures a Connection or Cursor.
type Option func(*interceptor)

func WithTracer(t trace.Tracer) Option {
	return func(i *interceptor) {
		if t != nil {
			i.tracer = t
		}
	}
}

func WithInstrumentation(inst port.Instrumentation) Option {
	return func(i *interceptor) {
		if inst != nil {
			i.inst = inst
		}
	}
}

// interceptor is shared by a Connection and every Cursor it hands out.
type interceptor struct {
	rec    port.StatementRecorder
	tracer trace.Tracer
	inst   port.Instrumentation
}

func newInterceptor(rec port.StatementRecorder, opts []Option) *interceptor {
	i := &interceptor{
		rec:    rec,
		tracer: noop.NewTracerProvider().Tracer("noop"),
		inst:   port.NoopInstrumentation{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// begin opens a span for op and returns the function that ends it. The end
// function reports execution errors on the diagnostic channel; recording
// errors have already been reported by the recorder.
func (i *interceptor) begin(ctx context.Context, op, sql string, source domain.Source) (context.Context, func(err error, executed bool)) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation.name", op),
			attribute.String("db.statement", sql),
			attribute.String("querytrail.source", string(source)),
		),
	)
	return ctx, func(err error, executed bool) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if executed {
				i.rec.ExecutionFailed(ctx, sql, source, err)
			}
		}
		span.End()
		i.inst.RecordInterceptDuration(ctx, op, float64(time.Since(start).Milliseconds()))
	}
}

// deferredFailure returns a reporter for errors pgx surfaces after the call
// that ran sql has returned: Rows.Err and Row.Scan. Only the first non-nil
// error is reported.
func (i *interceptor) deferredFailure(ctx context.Context, sql string, source domain.Source) func(error) {
	var once sync.Once
	return func(err error) {
		if err == nil {
			return
		}
		once.Do(func() {
			i.rec.ExecutionFailed(ctx, sql, source, err)
		})
	}
}
