package port

import "context"

// Instrumentation records application-level metrics.
type Instrumentation interface {
	RecordRecordDuration(ctx context.Context, ms float64)
	IncrementRecordCount(ctx context.Context, source string)
	IncrementRecordErrors(ctx context.Context, source string)
	RecordInterceptDuration(ctx context.Context, op string, ms float64)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) RecordRecordDuration(context.Context, float64)            {}
func (NoopInstrumentation) IncrementRecordCount(context.Context, string)             {}
func (NoopInstrumentation) IncrementRecordErrors(context.Context, string)            {}
func (NoopInstrumentation) RecordInterceptDuration(context.Context, string, float64) {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)              {}
