package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/querytrail"

// Instruments holds pre-created OTel metric instruments. It implements
// port.Instrumentation.
type Instruments struct {
	RecordCount       metric.Int64Counter
	RecordErrors      metric.Int64Counter
	RecordDuration    metric.Float64Histogram
	InterceptDuration metric.Float64Histogram
	ToolDuration      metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return newInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return newInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	recordCount, _ := meter.Int64Counter("querytrail.record.count",
		metric.WithDescription("Query records appended to the log"),
	)
	recordErrors, _ := meter.Int64Counter("querytrail.record.errors",
		metric.WithDescription("Query records that failed to be written"),
	)
	recordDuration, _ := meter.Float64Histogram("querytrail.record.duration",
		metric.WithDescription("Time to build and store one query record in milliseconds"),
		metric.WithUnit("ms"),
	)
	interceptDuration, _ := meter.Float64Histogram("querytrail.intercept.duration",
		metric.WithDescription("Intercepted call duration, recording included, in milliseconds"),
		metric.WithUnit("ms"),
	)
	toolDuration, _ := meter.Float64Histogram("querytrail.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		RecordCount:       recordCount,
		RecordErrors:      recordErrors,
		RecordDuration:    recordDuration,
		InterceptDuration: interceptDuration,
		ToolDuration:      toolDuration,
	}
}

func (i *Instruments) RecordRecordDuration(ctx context.Context, ms float64) {
	i.RecordDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementRecordCount(ctx context.Context, source string) {
	i.RecordCount.Add(ctx, 1, metric.WithAttributes(attribute.String("querytrail.source", source)))
}

func (i *Instruments) IncrementRecordErrors(ctx context.Context, source string) {
	i.RecordErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("querytrail.source", source)))
}

func (i *Instruments) RecordInterceptDuration(ctx context.Context, op string, ms float64) {
	i.InterceptDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("db.operation.name", op)))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
