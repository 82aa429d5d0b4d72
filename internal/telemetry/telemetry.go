package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracerName scopes every span querytrail emits.
const tracerName = "github.com/guillermoBallester/querytrail"

// Settings describes the querytrail process the exported telemetry belongs to.
type Settings struct {
	ServiceName string
	Version     string

	// StorePath and FailurePolicy are attached to the resource so traces from
	// processes writing different query logs can be told apart.
	StorePath     string
	FailurePolicy string
}

func (s Settings) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(s.ServiceName),
		semconv.ServiceVersion(s.Version),
	}
	if s.StorePath != "" {
		attrs = append(attrs, attribute.String("querytrail.store.path", s.StorePath))
	}
	if s.FailurePolicy != "" {
		attrs = append(attrs, attribute.String("querytrail.on_record_error", s.FailurePolicy))
	}
	return attrs
}

// Provider owns the exporters started by Init.
type Provider struct {
	shutdown []func(context.Context) error
}

// Init registers global trace and metric providers that export over OTLP
// gRPC. The SDK reads OTEL_EXPORTER_OTLP_ENDPOINT and friends itself.
func Init(ctx context.Context, s Settings) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithAttributes(s.attributes()...),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	p := &Provider{}

	tp, err := newTracerProvider(ctx, res)
	if err != nil {
		return nil, err
	}
	p.shutdown = append(p.shutdown, tp.Shutdown)

	mp, err := newMeterProvider(ctx, res)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}
	p.shutdown = append(p.shutdown, mp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	// Only the HTTP transport of `querytrail serve` carries trace headers.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return p, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	), nil
}

// Shutdown flushes pending spans and metrics, newest provider first.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		if err := p.shutdown[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

// Tracer returns the querytrail tracer from the global TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// NoopTracer is used when telemetry is disabled.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}
