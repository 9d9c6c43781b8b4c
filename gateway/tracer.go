// Tracer setup for the gateway's HTTP handler chain.
//
// Grounded on hanpama-protograph's internal/otel.Setup (exporter
// construction, resource attributes, TracerProvider wiring), adapted to this
// repo's otlptracehttp exporter (the teacher's go.mod carries the HTTP OTLP
// exporter, not the gRPC one protograph uses) and with the eventbus
// subscriber wiring dropped since this gateway reports via internal/events
// instead.
package gateway

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// InitTracer configures the global OpenTelemetry TracerProvider to export
// spans to endpoint via OTLP/HTTP, tagging every span with service as its
// resource's service.name. If endpoint is empty, tracing is a no-op and the
// returned shutdown func does nothing.
func InitTracer(ctx context.Context, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
