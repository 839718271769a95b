// Package observability wires OpenTelemetry tracing. Spans are exported
// over OTLP HTTP to a local collector agent, which handles authentication
// and forwarding to whatever backend the deployment uses.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultEndpoint is the default local collector OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for tracing setup.
type Config struct {
	// Endpoint is the collector OTLP HTTP endpoint (default: localhost:4318).
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName identifies this service in the tracing backend.
	ServiceName string
}

// Setup installs a global tracer provider exporting to the configured
// collector and returns a shutdown function that flushes pending spans.
//
// Exporter creation failure disables tracing with a warning instead of
// failing startup: tracing is never worth refusing to serve over.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local agent, no TLS
	)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(tp)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)
	return tp.Shutdown, nil
}
