package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

/*
LEARNING: TRACING A WEBSOCKET RELAY

HTTP requests get one root span each from the tracing middleware. WebSocket
frames are different: a connection lives for minutes and carries many
messages, so every inbound frame gets its own span ("Protocol.join_session",
"Protocol.drawing_update", ...) parented to the upgrade request.

Architecture:
  Relay → OpenTelemetry SDK → Jaeger Exporter → Jaeger Collector → Jaeger UI

With no collector configured the global provider stays the OpenTelemetry
no-op, so span calls in the hot path cost almost nothing.
*/

// ServiceVersion is reported as service.version on every span.
const ServiceVersion = "1.0.0"

// InitJaeger installs a tracer provider exporting to the Jaeger collector at
// endpoint. An empty endpoint leaves tracing disabled.
// Returns a cleanup function that should be called on shutdown.
func InitJaeger(serviceName, endpoint string, logger *slog.Logger) (func(context.Context) error, error) {
	if endpoint == "" {
		logger.Info("tracing disabled, JAEGER_ENDPOINT not set")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	// Learning: Resource identifies the relay in the Jaeger UI
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Learning: cursor_move frames arrive at pointer rate. Sampling on the
	// parent keeps a frame's span in the same decision as its connection.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)

	logger.Info("✓ Jaeger tracing initialized", "endpoint", endpoint)

	// Learning: Always flush traces on shutdown!
	return tp.Shutdown, nil
}
