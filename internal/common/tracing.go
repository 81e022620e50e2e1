package common

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bobmcallan/sift"

var tracingEnabled atomic.Bool

// InitTracing installs a stdout span exporter when tracing is enabled.
// The returned function flushes and shuts the provider down; it is never nil.
func InitTracing(cfg TracingConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		tracingEnabled.Store(false)
		return noop, nil
	}

	var opts []stdouttrace.Option
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return noop, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "sift"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", GetVersion()),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	tracingEnabled.Store(true)

	return func(ctx context.Context) error {
		tracingEnabled.Store(false)
		return provider.Shutdown(ctx)
	}, nil
}

// StartSpan starts a span on the global tracer. With tracing disabled the
// global provider is a no-op, so this is always safe to call.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// TracingEnabled reports whether InitTracing installed an exporter.
func TracingEnabled() bool {
	return tracingEnabled.Load()
}
