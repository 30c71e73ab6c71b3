// Package tracing wires OpenTelemetry tracing for the advisor pipeline.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer used across the module.
const InstrumentationName = "github.com/okian/admit"

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

type options struct {
	exporter sdktrace.SpanExporter
	output   io.Writer
}

// Option applies a configuration option to Setup.
type Option func(*options)

// WithExporter installs a custom exporter, e.g. tracetest.NewInMemoryExporter.
func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) {
		if exp != nil {
			o.exporter = exp
		}
	}
}

// WithOutput sets where the default stdout exporter writes.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// Setup installs a global SDK tracer provider and returns its shutdown func.
// Without WithExporter the spans are pretty-printed to stderr.
func Setup(_ context.Context, opts ...Option) (func(context.Context) error, error) {
	o := options{output: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exporter == nil {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(o.output), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		o.exporter = exp
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(o.exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
