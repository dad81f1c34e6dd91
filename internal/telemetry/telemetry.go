// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/alucardeht/triad/internal/config"
)

type ShutdownFunc func(context.Context) error

var ErrNilContext = errors.New("telemetry: nil context")

// Setup exports spans to out, or stderr when out is nil. With tracing
// disabled it installs nothing and returns a no-op shutdown.
func Setup(ctx context.Context, cfg config.TracingConfig, version string, out io.Writer) (ShutdownFunc, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	if out == nil {
		out = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "triad"
	}
	res := resource.NewWithAttributes("",
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
