package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/alucardeht/triad/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{}, "dev", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), config.TracingConfig{Enabled: true, ServiceName: "triad-test"}, "dev", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("triad/test").Start(context.Background(), "orchestrator.execute",
		trace.WithSpanKind(trace.SpanKindServer))
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "orchestrator.execute")
	assert.Contains(t, buf.String(), "triad-test")
}

func TestSetupNilContext(t *testing.T) {
	_, err := Setup(nil, config.TracingConfig{Enabled: true}, "dev", nil)
	assert.ErrorIs(t, err, ErrNilContext)
}
