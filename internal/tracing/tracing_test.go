package tracing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/roti-lab/auroral.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

// These tests replace the global provider, so none of them run in parallel.

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, noop.TracerProvider{}, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Enabled:     true,
		Exporter:    ExporterStdout,
		SampleRatio: 1,
		Writer:      &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	_, span := otel.Tracer("test").Start(context.Background(), "oval.run")
	span.End()
	ShutdownWithTimeout(shutdown, time.Second)

	assert.Contains(t, buf.String(), `"Name":"oval.run"`)
	assert.Contains(t, buf.String(), "auroral.report")
}

func TestInit_Invalid(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, SampleRatio: 2})
	assert.Error(t, err)

	_, err = Init(context.Background(), Config{Enabled: true, SampleRatio: 1, Exporter: "jaeger"})
	assert.Error(t, err)
}

func TestShutdownWithTimeout_Nil(t *testing.T) {
	ShutdownWithTimeout(nil, time.Millisecond)
}
