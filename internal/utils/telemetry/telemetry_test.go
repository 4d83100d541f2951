package telemetry

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"golang.org/x/exp/slog"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func restoreGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestNew_DisabledWithoutEndpoint(t *testing.T) {
	restoreGlobalProvider(t)
	prev := otel.GetTracerProvider()

	tel, err := New(context.Background(), Config{ServiceName: "pharmasync-client"}, newTestLogger())
	require.NoError(t, err)

	assert.False(t, tel.Enabled())
	assert.Same(t, prev, otel.GetTracerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_WithEndpoint(t *testing.T) {
	restoreGlobalProvider(t)
	ctx := context.Background()

	tel, err := New(ctx, Config{ServiceName: "pharmasync-client", Endpoint: "localhost:4317"}, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })
	assert.True(t, tel.Enabled())

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
}

func TestInstall_ExportsGlobalSpans(t *testing.T) {
	restoreGlobalProvider(t)
	ctx := context.Background()
	sr := tracetest.NewSpanRecorder()

	tel := install(Config{ServiceName: "pharmasync-client", Environment: "local"}, newTestLogger(),
		sdktrace.WithSpanProcessor(sr))

	_, span := otel.Tracer("pharmasync/engine").Start(ctx, "sync.session")
	span.End()
	require.NoError(t, tel.Shutdown(ctx))

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "sync.session", ended[0].Name())
	assert.Contains(t, ended[0].Resource().Attributes(), semconv.ServiceName("pharmasync-client"))
}
