package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, s := range sr.Ended() {
		if s.Name() == name {
			return s
		}
	}
	require.Failf(t, "span not found", "no ended span named %q", name)
	return nil
}

func TestOrchestrator_SessionSpans(t *testing.T) {
	sr := recordSpans(t)
	ctx := context.Background()
	h := newHarness(t, t.TempDir(), Config{})

	_, err := h.recorder.Record(ctx, entity.Products, change.ActionCreate, "", entity.Payload{"name": "Aspirin"})
	require.NoError(t, err)

	_, err = h.orch.TriggerSync(ctx, Options{Reason: ReasonPeriodic})
	require.NoError(t, err)

	session := endedSpan(t, sr, "sync.session")
	assert.Equal(t, codes.Ok, session.Status().Code)

	for _, name := range []string{"sync.push", "sync.pull"} {
		child := endedSpan(t, sr, name)
		assert.Equal(t, session.SpanContext().SpanID(), child.Parent().SpanID(), name)
		assert.Equal(t, session.SpanContext().TraceID(), child.SpanContext().TraceID(), name)
	}

	attrs := map[string]any{}
	for _, kv := range session.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, string(ReasonPeriodic), attrs["sync.reason"])
	assert.Equal(t, int64(1), attrs["sync.pushed"])
	assert.Equal(t, int64(1), attrs["sync.pulled"])
}

func TestOrchestrator_SessionSpanRecordsPullFailure(t *testing.T) {
	sr := recordSpans(t)
	ctx := context.Background()
	h := newHarness(t, t.TempDir(), Config{})
	h.remote.setHook(func(op string, typ entity.Type, _ string) error {
		if op == "list" && typ == entity.Customers {
			return fmt.Errorf("%w: connection reset", ErrNetwork)
		}
		return nil
	})

	_, err := h.orch.TriggerSync(ctx, Options{})
	require.ErrorIs(t, err, ErrNetwork)

	session := endedSpan(t, sr, "sync.session")
	assert.Equal(t, codes.Error, session.Status().Code)
	assert.Contains(t, session.Status().Description, "customers")

	var exceptions int
	for _, e := range endedSpan(t, sr, "sync.pull").Events() {
		if e.Name == "exception" {
			exceptions++
		}
	}
	assert.Equal(t, 1, exceptions)
}
