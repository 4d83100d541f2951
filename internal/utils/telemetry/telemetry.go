// Package telemetry устанавливает провайдер трейсов OpenTelemetry, в который
// движок синхронизации пишет свои сессии.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"golang.org/x/exp/slog"
)

const exportTimeout = 10 * time.Second

type Config struct {
	ServiceName string
	Environment string
	// Endpoint - адрес OTLP gRPC коллектора. Пустой отключает трейсинг.
	Endpoint string
}

type Telemetry struct {
	provider *sdktrace.TracerProvider
	log      *slog.Logger
}

// New отправляет спаны на cfg.Endpoint. Без адреса возвращает Telemetry,
// который оставляет глобальный no-op провайдер.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Telemetry, error) {
	log = log.With("component", "telemetry")
	if cfg.Endpoint == "" {
		log.Debug("tracing disabled")
		return &Telemetry{log: log}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	t := install(cfg, log, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	log.Debug("tracing enabled", "endpoint", cfg.Endpoint)
	return t, nil
}

// install создает провайдер и делает его глобальным.
func install(cfg Config, log *slog.Logger, opts ...sdktrace.TracerProviderOption) *Telemetry {
	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	)
	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Telemetry{provider: tp, log: log}
}

func (t *Telemetry) Enabled() bool {
	return t.provider != nil
}

// Shutdown отправляет накопленные спаны.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
