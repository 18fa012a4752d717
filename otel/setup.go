package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultServiceName = "commandry"

// SetupConfig configures process-wide telemetry.
type SetupConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector URL, e.g.
	// "http://localhost:4318". Empty disables span export.
	OTLPEndpoint string
	ServiceName  string
	// MetricReader, when set, receives metrics from the global meter provider.
	MetricReader sdkmetric.Reader
}

// Setup installs global tracer and meter providers and returns a function
// that flushes and shuts them down.
func Setup(ctx context.Context, cfg SetupConfig) (func(context.Context) error, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	var shutdowns []func(context.Context) error

	if endpoint := strings.TrimSpace(cfg.OTLPEndpoint); endpoint != "" {
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("otel: create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		otelapi.SetTracerProvider(tp)
		shutdowns = append(shutdowns, tp.Shutdown)
	}

	if cfg.MetricReader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(cfg.MetricReader),
			sdkmetric.WithResource(res),
		)
		otelapi.SetMeterProvider(mp)
		shutdowns = append(shutdowns, mp.Shutdown)
	}

	return func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			if err := shutdowns[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

// NewGlobalToolObserver builds a ToolObserver from the global providers.
func NewGlobalToolObserver() (*ToolObserver, error) {
	return NewToolObserver(
		otelapi.GetMeterProvider().Meter("commandry/tool"),
		otelapi.GetTracerProvider().Tracer("commandry/tool"),
	)
}
