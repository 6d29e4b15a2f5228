package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/f1-livetiming-go/log"
	"github.com/mpapenbr/f1-livetiming-go/version"
)

const stdoutEndpoint = "stdout"

type Telemetry struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *trace.TracerProvider
}

// SetupTelemetry installs global meter and tracer providers exporting
// to TelemetryEndpoint.
func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", "f1lt"),
			attribute.String("service.version", version.Version),
		))
	if err != nil {
		return nil, err
	}
	metricExporter, err := newMetricExporter(ctx)
	if err != nil {
		return nil, err
	}
	traceExporter, err := newTraceExporter(ctx)
	if err != nil {
		return nil, err
	}
	ret := &Telemetry{
		meterProvider: metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(metricExporter,
				metric.WithInterval(15*time.Second))),
		),
		tracerProvider: trace.NewTracerProvider(
			trace.WithResource(res),
			trace.WithBatcher(traceExporter),
		),
	}
	otel.SetMeterProvider(ret.meterProvider)
	otel.SetTracerProvider(ret.tracerProvider)
	return ret, nil
}

func newMetricExporter(ctx context.Context) (metric.Exporter, error) {
	if TelemetryEndpoint == stdoutEndpoint {
		return stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	}
	return otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
		otlpmetricgrpc.WithInsecure())
}

func newTraceExporter(ctx context.Context) (trace.SpanExporter, error) {
	if TelemetryEndpoint == stdoutEndpoint {
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(TelemetryEndpoint),
		otlptracegrpc.WithInsecure())
}

// Shutdown flushes pending data.
func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := errors.Join(
		t.meterProvider.Shutdown(ctx),
		t.tracerProvider.Shutdown(ctx))
	if err != nil {
		log.Warn("telemetry shutdown", log.ErrorField(err))
	}
}
