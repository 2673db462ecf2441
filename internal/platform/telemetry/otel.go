package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"pixelbooth/internal/platform/config"
)

const (
	serviceName    = "pixelbooth"
	serviceVersion = "0.1.0"
)

// Exporter pushes kiosk counters to an OTLP collector.
type Exporter struct {
	provider      *sdkmetric.MeterProvider
	sessions      metric.Int64Counter
	idleResets    metric.Int64Counter
	generations   metric.Int64Counter
	genFailures   metric.Int64Counter
	printCopies   metric.Int64Counter
	printOutcomes metric.Int64Counter
}

// New returns an OTLP exporter when enabled, otherwise Noop.
func New(ctx context.Context, cfg config.OTelConfig) (Recorder, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return Noop{}, nil
	}
	return NewExporter(ctx, cfg)
}

func NewExporter(ctx context.Context, cfg config.OTelConfig) (*Exporter, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts,
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlpmetricgrpc.WithInsecure(),
		)
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	return newExporter(provider)
}

func newExporter(provider *sdkmetric.MeterProvider) (*Exporter, error) {
	meter := provider.Meter(serviceName)
	e := &Exporter{provider: provider}

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
		unit   string
	}{
		{&e.sessions, "pixelbooth_sessions_total", "Sessions started by visitors", "{session}"},
		{&e.idleResets, "pixelbooth_idle_resets_total", "Sessions reset by the idle monitor", "{session}"},
		{&e.generations, "pixelbooth_generations_total", "Generation jobs submitted", "{job}"},
		{&e.genFailures, "pixelbooth_generation_failures_total", "Generation pipeline failures by stage", "{failure}"},
		{&e.printCopies, "pixelbooth_print_copies_total", "Copies sent to the printer", "{copy}"},
		{&e.printOutcomes, "pixelbooth_prints_total", "Finished print jobs by outcome", "{job}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return e, nil
}

func (e *Exporter) SessionStarted(ctx context.Context) {
	e.sessions.Add(ctx, 1)
}

func (e *Exporter) IdleReset(ctx context.Context, phase string) {
	e.idleResets.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
}

func (e *Exporter) GenerationSubmitted(ctx context.Context, degraded bool) {
	e.generations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("degraded", degraded)))
}

func (e *Exporter) GenerationFailed(ctx context.Context, stage string) {
	e.genFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (e *Exporter) PrintSubmitted(ctx context.Context, copies int) {
	e.printCopies.Add(ctx, int64(copies))
}

func (e *Exporter) PrintFinished(ctx context.Context, outcome string) {
	e.printOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Close flushes pending measurements.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
