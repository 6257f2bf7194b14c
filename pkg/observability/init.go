package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer and meter handed out by Init.
const InstrumentationName = "github.com/Sumatoshi-tech/fixedtree"

// ResourceKeyMode is the resource attribute carrying Config.Mode.
const ResourceKeyMode = "fixedtree.mode"

// Providers holds the initialized observability providers.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes pending telemetry. Calls after the first return nil.
	Shutdown func(ctx context.Context) error
}

// Init sets up tracing, metrics and structured logging, and installs the
// providers as the otel globals. Without an OTLP endpoint the providers
// are no-ops and nothing is exported.
func Init(cfg Config) (Providers, error) {
	logger := BuildLogger(os.Stderr, cfg)

	tel, err := startTelemetry(context.Background(), cfg, logger, os.Getenv)
	if err != nil {
		return Providers{}, err
	}

	otel.SetTracerProvider(tel.tracers)
	otel.SetMeterProvider(tel.meters)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return Providers{
		Tracer:   tel.tracers.Tracer(InstrumentationName),
		Meter:    tel.meters.Meter(InstrumentationName),
		Logger:   logger,
		Shutdown: tel.shutdownFunc(cfg.ShutdownTimeoutSec),
	}, nil
}

// telemetry owns the providers and whatever must be flushed on exit.
type telemetry struct {
	tracers trace.TracerProvider
	meters  metric.MeterProvider
	closers []func(context.Context) error
}

func startTelemetry(ctx context.Context, cfg Config, logger *slog.Logger, getenv func(string) string) (*telemetry, error) {
	tel := &telemetry{
		tracers: nooptrace.NewTracerProvider(),
		meters:  noopmetric.NewMeterProvider(),
	}

	target, ok := collectorOf(cfg)
	if !ok {
		return tel, nil
	}

	res, err := buildResource(cfg)
	if err != nil {
		return nil, err
	}

	spans, err := target.spanExporter(ctx)
	if err != nil {
		return nil, err
	}

	// Blocked attributes are only reported while debugging traces.
	var filterLog *slog.Logger
	if cfg.DebugTrace {
		filterLog = logger
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(NewAttributeFilter(sdktrace.NewBatchSpanProcessor(spans), filterLog)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(chooseSampler(cfg, getenv)),
	)
	tel.tracers = tp
	tel.closers = append(tel.closers, tp.Shutdown)

	metrics, err := target.metricExporter(ctx)
	if err != nil {
		return nil, errors.Join(err, tel.close(ctx))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics)),
		sdkmetric.WithResource(res),
	)
	tel.meters = mp
	tel.closers = append(tel.closers, mp.Shutdown)

	return tel, nil
}

// close shuts providers down in reverse start order.
func (tel *telemetry) close(ctx context.Context) error {
	var errs []error

	for _, closeFn := range slices.Backward(tel.closers) {
		errs = append(errs, closeFn(ctx))
	}

	return errors.Join(errs...)
}

func (tel *telemetry) shutdownFunc(timeoutSec int) func(context.Context) error {
	if timeoutSec <= 0 {
		timeoutSec = defaultShutdownTimeoutSec
	}

	var once sync.Once

	return func(ctx context.Context) error {
		var err error

		once.Do(func() {
			deadline, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
			defer cancel()

			err = tel.close(deadline)
		})

		return err
	}
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, attribute.String(ResourceKeyMode, string(cfg.Mode)))
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(attrs...),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}
