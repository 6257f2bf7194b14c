package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ProbeBuildResource exposes buildResource for testing.
func ProbeBuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(cfg)
}

// ProbeSampled reports whether a root span is sampled by the sampler chosen
// for cfg with env as the environment.
func ProbeSampled(cfg Config, env map[string]string) bool {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(chooseSampler(cfg, func(key string) string { return env[key] })),
	)

	_, span := tp.Tracer("probe").Start(context.Background(), "probe")
	span.End()

	sampled := len(exporter.GetSpans()) > 0

	_ = tp.Shutdown(context.Background())

	return sampled
}

// ProbeShutdownOrder registers closers that record their name, shuts down
// twice and returns the recorded order with both shutdown results.
func ProbeShutdownOrder(names ...string) ([]string, []error) {
	tel := &telemetry{}

	var order []string

	for _, name := range names {
		tel.closers = append(tel.closers, func(context.Context) error {
			order = append(order, name)

			return nil
		})
	}

	shutdown := tel.shutdownFunc(0)
	errs := []error{shutdown(context.Background()), shutdown(context.Background())}

	return order, errs
}
