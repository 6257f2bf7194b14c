package observability_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/fixedtree/pkg/observability"
)

// filteredTracer returns a tracer whose spans pass through the attribute
// filter into an in-memory exporter.
func filteredTracer(t *testing.T, logger *slog.Logger) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(observability.NewAttributeFilter(sdktrace.NewSimpleSpanProcessor(exporter), logger)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	return tp.Tracer("test"), exporter
}

func keysOf(attrs []attribute.KeyValue) []string {
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}

	return keys
}

func TestAttributeFilter_SpanAttributes(t *testing.T) {
	t.Parallel()

	tracer, exporter := filteredTracer(t, nil)

	_, span := tracer.Start(context.Background(), "fixedtree.dump")
	span.SetAttributes(
		attribute.Int("tree.capacity", 64),
		attribute.String("tree.layout", "packed"),
		attribute.String("bench.order", "random"),
		attribute.String("fixedtree.command", "dump"),
		attribute.String("error.type", "capacity"),
		attribute.Bool("error", true),
		attribute.String("tree.key", "alice@example.com"),
		attribute.String("tree.value", "secret"),
		attribute.String("check.key", "42"),
		attribute.String("payload.bytes", "abc"),
		attribute.String("http.url", "https://example.com"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	assert.ElementsMatch(t, []string{
		"tree.capacity", "tree.layout", "bench.order", "fixedtree.command", "error.type", "error",
	}, keysOf(spans[0].Attributes))
}

func TestAttributeFilter_LogsDroppedKeys(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	tracer, _ := filteredTracer(t, slog.New(slog.NewTextHandler(&buf, nil)))

	_, span := tracer.Start(context.Background(), "op")
	span.SetAttributes(attribute.String("payload.secret", "val"), attribute.Int("tree.size", 3))
	span.End()

	assert.Contains(t, buf.String(), "span attribute dropped")
	assert.Contains(t, buf.String(), "key=payload.secret")
	assert.NotContains(t, buf.String(), "tree.size")
}

func TestAttributeFilter_EventAttributes(t *testing.T) {
	t.Parallel()

	tracer, exporter := filteredTracer(t, nil)
	logger := slog.New(observability.NewTracingHandler(slog.NewTextHandler(io.Discard, nil), observability.DefaultConfig()))

	ctx, span := tracer.Start(context.Background(), "fixedtree.replay")
	logger.WarnContext(ctx, "replay step violated a precondition",
		slog.Int("replay.step", 3),
		slog.String("check.key", "42"),
		slog.String("user", "alice"),
	)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)

	assert.ElementsMatch(t, []string{"log.severity", "log.message", "replay.step"}, keysOf(spans[0].Events[0].Attributes))
}
