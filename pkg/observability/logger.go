package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Log record keys added by TracingHandler.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyService = "service"
	LogKeyEnv     = "env"
	LogKeyMode    = "mode"
)

// SpanEventName names the span event a mirrored log record becomes.
const SpanEventName = "log"

// TracingHandler is an [slog.Handler] that stamps records with the trace
// and span of their context. Records at or above the mirror level are also
// added to the recording span as events, so a logged contract violation
// shows up in the command's trace.
type TracingHandler struct {
	inner  slog.Handler
	mirror slog.Level
}

// NewTracingHandler wraps inner. The service, env and mode attributes are
// attached once, ahead of any group.
func NewTracingHandler(inner slog.Handler, cfg Config) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(LogKeyService, cfg.ServiceName),
		slog.String(LogKeyMode, string(cfg.Mode)),
	}

	if cfg.Environment != "" {
		attrs = append(attrs, slog.String(LogKeyEnv, cfg.Environment))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs), mirror: slog.LevelWarn}
}

func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	span := trace.SpanFromContext(ctx)

	if sc := span.SpanContext(); sc.IsValid() {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}

	if record.Level >= th.mirror && span.IsRecording() {
		span.AddEvent(SpanEventName, trace.WithAttributes(eventAttributes(record)...))
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs), mirror: th.mirror}
}

func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name), mirror: th.mirror}
}

// eventAttributes flattens the record's own attributes into span
// attributes. Attributes bound with WithAttrs stay in the log line only.
func eventAttributes(record slog.Record) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, record.NumAttrs()+2)
	kvs = append(kvs,
		attribute.String("log.severity", record.Level.String()),
		attribute.String("log.message", record.Message),
	)

	record.Attrs(func(a slog.Attr) bool {
		kvs = appendAttr(kvs, "", a)

		return true
	})

	return kvs
}

func appendAttr(kvs []attribute.KeyValue, prefix string, a slog.Attr) []attribute.KeyValue {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	value := a.Value.Resolve()

	switch value.Kind() {
	case slog.KindGroup:
		for _, member := range value.Group() {
			kvs = appendAttr(kvs, key, member)
		}

		return kvs
	case slog.KindInt64:
		return append(kvs, attribute.Int64(key, value.Int64()))
	case slog.KindBool:
		return append(kvs, attribute.Bool(key, value.Bool()))
	case slog.KindFloat64:
		return append(kvs, attribute.Float64(key, value.Float64()))
	default:
		return append(kvs, attribute.String(key, value.String()))
	}
}

// BuildLogger returns a logger writing text or JSON records to w at
// cfg.LogLevel, wrapped in a [TracingHandler].
func BuildLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	if cfg.LogJSON {
		return slog.New(NewTracingHandler(slog.NewJSONHandler(w, opts), cfg))
	}

	return slog.New(NewTracingHandler(slog.NewTextHandler(w, opts), cfg))
}
