package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// exportedNamespaces are the attribute key prefixes that may leave the
// process. Everything else is dropped.
var exportedNamespaces = []string{
	"fixedtree.", "tree.", "bench.", "snapshot.", "shard.", "replay.", "check.",
	"error.", "log.",
}

// privateKeys name stored keys and values, and are dropped even inside an
// exported namespace. Any key under "payload." is private too.
var privateKeys = map[attribute.Key]struct{}{
	"tree.key":   {},
	"tree.value": {},
	"check.key":  {},
}

// exportable reports whether an attribute key may be exported.
func exportable(key attribute.Key) bool {
	if _, private := privateKeys[key]; private || strings.HasPrefix(string(key), "payload.") {
		return false
	}

	if key == "error" {
		return true
	}

	for _, ns := range exportedNamespaces {
		if strings.HasPrefix(string(key), ns) {
			return true
		}
	}

	return false
}

// attributeFilter is a SpanProcessor that hands its delegate a view of
// each ended span holding only exportable attributes, on the span and on
// its events.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
}

// NewAttributeFilter wraps delegate. A non-nil logger receives a warning
// for every dropped key.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

func (f *attributeFilter) Shutdown(ctx context.Context) error {
	if err := f.delegate.Shutdown(ctx); err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	if err := f.delegate.ForceFlush(ctx); err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(attrs []attribute.KeyValue) []attribute.KeyValue {
	kept := make([]attribute.KeyValue, 0, len(attrs))

	for _, kv := range attrs {
		if exportable(kv.Key) {
			kept = append(kept, kv)

			continue
		}

		if f.logger != nil {
			f.logger.Warn("span attribute dropped", slog.String("key", string(kv.Key)))
		}
	}

	return kept
}

// filteredSpan overrides the attribute-bearing accessors of a span.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

func (s *filteredSpan) Attributes() []attribute.KeyValue {
	return s.filter.keep(s.ReadOnlySpan.Attributes())
}

// Events filters event attributes too. Mirrored log records carry whatever
// the caller logged, stored keys included.
func (s *filteredSpan) Events() []sdktrace.Event {
	orig := s.ReadOnlySpan.Events()
	if len(orig) == 0 {
		return orig
	}

	events := make([]sdktrace.Event, len(orig))

	for idx, event := range orig {
		event.Attributes = s.filter.keep(event.Attributes)
		events[idx] = event
	}

	return events
}
