package observability

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceObserver records events as span events on the span carried by the
// event's context. Events at LevelError or above also mark the span as
// failed. Without a recording span in ctx the event is dropped.
type TraceObserver struct{}

// NewTraceObserver returns a TraceObserver.
func NewTraceObserver() *TraceObserver {
	return &TraceObserver{}
}

func (o *TraceObserver) OnEvent(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.AddEvent(string(event.Type), trace.WithTimestamp(event.Timestamp), trace.WithAttributes(Attributes(event)...))

	if event.Level >= LevelError {
		span.SetStatus(codes.Error, string(event.Type))
	}
}

// Attributes converts an event's source, level and data into OTel attributes.
func Attributes(event Event) []attribute.KeyValue {
	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys)+2)
	attrs = append(attrs,
		attribute.String("source", event.Source),
		attribute.String("severity", event.Level.String()),
	)
	for _, k := range keys {
		attrs = append(attrs, attributeOf(k, event.Data[k]))
	}
	return attrs
}

func attributeOf(key string, v any) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case bool:
		return attribute.Bool(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case float64:
		return attribute.Float64(key, val)
	case []string:
		return attribute.StringSlice(key, val)
	case error:
		return attribute.String(key, val.Error())
	case fmt.Stringer:
		return attribute.String(key, val.String())
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}
