// Package observability provides OpenTelemetry tracing for settings resolution:
// one span per resolved node, with events for each source read.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of layerconf spans
const TracerName = "github.com/ajitpratap0/layerconf"

// Tracer returns the layerconf tracer of the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Span wraps a trace span, batching attributes until End.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// StartNode starts the span of one node resolution. field is the name the
// node is nested under in its parent, empty for the root.
func StartNode(ctx context.Context, tracer trace.Tracer, nodeType, field string) (context.Context, *Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	ctx, span := tracer.Start(ctx, "layerconf.resolve "+nodeType)
	s := &Span{span: span}
	s.SetAttribute("layerconf.node.type", nodeType)
	if field != "" {
		s.SetAttribute("layerconf.node.field", field)
	}
	return ctx, s
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case []string:
		attr = attribute.StringSlice(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// SourceRead records one source read as a span event
func (s *Span) SourceRead(source string, entries int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("layerconf.source", source),
		attribute.Int("layerconf.source.entries", entries),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	s.span.AddEvent("source.read", trace.WithAttributes(attrs...))
}

// End sets the span status from err and ends it.
func (s *Span) End(err error) {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
