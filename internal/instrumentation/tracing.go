package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used for every span the broker starts.
const TracerName = "github.com/teemow/meetingbroker"

// Span attribute keys.
const (
	SpanAttrTool             = "mcp.tool"
	SpanAttrService          = "google.service"
	SpanAttrOperation        = "google.operation"
	SpanAttrCalendarID       = "booking.calendar_id"
	SpanAttrBookingID        = "booking.id"
	SpanAttrAuthMode         = "booking.auth_mode"
	SpanAttrConferencePolicy = "booking.conference_policy"
	SpanAttrReadOnly         = "booking.read_only"
)

// SpanAttributeBuilder collects span attributes with consistent keys.
// Empty string values are skipped.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates an empty builder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 8)}
}

func (b *SpanAttributeBuilder) str(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

func (b *SpanAttributeBuilder) WithTool(tool string) *SpanAttributeBuilder {
	return b.str(SpanAttrTool, tool)
}

func (b *SpanAttributeBuilder) WithCalendar(calendarID string) *SpanAttributeBuilder {
	return b.str(SpanAttrCalendarID, calendarID)
}

func (b *SpanAttributeBuilder) WithBooking(id string) *SpanAttributeBuilder {
	return b.str(SpanAttrBookingID, id)
}

func (b *SpanAttributeBuilder) WithAuthMode(mode string) *SpanAttributeBuilder {
	return b.str(SpanAttrAuthMode, mode)
}

func (b *SpanAttributeBuilder) WithConferencePolicy(policy string) *SpanAttributeBuilder {
	return b.str(SpanAttrConferencePolicy, policy)
}

func (b *SpanAttributeBuilder) WithReadOnly(readOnly bool) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Bool(SpanAttrReadOnly, readOnly))
	return b
}

// Build returns the collected attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartBookingSpan starts a span named booking.<operation>.
func StartBookingSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "booking."+operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+toolName,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records err on span. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks span OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddSpanEvent adds an event to span.
func AddSpanEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace id of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
