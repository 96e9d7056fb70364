package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrMode      = "auth_mode"
	attrOutcome   = "outcome"
	attrTool      = "tool"
	attrDomain    = "user_domain"
)

// Conferencing outcomes recorded by RecordConferenceAttach.
const (
	ConferenceInline  = "inline"
	ConferencePatched = "patched"
	ConferenceSkipped = "skipped"
	ConferenceFailed  = "failed"
)

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics provides methods for recording observability metrics.
// The zero value records nothing, which is what a disabled Provider hands out.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// Credential metrics
	credentialResolutionsTotal   metric.Int64Counter
	credentialResolutionDuration metric.Float64Histogram

	// Booking metrics
	bookingOperationsTotal   metric.Int64Counter
	bookingOperationDuration metric.Float64Histogram
	conferenceAttachTotal    metric.Int64Counter

	// MCP Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments registered on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string, buckets []float64) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(buckets...))
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
	}

	counter(&m.httpRequestsTotal, "http_requests_total", "Total number of HTTP requests", "{request}")
	histogram(&m.httpRequestDuration, "http_request_duration_seconds", "HTTP request duration in seconds",
		[]float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0})

	counter(&m.googleAPIOperationsTotal, "google_api_operations_total", "Total number of Google API operations", "{operation}")
	histogram(&m.googleAPIOperationDuration, "google_api_operation_duration_seconds", "Google API operation duration in seconds", latencyBuckets)

	counter(&m.credentialResolutionsTotal, "credential_resolutions_total", "Total number of credential resolutions by auth mode", "{resolution}")
	histogram(&m.credentialResolutionDuration, "credential_resolution_duration_seconds", "Credential resolution duration in seconds", latencyBuckets)

	counter(&m.bookingOperationsTotal, "booking_operations_total", "Total number of booking operations", "{operation}")
	histogram(&m.bookingOperationDuration, "booking_operation_duration_seconds", "Booking operation duration in seconds", latencyBuckets)
	counter(&m.conferenceAttachTotal, "conference_attach_total", "Conferencing link attachment outcomes", "{attempt}")

	counter(&m.toolInvocationsTotal, "mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}")
	histogram(&m.toolDuration, "mcp_tool_duration_seconds", "MCP tool execution duration in seconds", latencyBuckets)

	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordHTTPRequest records an HTTP request. route should be the matched
// route pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records a Google API call.
//
// Parameters:
//   - service: calendar or iamcredentials
//   - operation: list, get, create, patch, delete, freebusy, signjwt
//   - status: "success" or "error"
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCredentialResolution records one Resolve call for the given auth mode.
func (m *Metrics) RecordCredentialResolution(ctx context.Context, mode, status string, duration time.Duration) {
	if m == nil || m.credentialResolutionsTotal == nil || m.credentialResolutionDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMode, mode),
		attribute.String(attrStatus, status),
	)
	m.credentialResolutionsTotal.Add(ctx, 1, attrs)
	m.credentialResolutionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordBookingOperation records a booking-level operation (create, list,
// amend, cancel, freebusy). attendeeEmail is reduced to its domain and only
// attached when detailed labels are enabled.
func (m *Metrics) RecordBookingOperation(ctx context.Context, operation, status, attendeeEmail string, duration time.Duration) {
	if m == nil || m.bookingOperationsTotal == nil || m.bookingOperationDuration == nil {
		return
	}

	kv := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && attendeeEmail != "" {
		kv = append(kv, attribute.String(attrDomain, ExtractUserDomain(attendeeEmail)))
	}

	attrs := metric.WithAttributes(kv...)
	m.bookingOperationsTotal.Add(ctx, 1, attrs)
	m.bookingOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordConferenceAttach records how a conferencing link was (or was not)
// attached to a new booking.
func (m *Metrics) RecordConferenceAttach(ctx context.Context, outcome string) {
	if m == nil || m.conferenceAttachTotal == nil {
		return
	}
	m.conferenceAttachTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
