// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the meetingbroker service.
//
// # Metrics
//
// HTTP:
//   - http_requests_total, http_request_duration_seconds by method, route, status
//
// Google API:
//   - google_api_operations_total, google_api_operation_duration_seconds by
//     service (calendar, iamcredentials), operation and status
//
// Credentials:
//   - credential_resolutions_total, credential_resolution_duration_seconds by auth_mode and status
//
// Bookings:
//   - booking_operations_total, booking_operation_duration_seconds by operation and status
//     (plus user_domain when METRICS_DETAILED_LABELS is set)
//   - conference_attach_total by outcome (inline, patched, skipped, failed)
//
// MCP tools:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds by tool and status
//
// The prometheus exporter registers onto a registry owned by the Provider;
// serve it with promhttp.HandlerFor(provider.Gatherer(), ...).
//
// # Tracing
//
// Spans are named booking.<operation>, tool.<name> and google.<service>.<operation>.
//
// # Configuration
//
// DefaultConfig reads INSTRUMENTATION_ENABLED, METRICS_EXPORTER, TRACING_EXPORTER,
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_TRACES_SAMPLER_ARG, OTEL_SERVICE_NAME,
// METRICS_DETAILED_LABELS, AUDIT_LOGGING_ENABLED and AUDIT_LOGGING_INCLUDE_PII.
//
// # Example
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordBookingOperation(ctx, instrumentation.OperationBookingCreate,
//		instrumentation.StatusSuccess, attendee, time.Since(start))
package instrumentation
