package common

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/logging"
	"github.com/teemow/meetingbroker/internal/server"
)

// InstrumentedToolHandler wraps a tool handler with a span, invocation
// metrics and an audit record.
//
// The audit record picks the attendee from the "email" argument and the
// booking from the "id" argument when present. A tool error result counts as
// a failure even though the handler returned a nil error.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("booking_create", instrumentation.OperationBookingCreate, sc, handler))
func InstrumentedToolHandler(toolName, operation string, sc *server.ServerContext, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		args := request.GetArguments()
		inv := instrumentation.NewInvocation(instrumentation.SurfaceMCP, toolName, operation).
			WithAttendee(StringArg(args, "email")).
			WithBooking(StringArg(args, "id")).
			WithAuthMode(sc.AuthMode()).
			WithSpanContext(ctx)

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = errors.New(resultText(result))
		}

		status := instrumentation.StatusSuccess
		if failure != nil {
			status = instrumentation.StatusError
			instrumentation.SetSpanError(span, failure)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		duration := time.Since(start)
		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		sc.AuditLogger().Log(ctx, inv.Complete(failure))

		logging.WithTool(sc.Logger(), toolName).LogAttrs(ctx, slog.LevelDebug, "tool invocation",
			logging.Operation(operation),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, duration),
			logging.Err(failure))

		return result, err
	}
}

// ErrorResult converts a booking error into a tool error result of the form
// "code: message", using the same classification as the REST API.
func ErrorResult(err error) *mcp.CallToolResult {
	_, resp := server.NewErrorResponse(err)
	return mcp.NewToolResultError(resp.Code + ": " + resp.Error)
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return "tool returned an error"
}
