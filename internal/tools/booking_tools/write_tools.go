package booking_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/server"
	"github.com/teemow/meetingbroker/internal/tools/common"
)

func registerWriteTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	createTool := mcp.NewTool(ToolCreate,
		mcp.WithDescription("Book a session on the booking calendar. Virtual sessions get a Google Meet link when conferencing is enabled. The result lists any warnings, for example when the attendee could not be invited."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Session start, RFC 3339"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Session end, RFC 3339. Must be after start."),
		),
		mcp.WithString("email",
			mcp.Description("Attendee email address"),
		),
		mcp.WithString("name",
			mcp.Description("Attendee display name, used in the event title"),
		),
		mcp.WithString("mode",
			mcp.Description("Session mode (default: virtual)"),
			mcp.Enum(string(booking.ModeVirtual), string(booking.ModeInPerson)),
		),
		mcp.WithString("location",
			mcp.Description("Location for in-person sessions. Falls back to the configured default location."),
		),
	)
	s.AddTool(createTool, common.InstrumentedToolHandler(ToolCreate, instrumentation.OperationBookingCreate, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreate(ctx, request, sc)
		}))

	amendTool := mcp.NewTool(ToolAmend,
		mcp.WithDescription("Move a booking or change its location. Only the given fields change; an empty location clears it."),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Booking ID"),
		),
		mcp.WithString("start",
			mcp.Description("New start, RFC 3339"),
		),
		mcp.WithString("end",
			mcp.Description("New end, RFC 3339"),
		),
		mcp.WithString("location",
			mcp.Description("New location"),
		),
	)
	s.AddTool(amendTool, common.InstrumentedToolHandler(ToolAmend, instrumentation.OperationBookingAmend, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAmend(ctx, request, sc)
		}))

	cancelTool := mcp.NewTool(ToolCancel,
		mcp.WithDescription("Cancel a booking. Attendees are notified."),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Booking ID"),
		),
	)
	s.AddTool(cancelTool, common.InstrumentedToolHandler(ToolCancel, instrumentation.OperationBookingCancel, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCancel(ctx, request, sc)
		}))
}

func handleCreate(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	body := server.CreateBookingRequest{
		Start:    common.StringArg(args, "start"),
		End:      common.StringArg(args, "end"),
		Email:    common.StringArg(args, "email"),
		Name:     common.StringArg(args, "name"),
		Mode:     common.StringArg(args, "mode"),
		Location: common.StringArg(args, "location"),
	}

	req, err := body.ToRequest()
	if err != nil {
		return common.ErrorResult(err), nil
	}

	result, err := sc.Bookings().Create(ctx, req)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	if result.Warnings == nil {
		result.Warnings = []google.Warning{}
	}
	return jsonResult(result)
}

func handleAmend(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	id, err := common.RequiredStringArg(args, "id")
	if err != nil {
		return common.ErrorResult(err), nil
	}

	var body server.AmendBookingRequest
	if body.Start, err = common.OptionalStringArg(args, "start"); err != nil {
		return common.ErrorResult(err), nil
	}
	if body.End, err = common.OptionalStringArg(args, "end"); err != nil {
		return common.ErrorResult(err), nil
	}
	if body.Location, err = common.OptionalStringArg(args, "location"); err != nil {
		return common.ErrorResult(err), nil
	}

	req, err := body.ToAmendRequest()
	if err != nil {
		return common.ErrorResult(err), nil
	}

	updated, err := sc.Bookings().Amend(ctx, id, req)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	return jsonResult(server.AmendBookingResponse{Booking: *updated})
}

func handleCancel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	id, err := common.RequiredStringArg(request.GetArguments(), "id")
	if err != nil {
		return common.ErrorResult(err), nil
	}

	if err := sc.Bookings().Cancel(ctx, id); err != nil {
		return common.ErrorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Booking %s cancelled", id)), nil
}
