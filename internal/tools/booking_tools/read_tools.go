package booking_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/server"
	"github.com/teemow/meetingbroker/internal/tools/common"
)

func registerReadTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	availabilityTool := mcp.NewTool(ToolAvailability,
		mcp.WithDescription("List the busy intervals of the booking calendar between start and end. Any time not covered is free to book."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Window start, RFC 3339 (e.g. 2025-03-01T09:00:00Z)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Window end, RFC 3339. Must be after start."),
		),
	)
	s.AddTool(availabilityTool, common.InstrumentedToolHandler(ToolAvailability, instrumentation.OperationFreeBusy, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAvailability(ctx, request, sc)
		}))

	listTool := mcp.NewTool(ToolList,
		mcp.WithDescription("List bookings ordered by start time. Without timeMin the window starts now; without timeMax it spans 90 days."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("email",
			mcp.Description("Only return bookings that include this attendee"),
		),
		mcp.WithString("timeMin",
			mcp.Description("Window start, RFC 3339"),
		),
		mcp.WithString("timeMax",
			mcp.Description("Window end, RFC 3339"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of bookings to return (1-2500, default 50)"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler(ToolList, instrumentation.OperationBookingList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleList(ctx, request, sc)
		}))
}

func handleAvailability(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, err := booking.ParseInstant("start", common.StringArg(args, "start"))
	if err != nil {
		return common.ErrorResult(err), nil
	}
	end, err := booking.ParseInstant("end", common.StringArg(args, "end"))
	if err != nil {
		return common.ErrorResult(err), nil
	}

	busy, err := sc.Bookings().FreeBusy(ctx, start, end)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	if busy == nil {
		busy = []calendar.TimeRange{}
	}
	return jsonResult(server.AvailabilityResponse{Busy: busy})
}

func handleList(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	f := booking.ListFilter{Email: common.StringArg(args, "email")}

	var err error
	if f.TimeMin, err = booking.ParseOptionalInstant("timeMin", common.StringArg(args, "timeMin")); err != nil {
		return common.ErrorResult(err), nil
	}
	if f.TimeMax, err = booking.ParseOptionalInstant("timeMax", common.StringArg(args, "timeMax")); err != nil {
		return common.ErrorResult(err), nil
	}
	if f.MaxResults, err = common.IntArg(args, "maxResults"); err != nil {
		return common.ErrorResult(err), nil
	}

	bookings, err := sc.Bookings().List(ctx, f)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return jsonResult(server.ListBookingsResponse{Bookings: bookings})
}
