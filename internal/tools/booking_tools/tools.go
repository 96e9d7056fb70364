package booking_tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetingbroker/internal/server"
)

// Tool names.
const (
	ToolAvailability = "booking_availability"
	ToolList         = "booking_list"
	ToolCreate       = "booking_create"
	ToolAmend        = "booking_amend"
	ToolCancel       = "booking_cancel"
)

// RegisterBookingTools registers the booking tools with the MCP server.
// Mutating tools are left out when sc is read-only.
func RegisterBookingTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc.Bookings() == nil {
		return fmt.Errorf("booking service is not configured")
	}

	registerReadTools(s, sc)
	if !sc.ReadOnly() {
		registerWriteTools(s, sc)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
