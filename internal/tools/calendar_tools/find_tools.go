package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/instrumentation"
	"github.com/velikanov/calsec/internal/tools/common"
)

// dateLayout is the calendar-day format accepted by the find tool.
const dateLayout = "2006-01-02"

// FindEvent looks up an event by title on a given calendar day. Exactly
// one case-insensitive exact match returns the event id; zero or several
// matches return a textual message so the agent can disambiguate with
// the user.
func (d *Dispatcher) FindEvent(ctx context.Context, user auth.UserID, summary string, day time.Time) string {
	client, msg := d.client(ctx, user)
	if msg != "" {
		return msg
	}

	res, err := client.FindEvent(summary, day)
	if err != nil {
		return fmt.Sprintf("ERROR: failed to search for events: %v", err)
	}

	if len(res.Candidates) == 0 {
		return fmt.Sprintf("Event '%s' on %s not found", summary, day.Format(dateLayout))
	}

	if len(res.ExactMatches) == 0 {
		titles := make([]string, 0, len(res.Candidates))
		for _, ev := range res.Candidates {
			titles = append(titles, ev.Summary)
		}
		return fmt.Sprintf("No exact match for '%s'. Found: %s", summary, strings.Join(titles, ", "))
	}

	if len(res.ExactMatches) > 1 {
		times := make([]string, 0, len(res.ExactMatches))
		for _, ev := range res.ExactMatches {
			times = append(times, ev.Start.Format(time.RFC3339))
		}
		return fmt.Sprintf("Multiple events match. Please disambiguate by start time: %s", strings.Join(times, ", "))
	}

	return res.ID
}

// RegisterFindTools registers the find-by-title tool with the MCP server.
func RegisterFindTools(s *mcpserver.MCPServer, d *Dispatcher) error {
	findEventTool := mcp.NewTool("calendar_find_event",
		mcp.WithDescription("Find a calendar event by title on a specific day, returning its id"),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Chat user id the calendar belongs to"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title to search for (exact, case-insensitive)"),
		),
		mcp.WithString("date",
			mcp.Required(),
			mcp.Description("Calendar day to search (YYYY-MM-DD)"),
		),
	)

	s.AddTool(findEventTool, common.InstrumentedToolHandlerWithService(
		"calendar_find_event", instrumentation.ServiceCalendar, instrumentation.OperationSearch, d.instr,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindEvent(ctx, request, d)
		}))

	return nil
}

func handleFindEvent(ctx context.Context, request mcp.CallToolRequest, d *Dispatcher) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	user, ok := getUserFromArgs(args)
	if !ok {
		return mcp.NewToolResultError("user is required"), nil
	}

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	dateStr, ok := args["date"].(string)
	if !ok || dateStr == "" {
		return mcp.NewToolResultError("date is required"), nil
	}
	day, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid date format: %v", err)), nil
	}

	return mcp.NewToolResultText(d.FindEvent(ctx, user, summary, day)), nil
}
