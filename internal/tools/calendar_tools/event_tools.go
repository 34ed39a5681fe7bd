package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/calendar"
	"github.com/velikanov/calsec/internal/instrumentation"
	"github.com/velikanov/calsec/internal/logging"
	"github.com/velikanov/calsec/internal/tools/common"
)

// ListEvents lists up to 10 events within [timeMin, timeMax] and renders
// them as a bulleted list. An empty range is a normal textual result,
// not an error.
func (d *Dispatcher) ListEvents(ctx context.Context, user auth.UserID, timeMin, timeMax time.Time) string {
	client, msg := d.client(ctx, user)
	if msg != "" {
		return msg
	}

	events, err := client.ListEvents(timeMin, timeMax)
	if err != nil {
		d.logger.Warn("listing events failed",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
		return "ERROR: failed to fetch events."
	}

	if len(events) == 0 {
		return "No events found in this period."
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("• %s (%s - %s)",
			ev.Summary,
			ev.Start.Format(time.RFC3339),
			ev.End.Format(time.RFC3339),
		))
	}
	return strings.Join(lines, "\n")
}

// CreateEvent inserts a new event and returns the provider's canonical
// link on success.
func (d *Dispatcher) CreateEvent(ctx context.Context, user auth.UserID, input calendar.EventInput) string {
	client, msg := d.client(ctx, user)
	if msg != "" {
		return msg
	}

	created, err := client.CreateEvent(input)
	if err != nil {
		return fmt.Sprintf("ERROR: failed to create event: %v", err)
	}
	return fmt.Sprintf("Event created: %s", created.HTMLLink)
}

// UpdateEvent applies a partial update to an existing event. Fields not
// present in the patch keep their prior value.
func (d *Dispatcher) UpdateEvent(ctx context.Context, user auth.UserID, eventID string, patch calendar.EventPatch) string {
	client, msg := d.client(ctx, user)
	if msg != "" {
		return msg
	}

	if patch.IsEmpty() {
		return "No changes requested."
	}

	updated, err := client.UpdateEvent(eventID, patch)
	if err != nil {
		return fmt.Sprintf("ERROR: failed to update event: %v", err)
	}
	return fmt.Sprintf("Event updated: %s", updated.HTMLLink)
}

// DeleteEvent removes an event by its id.
func (d *Dispatcher) DeleteEvent(ctx context.Context, user auth.UserID, eventID string) string {
	client, msg := d.client(ctx, user)
	if msg != "" {
		return msg
	}

	if err := client.DeleteEvent(eventID); err != nil {
		return fmt.Sprintf("ERROR: failed to delete event: %v", err)
	}
	return fmt.Sprintf("Event %s deleted", eventID)
}

// RegisterEventTools registers the list, create, update and delete tools
// with the MCP server.
func RegisterEventTools(s *mcpserver.MCPServer, d *Dispatcher) error {
	listEventsTool := mcp.NewTool("calendar_list_events",
		mcp.WithDescription("List calendar events within a time range"),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Chat user id the calendar belongs to"),
		),
		mcp.WithString("timeMin",
			mcp.Required(),
			mcp.Description("Start of the range (RFC3339 format, e.g., '2025-01-01T00:00:00Z')"),
		),
		mcp.WithString("timeMax",
			mcp.Required(),
			mcp.Description("End of the range (RFC3339 format, e.g., '2025-01-31T23:59:59Z')"),
		),
	)

	s.AddTool(listEventsTool, common.InstrumentedToolHandlerWithService(
		"calendar_list_events", instrumentation.ServiceCalendar, instrumentation.OperationList, d.instr,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListEvents(ctx, request, d)
		}))

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a new calendar event"),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Chat user id the calendar belongs to"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title/summary"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339 format, e.g., '2025-01-15T14:00:00+03:00')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339 format)"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone label for display (e.g., 'Europe/Berlin'). Defaults to UTC."),
		),
	)

	s.AddTool(createEventTool, common.InstrumentedToolHandlerWithService(
		"calendar_create_event", instrumentation.ServiceCalendar, instrumentation.OperationCreate, d.instr,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateEvent(ctx, request, d)
		}))

	updateEventTool := mcp.NewTool("calendar_update_event",
		mcp.WithDescription("Update an existing calendar event; only supplied fields are changed"),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Chat user id the calendar belongs to"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("summary",
			mcp.Description("New event title/summary"),
		),
		mcp.WithString("description",
			mcp.Description("New event description"),
		),
		mcp.WithString("location",
			mcp.Description("New event location"),
		),
		mcp.WithString("start",
			mcp.Description("New start time (RFC3339 format)"),
		),
		mcp.WithString("end",
			mcp.Description("New end time (RFC3339 format)"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone label for the new times"),
		),
	)

	s.AddTool(updateEventTool, common.InstrumentedToolHandlerWithService(
		"calendar_update_event", instrumentation.ServiceCalendar, instrumentation.OperationUpdate, d.instr,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUpdateEvent(ctx, request, d)
		}))

	deleteEventTool := mcp.NewTool("calendar_delete_event",
		mcp.WithDescription("Delete a calendar event"),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Chat user id the calendar belongs to"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to delete"),
		),
	)

	s.AddTool(deleteEventTool, common.InstrumentedToolHandlerWithService(
		"calendar_delete_event", instrumentation.ServiceCalendar, instrumentation.OperationDelete, d.instr,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDeleteEvent(ctx, request, d)
		}))

	return nil
}

func handleListEvents(ctx context.Context, request mcp.CallToolRequest, d *Dispatcher) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	user, ok := getUserFromArgs(args)
	if !ok {
		return mcp.NewToolResultError("user is required"), nil
	}

	timeMinStr, ok := args["timeMin"].(string)
	if !ok || timeMinStr == "" {
		return mcp.NewToolResultError("timeMin is required"), nil
	}
	timeMin, err := time.Parse(time.RFC3339, timeMinStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMin format: %v", err)), nil
	}

	timeMaxStr, ok := args["timeMax"].(string)
	if !ok || timeMaxStr == "" {
		return mcp.NewToolResultError("timeMax is required"), nil
	}
	timeMax, err := time.Parse(time.RFC3339, timeMaxStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid timeMax format: %v", err)), nil
	}

	return mcp.NewToolResultText(d.ListEvents(ctx, user, timeMin, timeMax)), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, d *Dispatcher) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	user, ok := getUserFromArgs(args)
	if !ok {
		return mcp.NewToolResultError("user is required"), nil
	}

	summary, ok := args["summary"].(string)
	if !ok || summary == "" {
		return mcp.NewToolResultError("summary is required"), nil
	}

	startStr, ok := args["start"].(string)
	if !ok || startStr == "" {
		return mcp.NewToolResultError("start is required"), nil
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
	}

	endStr, ok := args["end"].(string)
	if !ok || endStr == "" {
		return mcp.NewToolResultError("end is required"), nil
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
	}

	input := calendar.EventInput{
		Summary: summary,
		Start:   start,
		End:     end,
	}
	if desc, ok := args["description"].(string); ok {
		input.Description = desc
	}
	if loc, ok := args["location"].(string); ok {
		input.Location = loc
	}
	if tz, ok := args["timeZone"].(string); ok {
		input.TimeZone = tz
	}

	return mcp.NewToolResultText(d.CreateEvent(ctx, user, input)), nil
}

func handleUpdateEvent(ctx context.Context, request mcp.CallToolRequest, d *Dispatcher) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	user, ok := getUserFromArgs(args)
	if !ok {
		return mcp.NewToolResultError("user is required"), nil
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	var patch calendar.EventPatch
	if summary, ok := args["summary"].(string); ok {
		patch.Summary = &summary
	}
	if desc, ok := args["description"].(string); ok {
		patch.Description = &desc
	}
	if loc, ok := args["location"].(string); ok {
		patch.Location = &loc
	}
	if startStr, ok := args["start"].(string); ok && startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err)), nil
		}
		patch.Start = &start
	}
	if endStr, ok := args["end"].(string); ok && endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err)), nil
		}
		patch.End = &end
	}
	if tz, ok := args["timeZone"].(string); ok {
		patch.TimeZone = tz
	}

	return mcp.NewToolResultText(d.UpdateEvent(ctx, user, eventID, patch)), nil
}

func handleDeleteEvent(ctx context.Context, request mcp.CallToolRequest, d *Dispatcher) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	user, ok := getUserFromArgs(args)
	if !ok {
		return mcp.NewToolResultError("user is required"), nil
	}

	eventID, ok := args["eventId"].(string)
	if !ok || eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	return mcp.NewToolResultText(d.DeleteEvent(ctx, user, eventID)), nil
}
