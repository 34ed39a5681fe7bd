package calendar_tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/calendar"
	"github.com/velikanov/calsec/internal/logging"
	"github.com/velikanov/calsec/internal/tools/common"
)

// notAuthenticatedText is the user-facing rendering of a missing
// credential. It instructs rather than errors so the conversation turn
// completes gracefully.
const notAuthenticatedText = "You are not authenticated. Use /login to connect your Google account."

// ClientFactory builds a calendar client from a stored credential.
// Tests substitute a factory pointed at a fixture endpoint.
type ClientFactory func(ctx context.Context, cred *auth.StoredCredential) (*calendar.Client, error)

// Dispatcher resolves credentials and routes tool invocations to the
// calendar client. All operations return their outcome as text; provider
// failures are rendered with an "ERROR:" prefix instead of propagating.
type Dispatcher struct {
	creds   *auth.CredentialStore
	clients ClientFactory
	logger  *slog.Logger
	instr   *common.Instrumentation
}

// NewDispatcher creates a dispatcher over the given credential store.
// When factory is nil the default calendar client is used.
func NewDispatcher(creds *auth.CredentialStore, factory ClientFactory, logger *slog.Logger) *Dispatcher {
	if factory == nil {
		factory = func(ctx context.Context, cred *auth.StoredCredential) (*calendar.Client, error) {
			return calendar.NewClient(ctx, cred)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{creds: creds, clients: factory, logger: logger}
}

// SetInstrumentation installs the metrics recorder and audit logger
// applied around every registered tool handler.
func (d *Dispatcher) SetInstrumentation(instr *common.Instrumentation) {
	d.instr = instr
}

// client resolves the user's credential and builds a calendar client.
// The returned text is non-empty when the operation should short-circuit
// with that message.
func (d *Dispatcher) client(ctx context.Context, user auth.UserID) (*calendar.Client, string) {
	cred, ok := d.creds.Get(user)
	if !ok {
		return nil, notAuthenticatedText
	}
	c, err := d.clients(ctx, cred)
	if err != nil {
		d.logger.Error("failed to build calendar client",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
		return nil, "ERROR: failed to access the calendar service."
	}
	return c, ""
}

// Invoke routes a named tool invocation to its handler and returns the
// textual outcome. It is the in-process entry point for agents that call
// tools directly instead of going through the MCP transport. The user
// argument overrides any "user" key in args.
func (d *Dispatcher) Invoke(ctx context.Context, user auth.UserID, tool string, args map[string]interface{}) string {
	merged := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		merged[k] = v
	}
	merged["user"] = fmt.Sprintf("%d", user)
	request := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: merged}}

	var (
		result *mcp.CallToolResult
		err    error
	)
	switch tool {
	case "calendar_list_events":
		result, err = handleListEvents(ctx, request, d)
	case "calendar_create_event":
		result, err = handleCreateEvent(ctx, request, d)
	case "calendar_update_event":
		result, err = handleUpdateEvent(ctx, request, d)
	case "calendar_delete_event":
		result, err = handleDeleteEvent(ctx, request, d)
	case "calendar_find_event":
		result, err = handleFindEvent(ctx, request, d)
	default:
		return fmt.Sprintf("ERROR: unknown tool %q", tool)
	}
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return resultText(result)
}

// resultText flattens a tool result into its textual content.
func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// RegisterCalendarTools registers all calendar tools with the MCP server.
func RegisterCalendarTools(s *mcpserver.MCPServer, d *Dispatcher) error {
	if err := RegisterEventTools(s, d); err != nil {
		return fmt.Errorf("failed to register event tools: %w", err)
	}
	if err := RegisterFindTools(s, d); err != nil {
		return fmt.Errorf("failed to register find tools: %w", err)
	}
	return nil
}

// getUserFromArgs extracts the invoking chat user from tool arguments.
// Accepts both a numeric value and its decimal string form.
func getUserFromArgs(args map[string]interface{}) (auth.UserID, bool) {
	id, ok := common.GetUserFromArgs(args)
	return auth.UserID(id), ok
}
