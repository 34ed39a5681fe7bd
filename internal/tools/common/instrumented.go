package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/velikanov/calsec/internal/instrumentation"
)

// Instrumentation bundles the metrics recorder and audit logger shared
// by the tool handlers. Either field may be nil.
type Instrumentation struct {
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// InstrumentedToolHandler wraps a tool handler with metrics and audit logging.
// It records tool invocation metrics and logs the invocation for audit purposes.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", instr, handler))
func InstrumentedToolHandler(
	toolName string,
	instr *Instrumentation,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return InstrumentedToolHandlerWithService(toolName, "", "", instr, handler)
}

// InstrumentedToolHandlerWithService is like InstrumentedToolHandler but also
// records the Google service and operation type for more detailed metrics.
//
// This handler records both:
// - Tool invocation metrics (tool_invocations_total, tool_duration_seconds)
// - Google API operation metrics (google_api_operations_total, google_api_operation_duration_seconds)
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandlerWithService("my_tool", "calendar", "list", instr, handler))
func InstrumentedToolHandlerWithService(
	toolName string,
	serviceName string,
	operation string,
	instr *Instrumentation,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// If no instrumentation is configured, just call the handler
		if instr == nil || (instr.Metrics == nil && instr.Audit == nil) {
			return handler(ctx, request)
		}

		// Start timing and create invocation record
		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx)
		if serviceName != "" {
			invocation.WithService(serviceName, operation)
		}

		// Extract the chat user from request arguments
		userID, hasUser := GetUserFromArgs(request.GetArguments())
		if hasUser {
			invocation.WithChatUser(userID)
		}

		// Call the actual handler
		result, err := handler(ctx, request)
		duration := time.Since(start)

		// Determine status
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
			if err != nil {
				invocation.CompleteWithError(err)
			} else {
				invocation.Complete(false, nil)
			}
		} else {
			invocation.CompleteSuccess()
		}

		// Record metrics
		if instr.Metrics != nil {
			instr.Metrics.RecordToolInvocationForUser(ctx, toolName, status, userID, duration)
			if serviceName != "" {
				instr.Metrics.RecordGoogleAPIOperation(ctx, serviceName, operation, status, duration)
			}
		}

		// Log audit
		if instr.Audit != nil {
			instr.Audit.LogToolInvocation(invocation)
		}

		return result, err
	}
}
