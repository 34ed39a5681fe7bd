package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/velikanov/calsec/internal/instrumentation"
)

func testInstrumentation(t *testing.T) *Instrumentation {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return &Instrumentation{
		Metrics: provider.Metrics(),
		Audit:   instrumentation.NewAuditLogger(nil),
	}
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestInstrumentedToolHandler_NoInstrumentation(t *testing.T) {
	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", nil, handler)

	result, err := wrapped(context.Background(), toolRequest(nil))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if result == nil {
		t.Error("expected result, got nil")
	}
}

func TestInstrumentedToolHandler_Success(t *testing.T) {
	instr := testInstrumentation(t)

	called := false
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return mcp.NewToolResultText("ok"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", instr, handler)

	result, err := wrapped(context.Background(), toolRequest(map[string]interface{}{"user": "42"}))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if result == nil {
		t.Error("expected result, got nil")
	}
}

func TestInstrumentedToolHandler_HandlerError(t *testing.T) {
	instr := testInstrumentation(t)

	wantErr := errors.New("handler failed")
	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return nil, wantErr
	}

	wrapped := InstrumentedToolHandler("test_tool", instr, handler)

	_, err := wrapped(context.Background(), toolRequest(map[string]interface{}{"user": "42"}))
	if !errors.Is(err, wantErr) {
		t.Errorf("expected handler error to be propagated, got %v", err)
	}
}

func TestInstrumentedToolHandler_ErrorResult(t *testing.T) {
	instr := testInstrumentation(t)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultError("bad input"), nil
	}

	wrapped := InstrumentedToolHandler("test_tool", instr, handler)

	result, err := wrapped(context.Background(), toolRequest(map[string]interface{}{"user": "42"}))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result == nil || !result.IsError {
		t.Error("expected error result to be passed through")
	}
}

func TestInstrumentedToolHandlerWithService(t *testing.T) {
	instr := testInstrumentation(t)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}

	wrapped := InstrumentedToolHandlerWithService("calendar_list_events", "calendar", "list", instr, handler)

	result, err := wrapped(context.Background(), toolRequest(map[string]interface{}{"user": "42"}))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result == nil {
		t.Error("expected result, got nil")
	}
}
