package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/query"
)

// TestConnectionTool handles the test_connection MCP tool.
type TestConnectionTool struct {
	svc *query.Service
}

// NewTestConnectionTool creates a TestConnectionTool with the given service.
func NewTestConnectionTool(svc *query.Service) *TestConnectionTool {
	return &TestConnectionTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *TestConnectionTool) Definition() mcp.Tool {
	return mcp.NewTool("test_connection",
		mcp.WithDescription(
			"Verify that a profile can reach the warehouse by running 'select 1'. "+
				"Always executes remotely — never served from the cache.",
		),
		mcp.WithString("profile",
			mcp.Description("Profile to test. Defaults to the configured default profile."),
		),
	)
}

// Handle processes the test_connection tool call.
func (t *TestConnectionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.svc.Execute(ctx, query.Request{
		Statement: "select 1",
		Profile:   req.GetString("profile", ""),
		Refresh:   true,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("connection test failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"✅ Connection OK\n\n- **Profile**: %s\n- **Execution**: `%s`\n",
		resp.Profile, resp.ExecutionID,
	)), nil
}
