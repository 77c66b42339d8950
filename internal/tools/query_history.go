package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/cache"
)

// QueryHistoryTool handles the query_history MCP tool.
type QueryHistoryTool struct {
	store *cache.Store
}

// NewQueryHistoryTool creates a QueryHistoryTool with the given store.
func NewQueryHistoryTool(store *cache.Store) *QueryHistoryTool {
	return &QueryHistoryTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *QueryHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("query_history",
		mcp.WithDescription(
			"List recently cached result sets with their profile, session context, "+
				"row counts, and hit counts. Metadata only — re-run execute_query to "+
				"fetch a result's rows.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return (default 10)."),
		),
	)
}

// Handle processes the query_history tool call.
func (t *QueryHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(req, "limit", 10)

	entries, err := t.store.Recent(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}

	if len(entries) == 0 {
		return mcp.NewToolResultText("No cached results yet."), nil
	}

	var sb strings.Builder
	sb.WriteString("## Recent Cached Results\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- `%s` — profile **%s**, %d rows, %d hits, context: %s (stored %s)\n",
			shortKey(e.Key), e.Profile, e.RowCount, e.HitCount, formatContext(e.Context), e.CreatedAt)
	}

	return mcp.NewToolResultText(sb.String()), nil
}
