package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/query"
)

// ExecuteQueryTool handles the execute_query MCP tool.
// It runs a statement through the cache-aware execution service.
type ExecuteQueryTool struct {
	svc *query.Service
}

// NewExecuteQueryTool creates an ExecuteQueryTool with the given service.
func NewExecuteQueryTool(svc *query.Service) *ExecuteQueryTool {
	return &ExecuteQueryTool{svc: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ExecuteQueryTool) Definition() mcp.Tool {
	return mcp.NewTool("execute_query",
		mcp.WithDescription(
			"Execute a SQL statement against the warehouse through the result cache. "+
				"Repeated executions of the same statement under the same profile and "+
				"session context are served from the cache without re-running the query. "+
				"Set refresh=true to force re-execution and overwrite the cached result.",
		),
		mcp.WithString("statement",
			mcp.Required(),
			mcp.Description("SQL statement to execute."),
		),
		mcp.WithString("profile",
			mcp.Description("Profile to execute under. Defaults to the configured default profile."),
		),
		mcp.WithString("warehouse",
			mcp.Description("Warehouse override for this execution."),
		),
		mcp.WithString("database",
			mcp.Description("Database override for this execution."),
		),
		mcp.WithString("schema",
			mcp.Description("Schema override for this execution."),
		),
		mcp.WithString("role",
			mcp.Description("Role override for this execution."),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass the cache lookup and re-execute remotely."),
		),
	)
}

// Handle processes the execute_query tool call.
func (t *ExecuteQueryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statement := req.GetString("statement", "")
	if strings.TrimSpace(statement) == "" {
		return mcp.NewToolResultError("'statement' is required — provide the SQL to execute"), nil
	}

	overrides := make(map[string]any)
	for _, key := range []string{"warehouse", "database", "schema", "role"} {
		if v := req.GetString(key, ""); v != "" {
			overrides[key] = v
		}
	}

	resp, err := t.svc.Execute(ctx, query.Request{
		Statement: statement,
		Profile:   req.GetString("profile", ""),
		Overrides: overrides,
		Refresh:   boolArg(req, "refresh", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("# Query Result\n\n")
	fmt.Fprintf(&sb, "- **Profile**: %s\n", resp.Profile)
	fmt.Fprintf(&sb, "- **Rows**: %d\n", resp.RowCount)
	fmt.Fprintf(&sb, "- **Cache key**: `%s`\n", shortKey(resp.CacheKey))
	if resp.CacheHit {
		sb.WriteString("- **Source**: cache hit — no remote execution\n")
	} else {
		fmt.Fprintf(&sb, "- **Source**: remote execution `%s`\n", resp.ExecutionID)
		if resp.Cached {
			sb.WriteString("- **Cached**: yes\n")
		} else {
			sb.WriteString("- **Cached**: no\n")
		}
	}
	if resp.RaggedSchema {
		sb.WriteString("\n⚠️ Rows have differing column sets — the column list below is the union across all rows.\n")
	}

	sb.WriteString("\n")
	sb.WriteString(markdownTable(resp.Columns, resp.Rows))

	return mcp.NewToolResultText(sb.String()), nil
}
