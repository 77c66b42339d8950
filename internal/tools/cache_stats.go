package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/cache"
)

// CacheStatsTool handles the cache_stats MCP tool.
type CacheStatsTool struct {
	store *cache.Store
}

// NewCacheStatsTool creates a CacheStatsTool with the given store.
func NewCacheStatsTool(store *cache.Store) *CacheStatsTool {
	return &CacheStatsTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *CacheStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("cache_stats",
		mcp.WithDescription(
			"Show result-cache statistics — cached entries, rows, bytes, hits, and profiles.",
		),
	)
}

// Handle processes the cache_stats tool call.
func (t *CacheStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.store.Stats()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("## Result Cache Statistics\n\n")
	fmt.Fprintf(&sb, "- **Entries**: %d\n", stats.Entries)
	fmt.Fprintf(&sb, "- **Rows**: %d\n", stats.TotalRows)
	fmt.Fprintf(&sb, "- **Bytes**: %d\n", stats.TotalBytes)
	fmt.Fprintf(&sb, "- **Hits**: %d\n", stats.TotalHits)

	if len(stats.Profiles) > 0 {
		fmt.Fprintf(&sb, "- **Profiles** (%d): %s\n", len(stats.Profiles), strings.Join(stats.Profiles, ", "))
	} else {
		sb.WriteString("- **Profiles**: none\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}
