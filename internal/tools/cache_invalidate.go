package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/cache"
)

// CacheInvalidateTool handles the cache_invalidate MCP tool.
type CacheInvalidateTool struct {
	store *cache.Store
}

// NewCacheInvalidateTool creates a CacheInvalidateTool with the given store.
func NewCacheInvalidateTool(store *cache.Store) *CacheInvalidateTool {
	return &CacheInvalidateTool{store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *CacheInvalidateTool) Definition() mcp.Tool {
	return mcp.NewTool("cache_invalidate",
		mcp.WithDescription(
			"Invalidate cached query results. Provide 'key' for a single entry, "+
				"'profile' for every entry under a profile, or all=true to empty the "+
				"cache. With no arguments, only expired entries are pruned.",
		),
		mcp.WithString("key",
			mcp.Description("Cache key of a single entry to invalidate."),
		),
		mcp.WithString("profile",
			mcp.Description("Invalidate every entry stored under this profile."),
		),
		mcp.WithBoolean("all",
			mcp.Description("Invalidate every entry in the cache."),
		),
	)
}

// Handle processes the cache_invalidate tool call.
func (t *CacheInvalidateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	profile := req.GetString("profile", "")
	all := boolArg(req, "all", false)

	switch {
	case all:
		n, err := t.store.InvalidateAll()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalidate failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("🗑️ Invalidated all %d cached entries.", n)), nil

	case key != "":
		found, err := t.store.Invalidate(key)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalidate failed: %v", err)), nil
		}
		if !found {
			return mcp.NewToolResultText(fmt.Sprintf("No cached entry for key `%s`.", shortKey(key))), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("🗑️ Invalidated entry `%s`.", shortKey(key))), nil

	case profile != "":
		n, err := t.store.InvalidateProfile(profile)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalidate failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("🗑️ Invalidated %d entries for profile %q.", n, profile)), nil

	default:
		n, err := t.store.PruneExpired()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("prune failed: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("🧹 Pruned %d expired entries.", n)), nil
	}
}
