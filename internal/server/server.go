// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it builds the config, cache store,
// runner, and execution service, and injects them into the tools. No
// business logic lives here — only wiring.
package server

import (
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/igloolabs/igloo-mcp/internal/cache"
	"github.com/igloolabs/igloo-mcp/internal/config"
	"github.com/igloolabs/igloo-mcp/internal/query"
	"github.com/igloolabs/igloo-mcp/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
//
// The returned cleanup function closes the cache store's database
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if cache init failed.
func New() (*server.MCPServer, func(), error) {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return nil, noop, fmt.Errorf("loading config: %w", err)
	}

	s := server.NewMCPServer(
		"igloo-mcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Result cache ---
	//
	// The cache is an independent subsystem: if it fails to initialize,
	// queries still work — they just re-execute remotely every time.
	// We log a warning and skip the cache-management tools.

	cleanup := noop
	var store *cache.Store
	if !cfg.Cache.Disabled {
		store, err = cache.New(storeConfig(cfg.Cache))
		if err != nil {
			log.Printf("WARNING: result cache disabled: %v", err)
			store = nil
		} else {
			cleanup = func() {
				if err := store.Close(); err != nil {
					log.Printf("WARNING: cache store close: %v", err)
				}
			}
		}
	}

	// --- Execution service ---

	runner := query.NewCLIRunner()
	svc := query.NewService(runner, store, cfg)

	// --- Register tools ---

	executeTool := tools.NewExecuteQueryTool(svc)
	s.AddTool(executeTool.Definition(), executeTool.Handle)

	connTool := tools.NewTestConnectionTool(svc)
	s.AddTool(connTool.Definition(), connTool.Handle)

	if store != nil {
		statsTool := tools.NewCacheStatsTool(store)
		s.AddTool(statsTool.Definition(), statsTool.Handle)

		invalidateTool := tools.NewCacheInvalidateTool(store)
		s.AddTool(invalidateTool.Definition(), invalidateTool.Handle)

		historyTool := tools.NewQueryHistoryTool(store)
		s.AddTool(historyTool.Definition(), historyTool.Handle)
	}

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when the cache
// is disabled or hasn't been initialized.
func noop() {}

// storeConfig maps the config file's cache section onto the store's
// config, filling unset fields from the store defaults.
func storeConfig(cc config.CacheConfig) cache.Config {
	sc := cache.DefaultConfig()
	if cc.DataDir != "" {
		sc.DataDir = cc.DataDir
	}
	sc.TTL = time.Duration(cc.TTLHours) * time.Hour
	sc.MaxResultRows = cc.MaxResultRows
	return sc
}

// serverInstructions returns the system instructions that tell the AI
// how to use igloo-mcp effectively.
func serverInstructions() string {
	return `You have access to igloo-mcp, a warehouse query server with a result cache.

## Tools

- execute_query: run SQL against the warehouse. Results are cached by
  (statement, profile, session context) — repeating a query costs nothing.
  Use refresh=true when you need data fresher than the cache TTL.
- test_connection: verify a profile can reach the warehouse.
- query_history: list recently cached result sets.
- cache_stats: cache size and hit counts.
- cache_invalidate: drop cached entries by key, by profile, or entirely.

## How caching works

The cache key is derived from the statement text (whitespace-insensitive),
the profile name, and the effective session context (warehouse, database,
schema, role). Overriding any of these produces a different key. Leaving a
setting out and passing it as null are the same thing — both fall back to
the profile's configuration and hit the same cache entry.

## Important rules

- Prefer cached results: do not pass refresh=true unless the user needs
  live data or just changed the underlying tables.
- After DML (INSERT/UPDATE/DELETE/CREATE), invalidate affected cached
  results with cache_invalidate before re-querying.
- Large result sets render truncated in the response but are cached in
  full — narrow the query instead of re-running it.`
}
