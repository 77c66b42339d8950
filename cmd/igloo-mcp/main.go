// igloo-mcp: Snowflake query MCP server
//
// A thin MCP server that exposes warehouse query execution as tools,
// delegating authentication and execution to the Snowflake CLI and
// caching result sets locally so agents can re-read results without
// re-running remote queries.
//
// Usage:
//
//	igloo-mcp serve    # Start MCP server (stdio transport)
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	iglooserver "github.com/igloolabs/igloo-mcp/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("igloo-mcp v%s\n", iglooserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := iglooserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Warnings go to stderr — MCP's stdio transport owns stdout.
	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `igloo-mcp v%s — Snowflake query MCP server

Usage:
  igloo-mcp serve    Start the MCP server (stdio transport)

Configuration:
  Profiles and cache settings live in ~/.igloo/config.toml.
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "igloo": {
        "command": "igloo-mcp",
        "args": ["serve"]
      }
    }
  }
`, iglooserver.Version)
}
