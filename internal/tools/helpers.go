// Package tools implements the MCP tool handlers for igloo-mcp.
//
// Each tool is a struct that receives its dependencies at construction
// and exposes Definition() for registration plus Handle() compatible
// with mcp-go's CallToolRequest signature. One file per tool.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/cache"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// maxTableRows caps how many rows a tool response renders. The full
// result set is still cached; the cap only bounds response size.
const maxTableRows = 50

// markdownTable renders rows using exactly the given column set, in
// order. Cells absent from a row render as empty — the column list is a
// superset of every row's keys, so nothing is dropped.
func markdownTable(columns []string, rows []cache.Row) string {
	if len(columns) == 0 {
		return "_(no columns)_\n"
	}

	var sb strings.Builder
	sb.WriteString("| " + strings.Join(columns, " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(columns)) + "\n")

	shown := rows
	if len(shown) > maxTableRows {
		shown = shown[:maxTableRows]
	}
	for _, row := range shown {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok {
				cells[i] = formatValue(v)
			}
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	if len(rows) > maxTableRows {
		sb.WriteString(fmt.Sprintf("\n📊 Showing %d of %d rows\n", maxTableRows, len(rows)))
	}
	return sb.String()
}

// formatValue renders a row cell for markdown output.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		// Pipes and newlines break markdown table cells.
		s := strings.ReplaceAll(val, "|", "\\|")
		return strings.ReplaceAll(s, "\n", " ")
	case float64:
		// JSON numbers arrive as float64; print integers without a
		// trailing ".000000".
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatContext renders a session context as "k=v" pairs in key order.
func formatContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + ctx[k]
	}
	return strings.Join(pairs, ", ")
}

// shortKey abbreviates a cache key for display.
func shortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12] + "…"
}
