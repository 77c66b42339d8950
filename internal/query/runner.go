package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/igloolabs/igloo-mcp/internal/cache"
	"github.com/igloolabs/igloo-mcp/internal/config"
)

// Result is the outcome of one remote execution.
type Result struct {
	// ExecutionID identifies this remote run (not a cache key).
	ExecutionID string
	// Columns is explicit column metadata when the transport provides
	// it. Empty means columns must be derived from the rows.
	Columns []string
	// Rows are the result rows as column→value mappings.
	Rows []cache.Row
	// Duration is the wall-clock time of the remote call.
	Duration time.Duration
}

// Runner executes a statement against the remote warehouse. igloo-mcp
// never speaks the warehouse protocol itself — authentication and
// execution are delegated through this boundary.
type Runner interface {
	Execute(ctx context.Context, profile config.Profile, statement string, session map[string]string) (*Result, error)
}

// CLIRunner delegates execution to the Snowflake CLI ("snow sql") and
// parses its JSON output. The CLI owns credentials and connections; the
// runner only passes the profile's connection name and session overrides
// as flags.
type CLIRunner struct {
	// Binary is the CLI executable. Defaults to "snow".
	Binary string
}

// NewCLIRunner creates a runner that shells out to the snow CLI.
func NewCLIRunner() *CLIRunner {
	return &CLIRunner{Binary: "snow"}
}

// sessionFlags maps session-context keys to snow CLI flags.
var sessionFlags = map[string]string{
	"warehouse": "--warehouse",
	"database":  "--database",
	"schema":    "--schema",
	"role":      "--role",
}

// Execute runs the statement through the CLI with JSON output.
func (r *CLIRunner) Execute(ctx context.Context, profile config.Profile, statement string, session map[string]string) (*Result, error) {
	binary := r.Binary
	if binary == "" {
		binary = "snow"
	}

	args := []string{"sql", "-q", statement, "--format", "json"}
	if profile.Connection != "" {
		args = append(args, "-c", profile.Connection)
	}
	for _, key := range []string{"warehouse", "database", "schema", "role"} {
		if v, ok := session[key]; ok && v != "" {
			args = append(args, sessionFlags[key], v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("query: %s: %w: %s", binary, err, errTail(stderr.String()))
	}

	rows, err := parseRows(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query: parse %s output: %w", binary, err)
	}

	return &Result{
		ExecutionID: uuid.NewString(),
		Rows:        rows,
		Duration:    time.Since(start),
	}, nil
}

// parseRows decodes the CLI's JSON output: an array of row objects.
// An empty result set may arrive as "[]" or as no output at all.
func parseRows(out []byte) ([]cache.Row, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var rows []cache.Row
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// errTail returns the last line of CLI stderr — snow prints a multi-line
// banner before the actual error.
func errTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
