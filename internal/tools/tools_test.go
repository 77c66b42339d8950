package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/igloolabs/igloo-mcp/internal/cache"
	"github.com/igloolabs/igloo-mcp/internal/config"
	"github.com/igloolabs/igloo-mcp/internal/query"
)

// --- Test helpers ---

// fakeRunner returns canned rows for every execution.
type fakeRunner struct {
	rows  []cache.Row
	err   error
	calls int
}

func (f *fakeRunner) Execute(ctx context.Context, profile config.Profile, statement string, session map[string]string) (*query.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &query.Result{ExecutionID: "exec-test", Rows: f.rows}, nil
}

func testConfig() config.Config {
	return config.Config{
		DefaultProfile: "prod",
		Profiles: map[string]config.Profile{
			"prod": {Connection: "prod", Warehouse: "WH"},
		},
	}
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(cache.Config{DataDir: t.TempDir(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestService(t *testing.T, runner query.Runner, store *cache.Store) *query.Service {
	t.Helper()
	return query.NewService(runner, store, testConfig())
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- ExecuteQueryTool ---

func TestExecuteQueryTool_Handle_Success(t *testing.T) {
	runner := &fakeRunner{rows: []cache.Row{
		{"ID": float64(1), "NAME": "Alice"},
		{"ID": float64(2), "NAME": "Bob", "EMAIL": "bob@x.com"},
	}}
	tool := NewExecuteQueryTool(newTestService(t, runner, newTestStore(t)))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"statement": "select * from users",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "Query Result") {
		t.Errorf("result should contain header, got: %s", text)
	}
	// EMAIL appears only in row 2 and must still be a rendered column.
	if !strings.Contains(text, "EMAIL") {
		t.Errorf("derived union column missing from output: %s", text)
	}
	if !strings.Contains(text, "bob@x.com") {
		t.Errorf("row 2's email value missing from output: %s", text)
	}
	if !strings.Contains(text, "differing column sets") {
		t.Errorf("ragged-schema warning missing: %s", text)
	}
}

func TestExecuteQueryTool_Handle_CacheHitOnRepeat(t *testing.T) {
	runner := &fakeRunner{rows: []cache.Row{{"N": float64(1)}}}
	tool := NewExecuteQueryTool(newTestService(t, runner, newTestStore(t)))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"statement": "select 1",
	}

	if result, _ := tool.Handle(context.Background(), req); isErrorResult(result) {
		t.Fatalf("first call errored: %s", getResultText(result))
	}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if !strings.Contains(getResultText(result), "cache hit") {
		t.Errorf("second call should report a cache hit: %s", getResultText(result))
	}
	if runner.calls != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls)
	}
}

func TestExecuteQueryTool_Handle_RefreshReExecutes(t *testing.T) {
	runner := &fakeRunner{rows: []cache.Row{{"N": float64(1)}}}
	tool := NewExecuteQueryTool(newTestService(t, runner, newTestStore(t)))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"statement": "select 1"}
	if _, err := tool.Handle(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	req.Params.Arguments = map[string]interface{}{"statement": "select 1", "refresh": true}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(getResultText(result), "cache hit") {
		t.Error("refresh should not serve from cache")
	}
	if runner.calls != 2 {
		t.Errorf("runner called %d times, want 2", runner.calls)
	}
}

func TestExecuteQueryTool_Handle_MissingStatement(t *testing.T) {
	tool := NewExecuteQueryTool(newTestService(t, &fakeRunner{}, nil))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("missing statement should be a tool error")
	}
}

func TestExecuteQueryTool_Handle_RunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("warehouse unreachable")}
	tool := NewExecuteQueryTool(newTestService(t, runner, nil))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"statement": "select 1"}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("runner failure should be a tool error")
	}
	if !strings.Contains(getResultText(result), "warehouse unreachable") {
		t.Errorf("error text should carry the cause: %s", getResultText(result))
	}
}

// --- TestConnectionTool ---

func TestTestConnectionTool_Handle(t *testing.T) {
	runner := &fakeRunner{rows: []cache.Row{{"1": float64(1)}}}
	tool := NewTestConnectionTool(newTestService(t, runner, nil))

	req := mcp.CallToolRequest{}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got: %s", getResultText(result))
	}
	if !strings.Contains(getResultText(result), "Connection OK") {
		t.Errorf("result = %s", getResultText(result))
	}
}

// --- CacheStatsTool ---

func TestCacheStatsTool_Handle(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, &fakeRunner{rows: []cache.Row{{"N": float64(1)}}}, store)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"statement": "select 1"}
	if _, err := NewExecuteQueryTool(svc).Handle(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	tool := NewCacheStatsTool(store)
	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "**Entries**: 1") {
		t.Errorf("stats should report one entry: %s", text)
	}
	if !strings.Contains(text, "prod") {
		t.Errorf("stats should list the profile: %s", text)
	}
}

// --- CacheInvalidateTool ---

func TestCacheInvalidateTool_Handle_All(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, &fakeRunner{rows: []cache.Row{{"N": float64(1)}}}, store)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"statement": "select 1"}
	if _, err := NewExecuteQueryTool(svc).Handle(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	tool := NewCacheInvalidateTool(store)
	invReq := mcp.CallToolRequest{}
	invReq.Params.Arguments = map[string]interface{}{"all": true}

	result, err := tool.Handle(context.Background(), invReq)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "Invalidated all 1") {
		t.Errorf("result = %s", getResultText(result))
	}
}

func TestCacheInvalidateTool_Handle_UnknownKey(t *testing.T) {
	tool := NewCacheInvalidateTool(newTestStore(t))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"key": "deadbeef"}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No cached entry") {
		t.Errorf("result = %s", getResultText(result))
	}
}

func TestCacheInvalidateTool_Handle_DefaultPrunes(t *testing.T) {
	tool := NewCacheInvalidateTool(newTestStore(t))

	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "Pruned 0 expired") {
		t.Errorf("result = %s", getResultText(result))
	}
}

// --- QueryHistoryTool ---

func TestQueryHistoryTool_Handle(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, &fakeRunner{rows: []cache.Row{{"N": float64(1)}}}, store)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"statement": "select 1"}
	if _, err := NewExecuteQueryTool(svc).Handle(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	tool := NewQueryHistoryTool(store)
	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Recent Cached Results") {
		t.Errorf("result = %s", text)
	}
	if !strings.Contains(text, "profile **prod**") {
		t.Errorf("history should name the profile: %s", text)
	}
	if !strings.Contains(text, "warehouse=WH") {
		t.Errorf("history should render the session context: %s", text)
	}
}

func TestQueryHistoryTool_Handle_Empty(t *testing.T) {
	tool := NewQueryHistoryTool(newTestStore(t))

	result, err := tool.Handle(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "No cached results") {
		t.Errorf("result = %s", getResultText(result))
	}
}

// --- helpers ---

func TestMarkdownTable_RendersUnionColumns(t *testing.T) {
	columns := []string{"id", "name", "email"}
	rows := []cache.Row{
		{"id": float64(1), "name": "Alice"},
		{"id": float64(2), "name": "Bob", "email": "bob@x.com"},
	}

	table := markdownTable(columns, rows)
	if !strings.Contains(table, "| id | name | email |") {
		t.Errorf("header mismatch: %s", table)
	}
	if !strings.Contains(table, "bob@x.com") {
		t.Errorf("late column value missing: %s", table)
	}
	// Row 1 has no email — the cell renders empty, not dropped.
	if !strings.Contains(table, "| 1 | Alice |  |") {
		t.Errorf("absent cell should render empty: %s", table)
	}
}

func TestMarkdownTable_TruncatesLongResults(t *testing.T) {
	rows := make([]cache.Row, maxTableRows+10)
	for i := range rows {
		rows[i] = cache.Row{"n": float64(i)}
	}

	table := markdownTable([]string{"n"}, rows)
	if !strings.Contains(table, "Showing 50 of 60 rows") {
		t.Errorf("truncation footer missing: %s", table)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"plain", "plain"},
		{"with|pipe", "with\\|pipe"},
		{float64(42), "42"},
		{float64(1.5), "1.5"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := formatValue(tc.in); got != tc.want {
			t.Errorf("formatValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
