package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/parser"
	"github.com/starford/wunjo/internal/testutil"
	"github.com/starford/wunjo/internal/wellness"
)

func testServer(t *testing.T) (*Server, *wellness.Service) {
	t.Helper()
	svc, _ := testutil.TestService(t)
	testutil.SeedCategory(t, svc, "c1")
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we
	// call the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "log_entry":
		result, err = srv.logEntry(ctx, req)
	case "set_goal":
		result, err = srv.setGoal(ctx, req)
	case "get_summary":
		result, err = srv.getSummary(ctx, req)
	case "get_entry_contract":
		result, err = srv.getEntryContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListCategories(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "list_categories", nil)
	if res.IsError {
		t.Fatalf("error: %s", resultText(res))
	}
	var cats []models.Category
	if err := json.Unmarshal([]byte(resultText(res)), &cats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(cats) != 1 || cats[0].ID != "c1" {
		t.Errorf("categories = %+v", cats)
	}
}

func TestLogEntry(t *testing.T) {
	srv, svc := testServer(t)

	res := callTool(t, srv, "log_entry", map[string]interface{}{
		"date":         "2026-03-01",
		"category_id":  "c1",
		"metric_id":    "m1",
		"duration_min": float64(30),
		"value":        7.5,
		"notes":        "morning run",
	})
	if res.IsError {
		t.Fatalf("error: %s", resultText(res))
	}
	var entry models.Entry
	if err := json.Unmarshal([]byte(resultText(res)), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.ID == "" || entry.Value != 7.5 {
		t.Errorf("entry = %+v", entry)
	}
	if got := svc.Entries(); len(got) != 1 {
		t.Errorf("service entries = %d, want 1", len(got))
	}
}

func TestLogEntryMissingDate(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "log_entry", map[string]interface{}{
		"category_id": "c1",
	})
	if !res.IsError {
		t.Fatal("expected error for missing date")
	}
}

func TestLogEntryUnknownCategory(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "log_entry", map[string]interface{}{
		"date":        "2026-03-01",
		"category_id": "ghost",
	})
	if !res.IsError {
		t.Fatal("expected error for unknown category")
	}
}

func TestSetGoalUpsert(t *testing.T) {
	srv, svc := testServer(t)

	res := callTool(t, srv, "set_goal", map[string]interface{}{
		"category_id": "c1",
		"metric_id":   "m1",
		"target":      25.0,
	})
	if res.IsError {
		t.Fatalf("error: %s", resultText(res))
	}
	res = callTool(t, srv, "set_goal", map[string]interface{}{
		"category_id": "c1",
		"metric_id":   "m1",
		"target":      40.0,
	})
	if res.IsError {
		t.Fatalf("error: %s", resultText(res))
	}

	goals := svc.Goals()
	if len(goals) != 1 {
		t.Fatalf("goals = %d, want 1", len(goals))
	}
	if goals[0].Target != 40 {
		t.Errorf("target = %v, want 40", goals[0].Target)
	}
}

func TestGetSummary(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.AddEntry(context.Background(), models.Entry{
		Date:       "2026-03-01",
		CategoryID: "c1",
		MetricID:   "m1",
		Duration:   20,
		Value:      5,
	}); err != nil {
		t.Fatal(err)
	}

	res := callTool(t, srv, "get_summary", nil)
	var sum wellness.Summary
	if err := json.Unmarshal([]byte(resultText(res)), &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum.Entries != 1 {
		t.Errorf("summary entries = %d, want 1", sum.Entries)
	}
}

func TestGetEntryContract(t *testing.T) {
	srv, _ := testServer(t)

	res := callTool(t, srv, "get_entry_contract", nil)
	text := resultText(res)
	if !strings.Contains(text, "category_id") || !strings.Contains(text, "entries") {
		t.Errorf("contract missing expected fields: %q", text[:80])
	}
}

// The example document published in the contract must decode through the
// import parser without dropping fields.
func TestEntryContractExampleParses(t *testing.T) {
	start := strings.Index(EntryFormatContract, "```json")
	if start < 0 {
		t.Fatal("contract has no json example")
	}
	start += len("```json")
	end := strings.Index(EntryFormatContract[start:], "```")
	if end < 0 {
		t.Fatal("json example not fenced")
	}
	example := EntryFormatContract[start : start+end]

	ex, err := parser.Parse([]byte(example))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ex.Device != "device-name" {
		t.Errorf("device = %q, want %q", ex.Device, "device-name")
	}
	if len(ex.Entries) != 1 || ex.Entries[0].CategoryID != "fitness" {
		t.Errorf("entries = %+v", ex.Entries)
	}
}
