// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Wunjo tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/wellness"
)

// Server wraps the MCP server with Wunjo tools.
type Server struct {
	mcp *server.MCPServer
	svc *wellness.Service
}

// New creates a new MCP server with all Wunjo tools registered.
func New(svc *wellness.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Wunjo",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List all wellness categories in display order, with their metrics."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("log_entry",
		mcp.WithDescription("Record a wellness entry for a category. "+
			"Fields follow the entry export contract; read it first via the "+
			"get_entry_contract tool or the wunjo://entry-format resource."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Entry date in YYYY-MM-DD form")),
		mcp.WithString("category_id", mcp.Required(), mcp.Description("ID of an existing category")),
		mcp.WithString("metric_id", mcp.Description("Optional metric ID within the category")),
		mcp.WithNumber("duration_min", mcp.Description("Duration in minutes (non-negative)")),
		mcp.WithNumber("value", mcp.Description("Measured amount in the metric's unit")),
		mcp.WithString("notes", mcp.Description("Optional free-form notes")),
	), s.logEntry)

	s.mcp.AddTool(mcp.NewTool("set_goal",
		mcp.WithDescription("Set the target for a (category, metric) pair. "+
			"An existing goal for the pair is updated in place."),
		mcp.WithString("category_id", mcp.Required(), mcp.Description("ID of an existing category")),
		mcp.WithString("metric_id", mcp.Required(), mcp.Description("Metric ID within the category")),
		mcp.WithNumber("target", mcp.Required(), mcp.Description("Goal target in the metric's unit")),
	), s.setGoal)

	s.mcp.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Return the aggregate dashboard summary: per-category entry counts, total durations and values."),
	), s.getSummary)

	s.mcp.AddTool(mcp.NewTool("get_entry_contract",
		mcp.WithDescription("Returns the canonical Wunjo entry export contract. "+
			"Call this before logging entries or producing import files."),
	), s.getEntryContract)

	// Resource: entry format contract.
	s.mcp.AddResource(
		mcp.NewResource("wunjo://entry-format", "Entry Format Contract",
			mcp.WithResourceDescription("Canonical entry export format accepted by the import inbox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readEntryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Categories(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) logEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	categoryID, err := req.RequireString("category_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entry := models.Entry{
		Date:       date,
		CategoryID: categoryID,
		MetricID:   req.GetString("metric_id", ""),
		Duration:   req.GetInt("duration_min", 0),
		Value:      req.GetFloat("value", 0),
		Notes:      req.GetString("notes", ""),
	}
	created, err := s.svc.AddEntry(ctx, entry)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(created, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) setGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categoryID, err := req.RequireString("category_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	metricID, err := req.RequireString("metric_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireFloat("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	goal, err := s.svc.SetGoal(ctx, models.Goal{
		CategoryID: categoryID,
		MetricID:   metricID,
		Target:     target,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("set goal: %v", err)), nil
	}
	out, _ := json.MarshalIndent(goal, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Summary(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getEntryContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(EntryFormatContract), nil
}

func (s *Server) readEntryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "wunjo://entry-format",
			MIMEType: "text/markdown",
			Text:     EntryFormatContract,
		},
	}, nil
}
