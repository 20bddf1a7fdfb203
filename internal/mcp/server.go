package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/pir/internal/models"
)

// Tracker is the issue state the tools drive. *tracker.Tracker satisfies it.
type Tracker interface {
	Snapshot() models.State
	SubmitDraft(ctx context.Context, draft models.Issue) bool
	LoadIssues(ctx context.Context)
	ChangeStatus(ctx context.Context, id int64, status models.IssueStatus)
	DeleteIssue(ctx context.Context, id int64)
}

// Server exposes the issue tracker as MCP tools.
type Server struct {
	tracker Tracker
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(t Tracker, version string) *Server {
	return &Server{tracker: t, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("pir", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueStatusTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// pir_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pir_list_issues",
		mcp.WithDescription("Reload and list all issues. Returns a JSON array of issues with id, title, description, and status."),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.tracker.LoadIssues(ctx)
	return s.issuesResult()
}

// pir_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pir_create_issue",
		mcp.WithDescription("Create a new issue. Returns the reloaded issue list."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Issue description")),
		mcp.WithString("status", mcp.Description("Initial status: open (default), in-progress, closed")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || title == "" {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	desc, err := request.RequireString("description")
	if err != nil || desc == "" {
		return mcp.NewToolResultError("missing required parameter: description"), nil
	}

	status := models.DefaultStatus
	if raw := request.GetString("status", ""); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		status = st
	}

	draft := models.Issue{Title: title, Description: desc, Status: status}
	if err := draft.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !s.tracker.SubmitDraft(ctx, draft) {
		return mcp.NewToolResultError("a create is already in progress; try again"), nil
	}
	return s.issuesResult()
}

// pir_update_issue_status
func (s *Server) updateIssueStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pir_update_issue_status",
		mcp.WithDescription("Change the status of an issue. The issue must be in the last loaded list; unknown ids are ignored."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status: open, in-progress, closed")),
	)
	return tool, s.handleUpdateIssueStatus
}

func (s *Server) handleUpdateIssueStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	raw, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	status, err := models.ParseStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// A fresh process has no list yet; load it so the id can be resolved.
	if _, ok := s.tracker.Snapshot().Find(int64(id)); !ok {
		s.tracker.LoadIssues(ctx)
	}
	if _, ok := s.tracker.Snapshot().Find(int64(id)); !ok {
		if msg := s.tracker.Snapshot().Error; msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("issue not found: %d", id)), nil
	}

	s.tracker.ChangeStatus(ctx, int64(id), status)
	return s.issuesResult()
}

// pir_delete_issue
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("pir_delete_issue",
		mcp.WithDescription("Delete an issue by id. Returns the reloaded issue list."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	s.tracker.DeleteIssue(ctx, int64(id))
	return s.issuesResult()
}

// issuesResult reports the tracker's error banner, or the current list.
func (s *Server) issuesResult() (*mcp.CallToolResult, error) {
	state := s.tracker.Snapshot()
	if state.Error != "" {
		return mcp.NewToolResultError(state.Error), nil
	}
	data, err := json.Marshal(state.Issues)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal issues: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
