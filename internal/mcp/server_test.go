package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pir/internal/models"
	"github.com/joescharf/pir/internal/tracker"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockAPI is an in-memory backend for the tracker.
type mockAPI struct {
	issues []models.Issue
	nextID int64

	updates int

	// createHook runs at the start of CreateIssue.
	createHook func()

	// Optional error injection.
	listErr   error
	createErr error
	updateErr error
	deleteErr error
}

func (m *mockAPI) ListIssues(_ context.Context) ([]models.Issue, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return models.CloneIssues(m.issues), nil
}

func (m *mockAPI) CreateIssue(_ context.Context, issue models.Issue) (*models.Issue, error) {
	if m.createHook != nil {
		m.createHook()
	}
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	issue.ID = models.IDPtr(m.nextID)
	m.issues = append(m.issues, issue)
	return &issue, nil
}

func (m *mockAPI) UpdateIssue(_ context.Context, id int64, issue models.Issue) (*models.Issue, error) {
	m.updates++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	for i := range m.issues {
		if m.issues[i].IDValue() == id {
			issue.ID = models.IDPtr(id)
			m.issues[i] = issue
			return &issue, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *mockAPI) DeleteIssue(_ context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	kept := m.issues[:0]
	for _, i := range m.issues {
		if i.IDValue() != id {
			kept = append(kept, i)
		}
	}
	m.issues = kept
	return nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *mockAPI) {
	t.Helper()
	api := &mockAPI{}
	srv := NewServer(tracker.New(api), "test")
	require.NotNil(t, srv)
	return srv, api
}

// seedIssue adds an issue straight to the mock backend.
func seedIssue(api *mockAPI, title string, status models.IssueStatus) int64 {
	api.nextID++
	api.issues = append(api.issues, models.Issue{
		ID:          models.IDPtr(api.nextID),
		Title:       title,
		Description: title + " description",
		Status:      status,
	})
	return api.nextID
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultIssues parses the text result as an issue list.
func resultIssues(t *testing.T, result *mcpgo.CallToolResult) []models.Issue {
	t.Helper()
	text := resultText(t, result)
	var issues []models.Issue
	require.NoError(t, json.Unmarshal([]byte(text), &issues), "failed to parse result JSON: %s", text)
	return issues
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMCPIntegration_ListTools(t *testing.T) {
	srv, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv)

	reqJSON := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	respMsg := mcpSrv.HandleMessage(context.Background(), reqJSON)
	require.NotNil(t, respMsg)

	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)

	var rpcResp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpcResp))

	toolNames := make(map[string]bool)
	for _, tool := range rpcResp.Result.Tools {
		toolNames[tool.Name] = true
	}
	for _, name := range []string{"pir_list_issues", "pir_create_issue", "pir_update_issue_status", "pir_delete_issue"} {
		assert.True(t, toolNames[name], "expected tool %q to be registered", name)
	}
}

func TestMCPIntegration_CallTool(t *testing.T) {
	srv, api := newTestServer(t)
	seedIssue(api, "first", models.IssueStatusOpen)

	reqJSON := []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"pir_list_issues","arguments":{}}}`)
	respMsg := srv.MCPServer().HandleMessage(context.Background(), reqJSON)
	respBytes, err := json.Marshal(respMsg)
	require.NoError(t, err)
	assert.Contains(t, string(respBytes), "first description")
}

// Compile-time interface check.
var _ Tracker = (*tracker.Tracker)(nil)

func TestListIssues_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListIssues(context.Background(), callToolReq("pir_list_issues", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestListIssues_WithIssues(t *testing.T) {
	srv, api := newTestServer(t)
	seedIssue(api, "first", models.IssueStatusOpen)
	seedIssue(api, "second", models.IssueStatusClosed)

	result, err := srv.handleListIssues(context.Background(), callToolReq("pir_list_issues", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	issues := resultIssues(t, result)
	require.Len(t, issues, 2)
	assert.Equal(t, "first", issues[0].Title)
	assert.Equal(t, models.IssueStatusClosed, issues[1].Status)
}

func TestListIssues_BackendDown(t *testing.T) {
	srv, api := newTestServer(t)
	api.listErr = errors.New("connection refused")

	result, err := srv.handleListIssues(context.Background(), callToolReq("pir_list_issues", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, tracker.FetchError.Message(), resultText(t, result))
}

func TestCreateIssue(t *testing.T) {
	srv, api := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("pir_create_issue", map[string]any{
		"title":       "Login broken",
		"description": "500 on submit",
		"status":      "in_progress",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	issues := resultIssues(t, result)
	require.Len(t, issues, 1)
	assert.Equal(t, "Login broken", issues[0].Title)
	assert.Equal(t, models.IssueStatusInProgress, issues[0].Status)
	assert.Len(t, api.issues, 1)
}

func TestCreateIssue_DefaultStatus(t *testing.T) {
	srv, api := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("pir_create_issue", map[string]any{
		"title":       "A",
		"description": "B",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, api.issues, 1)
	assert.Equal(t, models.IssueStatusOpen, api.issues[0].Status)
}

func TestCreateIssue_Validation(t *testing.T) {
	srv, api := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateIssue(ctx, callToolReq("pir_create_issue", map[string]any{"description": "B"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "title")

	result, err = srv.handleCreateIssue(ctx, callToolReq("pir_create_issue", map[string]any{"title": "A"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "description")

	result, err = srv.handleCreateIssue(ctx, callToolReq("pir_create_issue", map[string]any{
		"title": "A", "description": "B", "status": "done",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	assert.Empty(t, api.issues)
}

func TestCreateIssue_WhileAnotherCreateIsInFlight(t *testing.T) {
	srv, api := newTestServer(t)
	ctx := context.Background()

	var second *mcpgo.CallToolResult
	api.createHook = func() {
		// Only the first create reaches the backend; this runs inside it.
		var err error
		second, err = srv.handleCreateIssue(ctx, callToolReq("pir_create_issue", map[string]any{
			"title": "B", "description": "second",
		}))
		require.NoError(t, err)
	}

	first, err := srv.handleCreateIssue(ctx, callToolReq("pir_create_issue", map[string]any{
		"title": "A", "description": "first",
	}))
	require.NoError(t, err)
	assert.False(t, first.IsError)

	require.NotNil(t, second)
	assert.True(t, second.IsError)
	assert.Contains(t, resultText(t, second), "already in progress")

	require.Len(t, api.issues, 1)
	assert.Equal(t, "A", api.issues[0].Title)
}

func TestCreateIssue_BlankTitle(t *testing.T) {
	srv, api := newTestServer(t)

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("pir_create_issue", map[string]any{
		"title": "   ", "description": "B",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "title is required")
	assert.Empty(t, api.issues)
}

func TestCreateIssue_BackendError(t *testing.T) {
	srv, api := newTestServer(t)
	api.createErr = errors.New("boom")

	result, err := srv.handleCreateIssue(context.Background(), callToolReq("pir_create_issue", map[string]any{
		"title": "A", "description": "B",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, tracker.CreateError.Message(), resultText(t, result))
}

func TestUpdateIssueStatus(t *testing.T) {
	srv, api := newTestServer(t)
	id := seedIssue(api, "first", models.IssueStatusOpen)

	// The tracker has not loaded yet; the handler loads before resolving the id.
	result, err := srv.handleUpdateIssueStatus(context.Background(), callToolReq("pir_update_issue_status", map[string]any{
		"id":     float64(id),
		"status": "closed",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	issues := resultIssues(t, result)
	require.Len(t, issues, 1)
	assert.Equal(t, models.IssueStatusClosed, issues[0].Status)
	assert.Equal(t, "first", issues[0].Title)
	assert.Equal(t, 1, api.updates)
}

func TestUpdateIssueStatus_UnknownID(t *testing.T) {
	srv, api := newTestServer(t)
	seedIssue(api, "first", models.IssueStatusOpen)

	result, err := srv.handleUpdateIssueStatus(context.Background(), callToolReq("pir_update_issue_status", map[string]any{
		"id":     float64(42),
		"status": "closed",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "issue not found: 42")
	assert.Zero(t, api.updates)
}

func TestUpdateIssueStatus_InvalidStatus(t *testing.T) {
	srv, api := newTestServer(t)
	id := seedIssue(api, "first", models.IssueStatusOpen)

	result, err := srv.handleUpdateIssueStatus(context.Background(), callToolReq("pir_update_issue_status", map[string]any{
		"id":     float64(id),
		"status": "done",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, api.updates)
}

func TestUpdateIssueStatus_BackendError(t *testing.T) {
	srv, api := newTestServer(t)
	id := seedIssue(api, "first", models.IssueStatusOpen)
	api.updateErr = errors.New("boom")

	result, err := srv.handleUpdateIssueStatus(context.Background(), callToolReq("pir_update_issue_status", map[string]any{
		"id":     float64(id),
		"status": "closed",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, tracker.UpdateError.Message(), resultText(t, result))
}

func TestDeleteIssue(t *testing.T) {
	srv, api := newTestServer(t)
	id := seedIssue(api, "first", models.IssueStatusOpen)
	seedIssue(api, "second", models.IssueStatusOpen)

	result, err := srv.handleDeleteIssue(context.Background(), callToolReq("pir_delete_issue", map[string]any{
		"id": float64(id),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	issues := resultIssues(t, result)
	require.Len(t, issues, 1)
	assert.Equal(t, "second", issues[0].Title)
}

func TestDeleteIssue_MissingID(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleDeleteIssue(context.Background(), callToolReq("pir_delete_issue", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "id")
}

func TestDeleteIssue_BackendError(t *testing.T) {
	srv, api := newTestServer(t)
	api.deleteErr = errors.New("boom")

	result, err := srv.handleDeleteIssue(context.Background(), callToolReq("pir_delete_issue", map[string]any{
		"id": float64(1),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, tracker.DeleteError.Message(), resultText(t, result))
}
