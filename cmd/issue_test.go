package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/pir/internal/api"
	"github.com/joescharf/pir/internal/models"
	"github.com/joescharf/pir/internal/store"
	"github.com/joescharf/pir/internal/tracker"
)

// withBackend points api_url at an in-memory reference backend.
func withBackend(t *testing.T) (*bytes.Buffer, store.Store) {
	t.Helper()
	_, out := testEnv(t)

	s, err := store.NewSQLiteStore(store.MemoryPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	srv := httptest.NewServer(api.NewServer(s, "").Router())
	t.Cleanup(srv.Close)

	viper.Set("api_url", srv.URL)
	return out, s
}

func resetAddFlags(t *testing.T, title, desc, status string) {
	t.Helper()
	issueTitle, issueDesc, issueStatus = title, desc, status
	t.Cleanup(func() { issueTitle, issueDesc, issueStatus = "", "", "" })
}

func TestIssueList_Empty(t *testing.T) {
	out, _ := withBackend(t)

	require.NoError(t, issueListRun())
	assert.Contains(t, out.String(), "No issues yet")
}

func TestIssueAddAndList(t *testing.T) {
	out, s := withBackend(t)

	resetAddFlags(t, "Login broken", "500 on submit", "in_progress")
	require.NoError(t, issueAddRun())
	assert.Contains(t, out.String(), "Created issue")
	assert.Contains(t, out.String(), "Login broken")

	stored, err := s.ListIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.IssueStatusInProgress, stored[0].Status)

	out.Reset()
	require.NoError(t, issueListRun())
	assert.Contains(t, out.String(), "Login broken")
	assert.Contains(t, out.String(), "In Progress")
	assert.Contains(t, out.String(), "1 issue(s)")
}

func TestIssueAdd_Validation(t *testing.T) {
	_, s := withBackend(t)

	resetAddFlags(t, "   ", "desc", "open")
	assert.ErrorIs(t, issueAddRun(), models.ErrTitleRequired)

	resetAddFlags(t, "title", "", "open")
	assert.ErrorIs(t, issueAddRun(), models.ErrDescriptionRequired)

	resetAddFlags(t, "title", "desc", "done")
	assert.Error(t, issueAddRun())

	stored, err := s.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIssueStatus(t *testing.T) {
	out, s := withBackend(t)

	issue := &models.Issue{Title: "A", Description: "B", Status: models.IssueStatusOpen}
	require.NoError(t, s.CreateIssue(context.Background(), issue))

	require.NoError(t, issueStatusRun("1", "closed"))
	assert.Contains(t, out.String(), "Issue 1 is now")

	got, err := s.GetIssue(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusClosed, got.Status)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "B", got.Description)
}

func TestIssueStatus_Errors(t *testing.T) {
	withBackend(t)

	err := issueStatusRun("abc", "closed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid issue id")

	err = issueStatusRun("1", "done")
	require.Error(t, err)

	err = issueStatusRun("99", "closed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue not found: 99")
}

func TestIssueDelete(t *testing.T) {
	out, s := withBackend(t)

	require.NoError(t, s.CreateIssue(context.Background(), &models.Issue{Title: "A", Description: "B", Status: models.IssueStatusOpen}))

	require.NoError(t, issueDeleteRun("1"))
	assert.Contains(t, out.String(), "Deleted issue 1")

	stored, err := s.ListIssues(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestIssueCommands_BackendDown(t *testing.T) {
	testEnv(t)
	srv := httptest.NewServer(nil)
	srv.Close()
	viper.Set("api_url", srv.URL)

	err := issueListRun()
	require.Error(t, err)
	assert.Equal(t, tracker.FetchError.Message(), err.Error())

	resetAddFlags(t, "A", "B", "open")
	err = issueAddRun()
	require.Error(t, err)
	assert.Equal(t, tracker.CreateError.Message(), err.Error())

	err = issueDeleteRun("1")
	require.Error(t, err)
	assert.Equal(t, tracker.DeleteError.Message(), err.Error())

	err = issueHealthRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestIssueHealth(t *testing.T) {
	out, _ := withBackend(t)

	require.NoError(t, issueHealthRun())
	assert.Contains(t, out.String(), "healthy")
	assert.Contains(t, out.String(), "API is operational")
}

func TestIssueShow(t *testing.T) {
	out, s := withBackend(t)
	require.NoError(t, s.CreateIssue(context.Background(), &models.Issue{Title: "Login broken", Description: "500 on submit", Status: models.IssueStatusClosed}))

	require.NoError(t, issueShowRun("1"))
	assert.Contains(t, out.String(), "#1")
	assert.Contains(t, out.String(), "Login broken")
	assert.Contains(t, out.String(), "Closed")
	assert.Contains(t, out.String(), "500 on submit")
}

func TestIssueShow_Errors(t *testing.T) {
	withBackend(t)

	err := issueShowRun("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid issue id")

	err = issueShowRun("42")
	require.Error(t, err)
	assert.Equal(t, "issue not found: 42", err.Error())
}

func TestIssueCommands_VerboseNamesBackend(t *testing.T) {
	out, _ := withBackend(t)
	ui.Verbose = true

	require.NoError(t, issueListRun())
	assert.Contains(t, out.String(), "backend: "+viper.GetString("api_url"))

	out.Reset()
	_ = issueShowRun("7")
	assert.Contains(t, out.String(), "/issues/7")
}
