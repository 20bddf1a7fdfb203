// Package tracker holds the issue client state and the operations that move
// it: load, create, change status and delete. Every successful mutation is
// followed by a full reload of the list; local state is never patched.
package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joescharf/pir/internal/models"
)

// API is the backend surface the tracker needs. *client.Client satisfies it.
type API interface {
	ListIssues(ctx context.Context) ([]models.Issue, error)
	CreateIssue(ctx context.Context, issue models.Issue) (*models.Issue, error)
	UpdateIssue(ctx context.Context, id int64, issue models.Issue) (*models.Issue, error)
	DeleteIssue(ctx context.Context, id int64) error
}

// ErrorKind identifies which operation failed. Each kind maps to one fixed,
// user-facing message.
type ErrorKind int

const (
	FetchError ErrorKind = iota + 1
	CreateError
	UpdateError
	DeleteError
)

// Message returns the banner text for the error kind.
func (k ErrorKind) Message() string {
	switch k {
	case FetchError:
		return "Failed to fetch issues. Make sure the backend is running."
	case CreateError:
		return "Failed to create issue"
	case UpdateError:
		return "Failed to update issue"
	case DeleteError:
		return "Failed to delete issue"
	default:
		return ""
	}
}

// Tracker owns the client state. All methods are safe for concurrent use; the
// mutex is never held across a backend call.
type Tracker struct {
	api API

	mu    sync.Mutex
	state models.State

	// Reload ordering: each LoadIssues takes the next sequence number before
	// it sends; responses older than the last applied one are dropped.
	reloadSeq  uint64
	appliedSeq uint64
}

// New creates a tracker with an empty list and a fresh draft.
func New(api API) *Tracker {
	return &Tracker{
		api: api,
		state: models.State{
			Issues: []models.Issue{},
			Draft:  models.NewDraft(),
		},
	}
}

// Snapshot returns a deep copy of the current state.
func (t *Tracker) Snapshot() models.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Draft returns a copy of the form draft.
func (t *Tracker) Draft() models.Issue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Draft.Clone()
}

// SetDraft replaces the form draft. Drafts never carry an id. While a create
// is in flight the draft belongs to it and SetDraft reports false.
func (t *Tracker) SetDraft(d models.Issue) bool {
	d = normalizeDraft(d)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsLoading {
		return false
	}
	t.state.Draft = d
	return true
}

func normalizeDraft(d models.Issue) models.Issue {
	d = d.Clone()
	d.ID = nil
	if d.Status == "" {
		d.Status = models.DefaultStatus
	}
	return d
}

// LoadIssues replaces the list with the backend's. On failure the list is kept
// and the fetch error is recorded.
func (t *Tracker) LoadIssues(ctx context.Context) {
	t.mu.Lock()
	t.reloadSeq++
	seq := t.reloadSeq
	t.mu.Unlock()

	issues, err := t.api.ListIssues(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if seq < t.appliedSeq {
		slog.Debug("discarding stale issue reload", "seq", seq, "applied", t.appliedSeq)
		return
	}
	t.appliedSeq = seq
	if err != nil {
		slog.Warn("load issues failed", "error", err)
		t.state.Error = FetchError.Message()
		return
	}
	t.state.Issues = withIDs(issues)
	t.state.Error = ""
}

// CreateIssue submits the current draft and reports whether a request was
// sent. It does nothing when the draft is missing a required field or when
// another create is still in flight.
func (t *Tracker) CreateIssue(ctx context.Context) bool {
	t.mu.Lock()
	draft, ok := t.beginCreate()
	t.mu.Unlock()
	if !ok {
		return false
	}
	t.create(ctx, draft)
	return true
}

// SubmitDraft sets the draft and creates it in one step, so a concurrent
// submit cannot swap the draft in between. It reports false, leaving the
// draft untouched, when another create is in flight; an invalid draft is
// stored but not sent.
func (t *Tracker) SubmitDraft(ctx context.Context, d models.Issue) bool {
	d = normalizeDraft(d)
	t.mu.Lock()
	if t.state.IsLoading {
		t.mu.Unlock()
		return false
	}
	t.state.Draft = d
	draft, ok := t.beginCreate()
	t.mu.Unlock()
	if !ok {
		return false
	}
	t.create(ctx, draft)
	return true
}

// beginCreate claims the loading flag for a valid draft. Caller holds mu.
func (t *Tracker) beginCreate() (models.Issue, bool) {
	if t.state.IsLoading {
		return models.Issue{}, false
	}
	draft := t.state.Draft.Clone()
	if err := draft.Validate(); err != nil {
		slog.Debug("create skipped", "reason", err)
		return models.Issue{}, false
	}
	t.state.IsLoading = true
	return draft, true
}

func (t *Tracker) create(ctx context.Context, draft models.Issue) {
	defer func() {
		t.mu.Lock()
		t.state.IsLoading = false
		t.mu.Unlock()
	}()

	if _, err := t.api.CreateIssue(ctx, draft); err != nil {
		t.fail(CreateError, err)
		return
	}

	t.LoadIssues(ctx)

	t.mu.Lock()
	t.state.Draft = models.NewDraft()
	t.state.Error = ""
	t.mu.Unlock()
}

// DeleteIssue removes an issue and reloads the list.
func (t *Tracker) DeleteIssue(ctx context.Context, id int64) {
	if err := t.api.DeleteIssue(ctx, id); err != nil {
		t.fail(DeleteError, err)
		return
	}
	t.LoadIssues(ctx)
	t.clearError()
}

// ChangeStatus sends the full record of the displayed issue with only its
// status replaced. Unknown ids are ignored and nothing is sent.
func (t *Tracker) ChangeStatus(ctx context.Context, id int64, status models.IssueStatus) {
	t.mu.Lock()
	issue, ok := t.state.Find(id)
	t.mu.Unlock()
	if !ok {
		slog.Debug("status change for unknown issue ignored", "id", id)
		return
	}

	if _, err := t.api.UpdateIssue(ctx, id, issue.WithStatus(status)); err != nil {
		t.fail(UpdateError, err)
		return
	}
	t.LoadIssues(ctx)
	t.clearError()
}

func (t *Tracker) fail(kind ErrorKind, err error) {
	slog.Warn("issue operation failed", "error", err, "message", kind.Message())
	t.mu.Lock()
	t.state.Error = kind.Message()
	t.mu.Unlock()
}

func (t *Tracker) clearError() {
	t.mu.Lock()
	t.state.Error = ""
	t.mu.Unlock()
}

// withIDs copies the listed issues, dropping any the backend sent without an
// id: they cannot be re-statused or deleted.
func withIDs(issues []models.Issue) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	for _, is := range issues {
		if !is.HasID() {
			slog.Warn("dropping listed issue without id", "title", is.Title)
			continue
		}
		out = append(out, is.Clone())
	}
	return out
}
