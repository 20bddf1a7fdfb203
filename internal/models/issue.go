package models

import (
	"errors"
	"fmt"
	"strings"
)

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in-progress"
	IssueStatusClosed     IssueStatus = "closed"
)

// DefaultStatus is assigned to new issues that don't name a status.
const DefaultStatus = IssueStatusOpen

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
)

// Statuses returns every status in display order.
func Statuses() []IssueStatus {
	return []IssueStatus{IssueStatusOpen, IssueStatusInProgress, IssueStatusClosed}
}

// Valid reports whether s is one of the known statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInProgress, IssueStatusClosed:
		return true
	}
	return false
}

// Label returns the human-readable name shown in select controls.
func (s IssueStatus) Label() string {
	switch s {
	case IssueStatusOpen:
		return "Open"
	case IssueStatusInProgress:
		return "In Progress"
	case IssueStatusClosed:
		return "Closed"
	default:
		return string(s)
	}
}

// ParseStatus converts user input to an IssueStatus.
// "in_progress" is accepted as an alias for "in-progress".
func ParseStatus(s string) (IssueStatus, error) {
	st := IssueStatus(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q (want open, in-progress or closed)", s)
	}
	return st, nil
}

// Issue represents one tracked problem. ID is nil until the backend assigns one.
type Issue struct {
	ID          *int64      `json:"id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      IssueStatus `json:"status"`
}

// NewDraft returns an empty issue with the default status.
func NewDraft() Issue {
	return Issue{Status: DefaultStatus}
}

// HasID reports whether the backend has assigned an id.
func (i Issue) HasID() bool { return i.ID != nil }

// IDValue returns the id, or 0 for a draft.
func (i Issue) IDValue() int64 {
	if i.ID == nil {
		return 0
	}
	return *i.ID
}

// WithStatus returns a copy of the issue with only the status replaced.
func (i Issue) WithStatus(status IssueStatus) Issue {
	out := i.Clone()
	out.Status = status
	return out
}

// Clone returns a copy that shares no pointers with i.
func (i Issue) Clone() Issue {
	out := i
	if i.ID != nil {
		id := *i.ID
		out.ID = &id
	}
	return out
}

// Validate checks the required fields only.
func (i Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(i.Description) == "" {
		return ErrDescriptionRequired
	}
	return nil
}

// IDPtr is a convenience for building issues with a known id.
func IDPtr(id int64) *int64 { return &id }
