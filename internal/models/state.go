package models

// State is the client-side view of the tracker: the displayed list, the form
// draft, whether a create is in flight, and the last failure message.
type State struct {
	Issues    []Issue
	Draft     Issue
	IsLoading bool
	Error     string
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Draft = s.Draft.Clone()
	out.Issues = CloneIssues(s.Issues)
	return out
}

// CloneIssues deep-copies a list of issues. A nil list becomes an empty one.
func CloneIssues(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	for i, issue := range issues {
		out[i] = issue.Clone()
	}
	return out
}

// Find returns the issue with the given id from the displayed list.
func (s State) Find(id int64) (Issue, bool) {
	for _, issue := range s.Issues {
		if issue.ID != nil && *issue.ID == id {
			return issue, true
		}
	}
	return Issue{}, false
}
