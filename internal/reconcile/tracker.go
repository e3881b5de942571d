// Package reconcile converges local task state with an external issue
// tracker. Each task/issue pair gets a verdict; a resolution policy decides
// which side moves. Conflicts are first-class outcomes, not errors.
package reconcile

import (
	"context"
	"time"
)

// IssueState is the remote lifecycle state. Trackers collapse their richer
// state machines into open/closed for reconciliation.
type IssueState string

const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// Issue is the tracker-side view of a task.
type Issue struct {
	Number    int
	Title     string
	Body      string
	State     IssueState
	Labels    []string
	URL       string
	UpdatedAt time.Time
}

// IssueFilter narrows remote issue listings. Zero values mean "any".
type IssueFilter struct {
	State  IssueState
	Labels []string
	Limit  int
}

// Tracker is the external tracker boundary. Every call is fallible; the
// engine turns failures into per-item report entries and continues the
// batch. GetIssue returns nil, nil when the issue does not exist.
type Tracker interface {
	GetIssue(ctx context.Context, number int) (*Issue, error)
	CreateIssue(ctx context.Context, title, body string, labels []string) (*Issue, error)
	UpdateIssueState(ctx context.Context, number int, state IssueState) error
	AddComment(ctx context.Context, number int, body string) error
	ListIssues(ctx context.Context, filter IssueFilter) ([]Issue, error)
}
