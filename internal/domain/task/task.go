// Package task defines the task projection record and its pure reducer.
package task

import (
	"time"
)

// Status is the workflow state of a task.
type Status string

const (
	// StatusTodo marks a task not yet started.
	StatusTodo Status = "todo"
	// StatusInProgress marks a task being worked on.
	StatusInProgress Status = "in_progress"
	// StatusBlocked marks a task that cannot proceed.
	StatusBlocked Status = "blocked"
	// StatusDone marks a finished task.
	StatusDone Status = "done"
	// StatusCancelled marks an abandoned task.
	StatusCancelled Status = "cancelled"
)

// Closed reports whether the status counts as finished for external
// tracker mapping (closed remote issues map to done/cancelled).
func (s Status) Closed() bool {
	return s == StatusDone || s == StatusCancelled
}

// Priority orders tasks on boards and lists.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank returns the sort rank of a priority; critical sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Type categorizes the work item.
type Type string

const (
	TypeTask    Type = "task"
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
	TypeChore   Type = "chore"
)

// Task is the materialized current-state view of one task aggregate,
// derived purely from its fact sequence. It is disposable: rebuilding
// from version 1 always reproduces it.
type Task struct {
	ID          string
	ProjectID   string
	SprintID    string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Type        Type
	Assignee    string

	EstimatedPoints *int
	EstimatedHours  *float64
	ActualHours     *float64

	LinkedCommits []string
	LinkedPRs     []int
	Branch        string

	BlockedReason string

	// ExternalIssueNumber links the task to its tracker issue (0 = unlinked).
	ExternalIssueNumber int

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Deleted marks a task whose projection row should be removed.
	Deleted bool

	// Version is the last fact version folded into this state.
	Version uint64
}

// Points returns the estimated points, or 0 when unestimated.
func (t Task) Points() int {
	if t.EstimatedPoints == nil {
		return 0
	}
	return *t.EstimatedPoints
}
