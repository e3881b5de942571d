package task

import (
	"fmt"

	"github.com/tracklet/tracklet/internal/domain/fact"
)

// Reduce folds one fact into the prior task state. It is pure: no I/O, no
// clock reads; all timestamps come from the fact itself. Unknown kinds are
// no-ops so newer writers never break older readers.
func Reduce(state *Task, f fact.Fact) (*Task, error) {
	created, ok := f.Payload.(fact.TaskCreatedPayload)
	if ok {
		next := &Task{
			ID:          f.AggregateID,
			ProjectID:   created.ProjectID,
			Title:       created.Title,
			Description: created.Description,
			Status:      StatusTodo,
			Priority:    PriorityMedium,
			Type:        TypeTask,
			Assignee:    created.Assignee,
			CreatedAt:   f.CreatedAt,
			UpdatedAt:   f.CreatedAt,
			Version:     f.Version,
		}
		if created.Status != "" {
			next.Status = Status(created.Status)
		}
		if created.Priority != "" {
			next.Priority = Priority(created.Priority)
		}
		if created.Type != "" {
			next.Type = Type(created.Type)
		}
		return next, nil
	}

	if state == nil {
		return nil, fmt.Errorf("task %s: %s fact before creation", f.AggregateID, f.Kind)
	}

	next := *state
	next.LinkedCommits = append([]string(nil), state.LinkedCommits...)
	next.LinkedPRs = append([]int(nil), state.LinkedPRs...)
	next.Version = f.Version

	switch p := f.Payload.(type) {
	case fact.TaskUpdatedPayload:
		applyFields(&next, p.Fields)
	case fact.TaskStatusChangedPayload:
		next.Status = Status(p.To)
		if next.Status == StatusInProgress && next.StartedAt == nil {
			started := f.CreatedAt
			next.StartedAt = &started
		}
		if next.Status == StatusDone {
			completed := f.CreatedAt
			next.CompletedAt = &completed
		}
	case fact.TaskEstimatedPayload:
		next.EstimatedPoints = p.Points
		next.EstimatedHours = p.Hours
	case fact.TaskAssignedPayload:
		next.Assignee = p.Assignee
	case fact.TaskAddedToSprintPayload:
		next.SprintID = p.SprintID
	case fact.TaskRemovedFromSprintPayload:
		next.SprintID = ""
	case fact.TaskLinkedToCommitPayload:
		next.LinkedCommits = append(next.LinkedCommits, p.CommitSHA)
		if p.Branch != "" {
			next.Branch = p.Branch
		}
	case fact.TaskLinkedToPRPayload:
		next.LinkedPRs = append(next.LinkedPRs, p.Number)
	case fact.TaskBlockedPayload:
		next.Status = StatusBlocked
		next.BlockedReason = p.Reason
	case fact.TaskUnblockedPayload:
		next.Status = StatusTodo
		if p.PreviousStatus != "" {
			next.Status = Status(p.PreviousStatus)
		}
		next.BlockedReason = ""
	case fact.TaskCompletedPayload:
		next.Status = StatusDone
		completed := f.CreatedAt
		next.CompletedAt = &completed
		if p.ActualHours != nil {
			next.ActualHours = p.ActualHours
		}
	case fact.TaskDeletedPayload:
		next.Deleted = true
	default:
		// Unknown or foreign kind: state is unchanged, including UpdatedAt.
		next.UpdatedAt = state.UpdatedAt
		return &next, nil
	}

	next.UpdatedAt = f.CreatedAt
	return &next, nil
}

// applyFields folds a task.updated field map into the state. Only known
// fields apply; anything else is ignored for forward compatibility.
func applyFields(t *Task, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "title":
			if s, ok := value.(string); ok && s != "" {
				t.Title = s
			}
		case "description":
			if s, ok := value.(string); ok {
				t.Description = s
			}
		case "priority":
			if s, ok := value.(string); ok && s != "" {
				t.Priority = Priority(s)
			}
		case "type":
			if s, ok := value.(string); ok && s != "" {
				t.Type = Type(s)
			}
		case "assignee":
			if s, ok := value.(string); ok {
				t.Assignee = s
			}
		case "external_issue_number":
			switch n := value.(type) {
			case int:
				t.ExternalIssueNumber = n
			case float64:
				// JSON numbers decode as float64.
				t.ExternalIssueNumber = int(n)
			}
		}
	}
}
