// Package service is the synchronous invocation surface over the fact log
// and the projections. Every mutating method follows the same shape: build
// the fact, append it, re-sync the projection, return the resulting state.
package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/platform/id"
	"github.com/tracklet/tracklet/internal/projection"
	"github.com/tracklet/tracklet/internal/storage"
)

const tracerName = "github.com/tracklet/tracklet/internal/service"

// TaskService exposes the task operations. All handles are injected; the
// service holds no global state.
type TaskService struct {
	log       storage.FactLog
	projector *projection.TaskProjector
	tracer    trace.Tracer
}

// NewTaskService wires a task service over the given log and task store.
func NewTaskService(log storage.FactLog, tasks storage.TaskStore) *TaskService {
	return &TaskService{
		log:       log,
		projector: projection.NewTaskProjector(log, tasks),
		tracer:    otel.Tracer(tracerName),
	}
}

// CreateTaskInput carries the fields of a new task. Status, priority, and
// type default in the reducer when absent.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description string
	Priority    string
	Type        string
	Assignee    string
	Meta        fact.Metadata
}

// Create appends the creation fact for a fresh task id and materializes
// the new task.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.create")
	defer span.End()

	taskID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("assign task id: %w", err)
	}

	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskCreated,
		Payload: fact.TaskCreatedPayload{
			Title:       in.Title,
			ProjectID:   in.ProjectID,
			Description: in.Description,
			Priority:    in.Priority,
			Type:        in.Type,
			Assignee:    in.Assignee,
		},
		Metadata: in.Meta,
	})
}

// Update applies a partial field update to an existing task.
func (s *TaskService) Update(ctx context.Context, taskID string, fields map[string]any, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.update")
	defer span.End()

	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskUpdated,
		Payload:       fact.TaskUpdatedPayload{Fields: fields},
		Metadata:      meta,
	})
}

// ChangeStatus moves a task through the workflow. The prior status is
// recorded on the fact for audit reads.
func (s *TaskService) ChangeStatus(ctx context.Context, taskID string, to task.Status, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.change_status")
	defer span.End()

	current, err := s.projector.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskStatusChanged,
		Payload:       fact.TaskStatusChangedPayload{From: string(current.Status), To: string(to)},
		Metadata:      meta,
	})
}

// Estimate overwrites both estimate fields; an absent field clears it.
func (s *TaskService) Estimate(ctx context.Context, taskID string, points *int, hours *float64, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.estimate")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskEstimated,
		Payload:       fact.TaskEstimatedPayload{Points: points, Hours: hours},
		Metadata:      meta,
	})
}

// Assign sets the assignee; an empty assignee clears the assignment.
func (s *TaskService) Assign(ctx context.Context, taskID, assignee string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.assign")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskAssigned,
		Payload:       fact.TaskAssignedPayload{Assignee: assignee},
		Metadata:      meta,
	})
}

// AddToSprint places the task in a sprint.
func (s *TaskService) AddToSprint(ctx context.Context, taskID, sprintID string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.add_to_sprint")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskAddedToSprint,
		Payload:       fact.TaskAddedToSprintPayload{SprintID: sprintID},
		Metadata:      meta,
	})
}

// RemoveFromSprint returns the task to the backlog.
func (s *TaskService) RemoveFromSprint(ctx context.Context, taskID string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.remove_from_sprint")
	defer span.End()

	current, err := s.projector.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskRemovedFromSprint,
		Payload:       fact.TaskRemovedFromSprintPayload{SprintID: current.SprintID},
		Metadata:      meta,
	})
}

// LinkCommit records a commit against the task. Repeats are kept as-is.
func (s *TaskService) LinkCommit(ctx context.Context, taskID, commitSHA, branch, message string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.link_commit")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskLinkedToCommit,
		Payload:       fact.TaskLinkedToCommitPayload{CommitSHA: commitSHA, Branch: branch, Message: message},
		Metadata:      meta,
	})
}

// LinkPR records a pull request against the task.
func (s *TaskService) LinkPR(ctx context.Context, taskID string, number int, url, title string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.link_pr")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskLinkedToPR,
		Payload:       fact.TaskLinkedToPRPayload{Number: number, URL: url, Title: title},
		Metadata:      meta,
	})
}

// Block marks the task blocked with a reason.
func (s *TaskService) Block(ctx context.Context, taskID, reason string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.block")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskBlocked,
		Payload:       fact.TaskBlockedPayload{Reason: reason},
		Metadata:      meta,
	})
}

// Unblock clears the block and restores the status the task held before
// it, derived from the fact history.
func (s *TaskService) Unblock(ctx context.Context, taskID string, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.unblock")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	previous, err := s.statusBeforeBlock(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskUnblocked,
		Payload:       fact.TaskUnblockedPayload{PreviousStatus: previous},
		Metadata:      meta,
	})
}

// Complete finishes the task, optionally recording actual hours.
func (s *TaskService) Complete(ctx context.Context, taskID string, actualHours *float64, meta fact.Metadata) (*task.Task, error) {
	ctx, span := s.tracer.Start(ctx, "task.complete")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskCompleted,
		Payload:       fact.TaskCompletedPayload{ActualHours: actualHours},
		Metadata:      meta,
	})
}

// Delete tombstones the task. Its projection row disappears; its facts
// remain.
func (s *TaskService) Delete(ctx context.Context, taskID, reason string, meta fact.Metadata) error {
	ctx, span := s.tracer.Start(ctx, "task.delete")
	defer span.End()

	if err := s.mustExist(ctx, taskID); err != nil {
		return err
	}
	_, err := s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   taskID,
		Kind:          fact.TaskDeleted,
		Payload:       fact.TaskDeletedPayload{Reason: reason},
		Metadata:      meta,
	})
	return err
}

// Get reads one task; nil means it does not exist.
func (s *TaskService) Get(ctx context.Context, taskID string) (*task.Task, error) {
	return s.projector.Get(ctx, taskID)
}

// List reads tasks matching the filter.
func (s *TaskService) List(ctx context.Context, filter storage.TaskFilter) ([]task.Task, error) {
	return s.projector.List(ctx, filter)
}

// Board reads a project's tasks grouped by status.
func (s *TaskService) Board(ctx context.Context, projectID, sprintID string) (map[task.Status][]task.Task, error) {
	return s.projector.Board(ctx, projectID, sprintID)
}

// Sync re-materializes one task from its facts.
func (s *TaskService) Sync(ctx context.Context, taskID string) (*task.Task, error) {
	return s.projector.SyncFromFacts(ctx, taskID)
}

func (s *TaskService) apply(ctx context.Context, f fact.Fact) (*task.Task, error) {
	if _, err := s.log.AppendFact(ctx, f); err != nil {
		return nil, err
	}
	return s.projector.SyncFromFacts(ctx, f.AggregateID)
}

func (s *TaskService) mustExist(ctx context.Context, taskID string) error {
	current, err := s.projector.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}
	return nil
}

// statusBeforeBlock replays the task's facts up to, but not including, the
// most recent block and returns the status it held there.
func (s *TaskService) statusBeforeBlock(ctx context.Context, taskID string) (string, error) {
	var state *task.Task
	var previous string
	var lastVersion uint64

	for {
		page, err := s.log.ListFacts(ctx, fact.AggregateTask, taskID, lastVersion, 200)
		if err != nil {
			return "", err
		}
		if len(page) == 0 {
			return previous, nil
		}
		for _, f := range page {
			if f.Kind == fact.TaskBlocked && state != nil {
				previous = string(state.Status)
			}
			state, err = task.Reduce(state, f)
			if err != nil {
				return "", err
			}
			lastVersion = f.Version
		}
		if len(page) < 200 {
			return previous, nil
		}
	}
}
