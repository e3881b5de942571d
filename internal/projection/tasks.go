package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/storage"
)

// TaskProjector materializes task read models from the fact log.
type TaskProjector struct {
	Log   storage.FactLog
	Tasks storage.TaskStore
}

// NewTaskProjector wires a task projector over the given log and store.
func NewTaskProjector(log storage.FactLog, tasks storage.TaskStore) *TaskProjector {
	return &TaskProjector{Log: log, Tasks: tasks}
}

// SyncFromFacts replays the task's facts and overwrites its projection row.
// A deleted task removes the row instead; the fact log keeps the history.
// It returns the resulting state, or nil when the task has no facts or was
// deleted.
func (p *TaskProjector) SyncFromFacts(ctx context.Context, taskID string) (*task.Task, error) {
	state, err := Replay(ctx, p.Log, fact.AggregateTask, taskID, task.Reduce)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	if state.Deleted {
		if err := p.Tasks.DeleteTask(ctx, taskID); err != nil {
			return nil, fmt.Errorf("remove deleted task %s: %w", taskID, err)
		}
		return nil, nil
	}

	if err := p.Tasks.PutTask(ctx, *state); err != nil {
		return nil, fmt.Errorf("store task projection %s: %w", taskID, err)
	}
	return state, nil
}

// Get reads the materialized task row. A missing row returns nil, not an
// error; absence is a normal answer for a read model.
func (p *TaskProjector) Get(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := p.Tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// List reads materialized task rows matching the filter.
func (p *TaskProjector) List(ctx context.Context, filter storage.TaskFilter) ([]task.Task, error) {
	return p.Tasks.ListTasks(ctx, filter)
}

// Board groups a project's tasks by status for a kanban-style view. An
// empty sprintID covers the whole project.
func (p *TaskProjector) Board(ctx context.Context, projectID, sprintID string) (map[task.Status][]task.Task, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}

	tasks, err := p.Tasks.ListTasks(ctx, storage.TaskFilter{
		ProjectID: projectID,
		SprintID:  sprintID,
		Limit:     1000,
	})
	if err != nil {
		return nil, err
	}

	board := map[task.Status][]task.Task{
		task.StatusTodo:       nil,
		task.StatusInProgress: nil,
		task.StatusBlocked:    nil,
		task.StatusDone:       nil,
		task.StatusCancelled:  nil,
	}
	for _, t := range tasks {
		board[t.Status] = append(board[t.Status], t)
	}
	return board, nil
}
