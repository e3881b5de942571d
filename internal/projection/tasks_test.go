package projection

import (
	"context"
	"reflect"
	"testing"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/storage"
)

func TestTaskSyncFromFacts(t *testing.T) {
	store := openTestStore(t)
	projector := NewTaskProjector(store, store)
	ctx := context.Background()

	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   "task-1",
		Kind:          fact.TaskCreated,
		Payload:       fact.TaskCreatedPayload{Title: "Wire the parser", ProjectID: "proj-1", Priority: "high"},
		CreatedAt:     at("2026-03-02T09:00:00Z"),
	})
	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   "task-1",
		Kind:          fact.TaskStatusChanged,
		Payload:       fact.TaskStatusChangedPayload{From: "todo", To: "in_progress"},
		CreatedAt:     at("2026-03-02T10:00:00Z"),
	})
	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   "task-1",
		Kind:          fact.TaskStatusChanged,
		Payload:       fact.TaskStatusChangedPayload{From: "in_progress", To: "done"},
		CreatedAt:     at("2026-03-03T15:00:00Z"),
	})

	state, err := projector.SyncFromFacts(ctx, "task-1")
	if err != nil {
		t.Fatalf("SyncFromFacts() error = %v", err)
	}
	if state == nil {
		t.Fatal("SyncFromFacts() returned nil state")
	}
	if state.Status != task.StatusDone || state.Version != 3 {
		t.Fatalf("synced state = %+v", state)
	}
	if state.StartedAt == nil || !state.StartedAt.Equal(at("2026-03-02T10:00:00Z")) {
		t.Fatalf("StartedAt = %v", state.StartedAt)
	}
	if state.CompletedAt == nil || !state.CompletedAt.Equal(at("2026-03-03T15:00:00Z")) {
		t.Fatalf("CompletedAt = %v", state.CompletedAt)
	}

	got, err := projector.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for a synced task")
	}
	if !reflect.DeepEqual(*got, *state) {
		t.Fatalf("stored row diverges from replayed state:\nrow:   %+v\nstate: %+v", *got, *state)
	}
}

func TestTaskSyncIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	projector := NewTaskProjector(store, store)
	ctx := context.Background()

	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   "task-1",
		Kind:          fact.TaskCreated,
		Payload:       fact.TaskCreatedPayload{Title: "Seed", ProjectID: "proj-1"},
		CreatedAt:     at("2026-03-02T09:00:00Z"),
	})

	first, err := projector.SyncFromFacts(ctx, "task-1")
	if err != nil {
		t.Fatalf("first SyncFromFacts() error = %v", err)
	}
	second, err := projector.SyncFromFacts(ctx, "task-1")
	if err != nil {
		t.Fatalf("second SyncFromFacts() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated sync diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestTaskSyncRemovesDeletedRow(t *testing.T) {
	store := openTestStore(t)
	projector := NewTaskProjector(store, store)
	ctx := context.Background()

	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   "task-1",
		Kind:          fact.TaskCreated,
		Payload:       fact.TaskCreatedPayload{Title: "Seed", ProjectID: "proj-1"},
	})
	if _, err := projector.SyncFromFacts(ctx, "task-1"); err != nil {
		t.Fatalf("SyncFromFacts() error = %v", err)
	}

	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   "task-1",
		Kind:          fact.TaskDeleted,
		Payload:       fact.TaskDeletedPayload{Reason: "duplicate"},
	})
	state, err := projector.SyncFromFacts(ctx, "task-1")
	if err != nil {
		t.Fatalf("SyncFromFacts() after delete error = %v", err)
	}
	if state != nil {
		t.Fatalf("deleted task returned state %+v", state)
	}

	got, err := projector.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatalf("deleted task still has a row: %+v", got)
	}

	// The history survives in the log.
	latest, err := store.LatestVersion(ctx, fact.AggregateTask, "task-1")
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 2 {
		t.Fatalf("LatestVersion() = %d, want 2", latest)
	}
}

func TestTaskSyncNoFacts(t *testing.T) {
	store := openTestStore(t)
	projector := NewTaskProjector(store, store)

	state, err := projector.SyncFromFacts(context.Background(), "task-unknown")
	if err != nil {
		t.Fatalf("SyncFromFacts() error = %v", err)
	}
	if state != nil {
		t.Fatalf("unknown task returned state %+v", state)
	}
}

func TestBoardGroupsByStatus(t *testing.T) {
	store := openTestStore(t)
	projector := NewTaskProjector(store, store)
	ctx := context.Background()

	seed := func(id, status string) {
		appendTestFact(t, store, fact.Fact{
			AggregateKind: fact.AggregateTask,
			AggregateID:   id,
			Kind:          fact.TaskCreated,
			Payload:       fact.TaskCreatedPayload{Title: id, ProjectID: "proj-1"},
		})
		if status != "todo" {
			appendTestFact(t, store, fact.Fact{
				AggregateKind: fact.AggregateTask,
				AggregateID:   id,
				Kind:          fact.TaskStatusChanged,
				Payload:       fact.TaskStatusChangedPayload{To: status},
			})
		}
		if _, err := projector.SyncFromFacts(ctx, id); err != nil {
			t.Fatalf("SyncFromFacts(%s) error = %v", id, err)
		}
	}
	seed("task-todo", "todo")
	seed("task-doing", "in_progress")
	seed("task-done", "done")

	board, err := projector.Board(ctx, "proj-1", "")
	if err != nil {
		t.Fatalf("Board() error = %v", err)
	}
	if len(board[task.StatusTodo]) != 1 || board[task.StatusTodo][0].ID != "task-todo" {
		t.Fatalf("todo column = %v", board[task.StatusTodo])
	}
	if len(board[task.StatusInProgress]) != 1 || len(board[task.StatusDone]) != 1 {
		t.Fatalf("board columns = %d in progress, %d done", len(board[task.StatusInProgress]), len(board[task.StatusDone]))
	}
	if len(board[task.StatusBlocked]) != 0 || len(board[task.StatusCancelled]) != 0 {
		t.Fatal("empty columns are not empty")
	}

	if _, err := projector.Board(ctx, "", ""); err == nil {
		t.Fatal("Board() accepted an empty project id")
	}

	// The board filter is a thin wrapper over List.
	listed, err := projector.List(ctx, storage.TaskFilter{ProjectID: "proj-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("List() returned %d tasks, want 3", len(listed))
	}
}
