package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/sprint"
	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/storage"
	"github.com/tracklet/tracklet/internal/storage/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tracklet.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func TestTaskLifecycle(t *testing.T) {
	store := openTestStore(t)
	tasks := NewTaskService(store, store)
	ctx := context.Background()
	meta := fact.Metadata{Actor: "rivera", Source: "test"}

	created, err := tasks.Create(ctx, CreateTaskInput{
		ProjectID: "proj-1",
		Title:     "Wire the parser",
		Priority:  "high",
		Meta:      meta,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != task.StatusTodo || created.Priority != task.PriorityHigh {
		t.Fatalf("created task = %+v", created)
	}
	if created.Version != 1 {
		t.Fatalf("created version = %d, want 1", created.Version)
	}

	points := 5
	estimated, err := tasks.Estimate(ctx, created.ID, &points, nil, meta)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if estimated.Points() != 5 {
		t.Fatalf("estimated points = %d, want 5", estimated.Points())
	}

	started, err := tasks.ChangeStatus(ctx, created.ID, task.StatusInProgress, meta)
	if err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}
	if started.Status != task.StatusInProgress || started.StartedAt == nil {
		t.Fatalf("started task = %+v", started)
	}

	blocked, err := tasks.Block(ctx, created.ID, "waiting on review", meta)
	if err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	if blocked.Status != task.StatusBlocked || blocked.BlockedReason != "waiting on review" {
		t.Fatalf("blocked task = %+v", blocked)
	}

	unblocked, err := tasks.Unblock(ctx, created.ID, meta)
	if err != nil {
		t.Fatalf("Unblock() error = %v", err)
	}
	if unblocked.Status != task.StatusInProgress {
		t.Fatalf("unblocked status = %s, want the pre-block in_progress", unblocked.Status)
	}
	if unblocked.BlockedReason != "" {
		t.Fatalf("unblocked task kept reason %q", unblocked.BlockedReason)
	}

	hours := 6.5
	completed, err := tasks.Complete(ctx, created.ID, &hours, meta)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Status != task.StatusDone || completed.CompletedAt == nil {
		t.Fatalf("completed task = %+v", completed)
	}
	if completed.ActualHours == nil || *completed.ActualHours != 6.5 {
		t.Fatalf("actual hours = %v", completed.ActualHours)
	}

	if err := tasks.Delete(ctx, created.ID, "done and dusted", meta); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	got, err := tasks.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Fatalf("deleted task still readable: %+v", got)
	}

	// The full history survives the deletion.
	latest, err := store.LatestVersion(ctx, fact.AggregateTask, created.ID)
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 7 {
		t.Fatalf("LatestVersion() = %d, want 7", latest)
	}
}

func TestTaskLinksAndSprintMembership(t *testing.T) {
	store := openTestStore(t)
	tasks := NewTaskService(store, store)
	ctx := context.Background()
	meta := fact.Metadata{Source: "test"}

	created, err := tasks.Create(ctx, CreateTaskInput{ProjectID: "proj-1", Title: "Seed", Meta: meta})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := tasks.AddToSprint(ctx, created.ID, "sprint-1", meta); err != nil {
		t.Fatalf("AddToSprint() error = %v", err)
	}
	linked, err := tasks.LinkCommit(ctx, created.ID, "abc123", "feat/parser", "wire the parser", meta)
	if err != nil {
		t.Fatalf("LinkCommit() error = %v", err)
	}
	if len(linked.LinkedCommits) != 1 || linked.Branch != "feat/parser" {
		t.Fatalf("linked task = %+v", linked)
	}
	linked, err = tasks.LinkPR(ctx, created.ID, 42, "https://example.test/pr/42", "Parser", meta)
	if err != nil {
		t.Fatalf("LinkPR() error = %v", err)
	}
	if len(linked.LinkedPRs) != 1 || linked.LinkedPRs[0] != 42 {
		t.Fatalf("linked prs = %v", linked.LinkedPRs)
	}
	if linked.SprintID != "sprint-1" {
		t.Fatalf("sprint id = %q, want sprint-1", linked.SprintID)
	}

	removed, err := tasks.RemoveFromSprint(ctx, created.ID, meta)
	if err != nil {
		t.Fatalf("RemoveFromSprint() error = %v", err)
	}
	if removed.SprintID != "" {
		t.Fatalf("removed task still in sprint %q", removed.SprintID)
	}

	updated, err := tasks.Update(ctx, created.ID, map[string]any{"title": "Renamed", "priority": "critical"}, meta)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Title != "Renamed" || updated.Priority != task.PriorityCritical {
		t.Fatalf("updated task = %+v", updated)
	}

	assigned, err := tasks.Assign(ctx, created.ID, "rivera", meta)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if assigned.Assignee != "rivera" {
		t.Fatalf("assignee = %q", assigned.Assignee)
	}
}

func TestTaskMutationsRequireExistence(t *testing.T) {
	store := openTestStore(t)
	tasks := NewTaskService(store, store)
	ctx := context.Background()

	if _, err := tasks.ChangeStatus(ctx, "task-missing", task.StatusDone, fact.Metadata{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ChangeStatus(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := tasks.Block(ctx, "task-missing", "nope", fact.Metadata{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Block(missing) error = %v, want ErrNotFound", err)
	}
	if err := tasks.Delete(ctx, "task-missing", "", fact.Metadata{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSprintLifecycle(t *testing.T) {
	store := openTestStore(t)
	sprints := NewSprintService(store, store, store)
	tasks := NewTaskService(store, store)
	ctx := context.Background()
	meta := fact.Metadata{Source: "test"}

	created, err := sprints.Create(ctx, CreateSprintInput{
		ProjectID: "proj-1",
		Name:      "Sprint 12",
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Meta:      meta,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != sprint.StatusPlanned {
		t.Fatalf("created sprint status = %s", created.Status)
	}

	started, err := sprints.Start(ctx, created.ID, meta)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if started.Status != sprint.StatusActive {
		t.Fatalf("started sprint status = %s", started.Status)
	}
	if _, err := sprints.Start(ctx, created.ID, meta); err == nil {
		t.Fatal("Start() accepted an already-active sprint")
	}

	goaled, err := sprints.SetGoal(ctx, created.ID, "Ship the reducer", meta)
	if err != nil {
		t.Fatalf("SetGoal() error = %v", err)
	}
	if goaled.Goal != "Ship the reducer" {
		t.Fatalf("goal = %q", goaled.Goal)
	}

	item, err := tasks.Create(ctx, CreateTaskInput{ProjectID: "proj-1", Title: "Only item", Meta: meta})
	if err != nil {
		t.Fatalf("task Create() error = %v", err)
	}
	points := 8
	if _, err := tasks.Estimate(ctx, item.ID, &points, nil, meta); err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if _, err := tasks.AddToSprint(ctx, item.ID, created.ID, meta); err != nil {
		t.Fatalf("AddToSprint() error = %v", err)
	}
	if _, err := tasks.Complete(ctx, item.ID, nil, meta); err != nil {
		t.Fatalf("task Complete() error = %v", err)
	}

	completed, err := sprints.Complete(ctx, created.ID, meta)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Status != sprint.StatusCompleted || completed.CompletedPoints != 8 || completed.TotalPoints != 8 {
		t.Fatalf("completed sprint = %+v", completed)
	}

	report, err := sprints.Velocity(ctx, "proj-1", 5)
	if err != nil {
		t.Fatalf("Velocity() error = %v", err)
	}
	if report.SprintCount != 1 || report.Average != 8 {
		t.Fatalf("velocity report = %+v", report)
	}

	if _, err := sprints.Cancel(ctx, created.ID, "", meta); err == nil {
		t.Fatal("Cancel() accepted a completed sprint")
	}
}

func TestSprintCancelAndRecordVelocity(t *testing.T) {
	store := openTestStore(t)
	sprints := NewSprintService(store, store, store)
	ctx := context.Background()
	meta := fact.Metadata{Source: "test"}

	created, err := sprints.Create(ctx, CreateSprintInput{
		ProjectID: "proj-1",
		Name:      "Sprint 13",
		StartDate: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC),
		Meta:      meta,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	recorded, err := sprints.RecordVelocity(ctx, created.ID, 17, meta)
	if err != nil {
		t.Fatalf("RecordVelocity() error = %v", err)
	}
	if recorded.Velocity != 17 {
		t.Fatalf("velocity = %d, want 17", recorded.Velocity)
	}

	cancelled, err := sprints.Cancel(ctx, created.ID, "scope collapsed", meta)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if cancelled.Status != sprint.StatusCancelled {
		t.Fatalf("cancelled sprint status = %s", cancelled.Status)
	}
}

func TestProjectLifecycle(t *testing.T) {
	store := openTestStore(t)
	projects := NewProjectService(store, store)
	ctx := context.Background()
	meta := fact.Metadata{Actor: "rivera"}

	created, err := projects.Create(ctx, "Tracklet", "Tracking core", meta)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	updated, err := projects.Update(ctx, created.ID, map[string]any{"description": "Event-sourced tracking core"}, meta)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Description != "Event-sourced tracking core" {
		t.Fatalf("updated project = %+v", updated)
	}

	configured, err := projects.ChangeSettings(ctx, created.ID, map[string]any{"default_branch": "main"}, meta)
	if err != nil {
		t.Fatalf("ChangeSettings() error = %v", err)
	}
	if configured.Settings["default_branch"] != "main" {
		t.Fatalf("settings = %v", configured.Settings)
	}

	archived, err := projects.Archive(ctx, created.ID, "superseded", meta)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if archived.Status != "archived" {
		t.Fatalf("archived project status = %s", archived.Status)
	}

	listed, err := projects.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("List() returned %d projects, want 1", len(listed))
	}

	if _, err := projects.Update(ctx, "proj-missing", map[string]any{"name": "x"}, meta); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}
}
