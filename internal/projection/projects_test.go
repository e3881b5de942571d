package projection

import (
	"context"
	"reflect"
	"testing"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/project"
)

func TestProjectSyncFromFacts(t *testing.T) {
	store := openTestStore(t)
	projector := NewProjectProjector(store, store)
	ctx := context.Background()

	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   "proj-1",
		Kind:          fact.ProjectCreated,
		Payload:       fact.ProjectCreatedPayload{Name: "Tracklet", Description: "Tracking core"},
	})
	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   "proj-1",
		Kind:          fact.ProjectSettingsChanged,
		Payload:       fact.ProjectSettingsChangedPayload{Settings: map[string]any{"default_branch": "main"}},
	})

	state, err := projector.SyncFromFacts(ctx, "proj-1")
	if err != nil {
		t.Fatalf("SyncFromFacts() error = %v", err)
	}
	if state == nil || state.Status != project.StatusActive || state.Version != 2 {
		t.Fatalf("synced project = %+v", state)
	}
	if state.Settings["default_branch"] != "main" {
		t.Fatalf("settings = %v", state.Settings)
	}

	got, err := projector.Get(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, *state) {
		t.Fatalf("stored row diverges from replayed state:\nrow:   %+v\nstate: %+v", got, state)
	}

	missing, err := projector.Get(ctx, "proj-missing")
	if err != nil {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if missing != nil {
		t.Fatalf("Get(missing) = %+v, want nil", missing)
	}

	projects, err := projector.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ID != "proj-1" {
		t.Fatalf("List() = %v", projects)
	}
}

func TestProjectSyncArchived(t *testing.T) {
	store := openTestStore(t)
	projector := NewProjectProjector(store, store)
	ctx := context.Background()

	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   "proj-1",
		Kind:          fact.ProjectCreated,
		Payload:       fact.ProjectCreatedPayload{Name: "Tracklet"},
	})
	appendTestFact(t, store, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   "proj-1",
		Kind:          fact.ProjectArchived,
		Payload:       fact.ProjectArchivedPayload{Reason: "superseded"},
	})

	state, err := projector.SyncFromFacts(ctx, "proj-1")
	if err != nil {
		t.Fatalf("SyncFromFacts() error = %v", err)
	}
	if state == nil || state.Status != project.StatusArchived {
		t.Fatalf("archived project = %+v", state)
	}
}
