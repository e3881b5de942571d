package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/tracklet/tracklet/internal/domain/project"
	"github.com/tracklet/tracklet/internal/storage"
)

func testProject(id string) project.Project {
	created := millis("2026-02-01T00:00:00Z")
	return project.Project{
		ID:        id,
		Name:      "Project " + id,
		Status:    project.StatusActive,
		CreatedAt: created,
		UpdatedAt: created,
		Version:   1,
	}
}

func TestPutProjectRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := testProject("proj-1")
	record.Settings = map[string]any{"default_branch": "main", "sprint_length_days": float64(14)}
	if err := store.PutProject(ctx, record); err != nil {
		t.Fatalf("PutProject() error = %v", err)
	}

	got, err := store.GetProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Name != record.Name || got.Status != project.StatusActive {
		t.Fatalf("GetProject() = %+v", got)
	}
	if got.Settings["default_branch"] != "main" {
		t.Fatalf("settings round-trip = %v", got.Settings)
	}
	if got.Settings["sprint_length_days"] != float64(14) {
		t.Fatalf("numeric setting round-trip = %v", got.Settings["sprint_length_days"])
	}

	// Overwrite with empty settings clears the previous map.
	record.Settings = nil
	record.Version = 2
	if err := store.PutProject(ctx, record); err != nil {
		t.Fatalf("PutProject(overwrite) error = %v", err)
	}
	got, err = store.GetProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetProject() after overwrite error = %v", err)
	}
	if got.Settings != nil {
		t.Fatalf("settings survived the overwrite: %v", got.Settings)
	}

	if _, err := store.GetProject(ctx, "proj-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetProject(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListProjectsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	old := testProject("proj-old")
	recent := testProject("proj-recent")
	recent.CreatedAt = millis("2026-02-15T00:00:00Z")
	for _, record := range []project.Project{old, recent} {
		if err := store.PutProject(ctx, record); err != nil {
			t.Fatalf("PutProject(%s) error = %v", record.ID, err)
		}
	}

	projects, err := store.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("ListProjects() returned %d projects, want 2", len(projects))
	}
	if projects[0].ID != "proj-recent" || projects[1].ID != "proj-old" {
		t.Fatalf("project order = %s, %s", projects[0].ID, projects[1].ID)
	}
}
