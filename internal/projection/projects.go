package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/project"
	"github.com/tracklet/tracklet/internal/storage"
)

// ProjectProjector materializes project read models from the fact log.
type ProjectProjector struct {
	Log      storage.FactLog
	Projects storage.ProjectStore
}

// NewProjectProjector wires a project projector over the given log and store.
func NewProjectProjector(log storage.FactLog, projects storage.ProjectStore) *ProjectProjector {
	return &ProjectProjector{Log: log, Projects: projects}
}

// SyncFromFacts replays the project's facts and overwrites its projection
// row. It returns the resulting state, or nil when the project has no facts.
func (p *ProjectProjector) SyncFromFacts(ctx context.Context, projectID string) (*project.Project, error) {
	state, err := Replay(ctx, p.Log, fact.AggregateProject, projectID, project.Reduce)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	if err := p.Projects.PutProject(ctx, *state); err != nil {
		return nil, fmt.Errorf("store project projection %s: %w", projectID, err)
	}
	return state, nil
}

// Get reads the materialized project row. A missing row returns nil.
func (p *ProjectProjector) Get(ctx context.Context, projectID string) (*project.Project, error) {
	record, err := p.Projects.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List reads all materialized project rows.
func (p *ProjectProjector) List(ctx context.Context) ([]project.Project, error) {
	return p.Projects.ListProjects(ctx)
}
