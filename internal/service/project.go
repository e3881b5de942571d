package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/project"
	"github.com/tracklet/tracklet/internal/platform/id"
	"github.com/tracklet/tracklet/internal/projection"
	"github.com/tracklet/tracklet/internal/storage"
)

// ProjectService exposes the project operations.
type ProjectService struct {
	log       storage.FactLog
	projector *projection.ProjectProjector
	tracer    trace.Tracer
}

// NewProjectService wires a project service over the given log and store.
func NewProjectService(log storage.FactLog, projects storage.ProjectStore) *ProjectService {
	return &ProjectService{
		log:       log,
		projector: projection.NewProjectProjector(log, projects),
		tracer:    otel.Tracer(tracerName),
	}
}

// Create appends the creation fact for a fresh project id and materializes
// the new project.
func (s *ProjectService) Create(ctx context.Context, name, description string, meta fact.Metadata) (*project.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.create")
	defer span.End()

	projectID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("assign project id: %w", err)
	}

	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   projectID,
		Kind:          fact.ProjectCreated,
		Payload:       fact.ProjectCreatedPayload{Name: name, Description: description},
		Metadata:      meta,
	})
}

// Update applies a partial field update to an existing project.
func (s *ProjectService) Update(ctx context.Context, projectID string, fields map[string]any, meta fact.Metadata) (*project.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.update")
	defer span.End()

	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}
	if err := s.mustExist(ctx, projectID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   projectID,
		Kind:          fact.ProjectUpdated,
		Payload:       fact.ProjectUpdatedPayload{Fields: fields},
		Metadata:      meta,
	})
}

// Archive retires a project. Archived projects keep their facts and rows.
func (s *ProjectService) Archive(ctx context.Context, projectID, reason string, meta fact.Metadata) (*project.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.archive")
	defer span.End()

	if err := s.mustExist(ctx, projectID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   projectID,
		Kind:          fact.ProjectArchived,
		Payload:       fact.ProjectArchivedPayload{Reason: reason},
		Metadata:      meta,
	})
}

// ChangeSettings replaces the project settings wholesale.
func (s *ProjectService) ChangeSettings(ctx context.Context, projectID string, settings map[string]any, meta fact.Metadata) (*project.Project, error) {
	ctx, span := s.tracer.Start(ctx, "project.change_settings")
	defer span.End()

	if err := s.mustExist(ctx, projectID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateProject,
		AggregateID:   projectID,
		Kind:          fact.ProjectSettingsChanged,
		Payload:       fact.ProjectSettingsChangedPayload{Settings: settings},
		Metadata:      meta,
	})
}

// Get reads one project; nil means it does not exist.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*project.Project, error) {
	return s.projector.Get(ctx, projectID)
}

// List reads all projects.
func (s *ProjectService) List(ctx context.Context) ([]project.Project, error) {
	return s.projector.List(ctx)
}

// Sync re-materializes one project from its facts.
func (s *ProjectService) Sync(ctx context.Context, projectID string) (*project.Project, error) {
	return s.projector.SyncFromFacts(ctx, projectID)
}

func (s *ProjectService) apply(ctx context.Context, f fact.Fact) (*project.Project, error) {
	if _, err := s.log.AppendFact(ctx, f); err != nil {
		return nil, err
	}
	return s.projector.SyncFromFacts(ctx, f.AggregateID)
}

func (s *ProjectService) mustExist(ctx context.Context, projectID string) error {
	current, err := s.projector.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("project %s: %w", projectID, storage.ErrNotFound)
	}
	return nil
}
