package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/sprint"
	"github.com/tracklet/tracklet/internal/platform/id"
	"github.com/tracklet/tracklet/internal/projection"
	"github.com/tracklet/tracklet/internal/storage"
)

// SprintService exposes the sprint operations.
type SprintService struct {
	log       storage.FactLog
	projector *projection.SprintProjector
	tracer    trace.Tracer
}

// NewSprintService wires a sprint service over the given log and stores.
func NewSprintService(log storage.FactLog, sprints storage.SprintStore, tasks storage.TaskStore) *SprintService {
	return &SprintService{
		log:       log,
		projector: projection.NewSprintProjector(log, sprints, tasks),
		tracer:    otel.Tracer(tracerName),
	}
}

// CreateSprintInput carries the fields of a new sprint.
type CreateSprintInput struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate time.Time
	EndDate   time.Time
	Meta      fact.Metadata
}

// Create appends the creation fact for a fresh sprint id and materializes
// the new sprint.
func (s *SprintService) Create(ctx context.Context, in CreateSprintInput) (*sprint.Sprint, error) {
	ctx, span := s.tracer.Start(ctx, "sprint.create")
	defer span.End()

	sprintID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("assign sprint id: %w", err)
	}

	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateSprint,
		AggregateID:   sprintID,
		Kind:          fact.SprintCreated,
		Payload: fact.SprintCreatedPayload{
			ProjectID: in.ProjectID,
			Name:      in.Name,
			Goal:      in.Goal,
			StartDate: in.StartDate,
			EndDate:   in.EndDate,
		},
		Metadata: in.Meta,
	})
}

// Start activates a planned sprint.
func (s *SprintService) Start(ctx context.Context, sprintID string, meta fact.Metadata) (*sprint.Sprint, error) {
	ctx, span := s.tracer.Start(ctx, "sprint.start")
	defer span.End()

	current, err := s.mustGet(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if current.Status != sprint.StatusPlanned {
		return nil, fmt.Errorf("sprint %s is %s, only a planned sprint can start", sprintID, current.Status)
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateSprint,
		AggregateID:   sprintID,
		Kind:          fact.SprintStarted,
		Payload:       fact.SprintStartedPayload{},
		Metadata:      meta,
	})
}

// SetGoal replaces the sprint goal.
func (s *SprintService) SetGoal(ctx context.Context, sprintID, goal string, meta fact.Metadata) (*sprint.Sprint, error) {
	ctx, span := s.tracer.Start(ctx, "sprint.set_goal")
	defer span.End()

	if _, err := s.mustGet(ctx, sprintID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateSprint,
		AggregateID:   sprintID,
		Kind:          fact.SprintGoalSet,
		Payload:       fact.SprintGoalSetPayload{Goal: goal},
		Metadata:      meta,
	})
}

// Complete freezes the sprint's totals and records its velocity.
func (s *SprintService) Complete(ctx context.Context, sprintID string, meta fact.Metadata) (*sprint.Sprint, error) {
	ctx, span := s.tracer.Start(ctx, "sprint.complete")
	defer span.End()

	return s.projector.Complete(ctx, sprintID, meta)
}

// Cancel abandons a sprint that has not completed.
func (s *SprintService) Cancel(ctx context.Context, sprintID, reason string, meta fact.Metadata) (*sprint.Sprint, error) {
	ctx, span := s.tracer.Start(ctx, "sprint.cancel")
	defer span.End()

	current, err := s.mustGet(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if current.Status == sprint.StatusCompleted {
		return nil, fmt.Errorf("sprint %s is already completed", sprintID)
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateSprint,
		AggregateID:   sprintID,
		Kind:          fact.SprintCancelled,
		Payload:       fact.SprintCancelledPayload{Reason: reason},
		Metadata:      meta,
	})
}

// RecordVelocity stores an explicit velocity measurement, overriding the
// derived completed-points figure.
func (s *SprintService) RecordVelocity(ctx context.Context, sprintID string, points int, meta fact.Metadata) (*sprint.Sprint, error) {
	ctx, span := s.tracer.Start(ctx, "sprint.record_velocity")
	defer span.End()

	if _, err := s.mustGet(ctx, sprintID); err != nil {
		return nil, err
	}
	return s.apply(ctx, fact.Fact{
		AggregateKind: fact.AggregateSprint,
		AggregateID:   sprintID,
		Kind:          fact.SprintVelocityRecorded,
		Payload:       fact.SprintVelocityRecordedPayload{Points: points},
		Metadata:      meta,
	})
}

// Get reads one sprint; nil means it does not exist.
func (s *SprintService) Get(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	return s.projector.Get(ctx, sprintID)
}

// List reads a project's sprints.
func (s *SprintService) List(ctx context.Context, projectID string) ([]sprint.Sprint, error) {
	return s.projector.List(ctx, projectID)
}

// Status reads the sprint's live progress view.
func (s *SprintService) Status(ctx context.Context, sprintID string) (*projection.SprintStatus, error) {
	return s.projector.Status(ctx, sprintID)
}

// Velocity reads the project's recent throughput stats.
func (s *SprintService) Velocity(ctx context.Context, projectID string, sprintCount int) (*projection.VelocityReport, error) {
	return s.projector.Velocity(ctx, projectID, sprintCount)
}

// Burndown reads the sprint's per-day burndown chart.
func (s *SprintService) Burndown(ctx context.Context, sprintID string) ([]projection.BurndownPoint, error) {
	return s.projector.Burndown(ctx, sprintID)
}

// Sync re-materializes one sprint from its facts.
func (s *SprintService) Sync(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	return s.projector.SyncFromFacts(ctx, sprintID)
}

func (s *SprintService) apply(ctx context.Context, f fact.Fact) (*sprint.Sprint, error) {
	if _, err := s.log.AppendFact(ctx, f); err != nil {
		return nil, err
	}
	return s.projector.SyncFromFacts(ctx, f.AggregateID)
}

func (s *SprintService) mustGet(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	current, err := s.projector.Get(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("sprint %s: %w", sprintID, storage.ErrNotFound)
	}
	return current, nil
}
