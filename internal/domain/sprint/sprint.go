// Package sprint defines the sprint projection record and its pure reducer.
package sprint

import (
	"fmt"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
)

// Status is the lifecycle state of a sprint.
type Status string

const (
	// StatusPlanned marks a sprint that has not started.
	StatusPlanned Status = "planned"
	// StatusActive marks a running sprint.
	StatusActive Status = "active"
	// StatusCompleted marks a finished sprint.
	StatusCompleted Status = "completed"
	// StatusCancelled marks an abandoned sprint.
	StatusCancelled Status = "cancelled"
)

// Sprint is the materialized current-state view of one sprint aggregate.
type Sprint struct {
	ID        string
	ProjectID string
	Name      string
	Goal      string
	Status    Status
	StartDate time.Time
	EndDate   time.Time

	// TotalPoints and CompletedPoints are frozen at completion.
	TotalPoints     int
	CompletedPoints int
	// Velocity is the recorded velocity for the sprint (completed points,
	// or an explicit sprint.velocity_recorded measurement).
	Velocity int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is the last fact version folded into this state.
	Version uint64
}

// Reduce folds one fact into the prior sprint state.
func Reduce(state *Sprint, f fact.Fact) (*Sprint, error) {
	if created, ok := f.Payload.(fact.SprintCreatedPayload); ok {
		return &Sprint{
			ID:        f.AggregateID,
			ProjectID: created.ProjectID,
			Name:      created.Name,
			Goal:      created.Goal,
			Status:    StatusPlanned,
			StartDate: created.StartDate.UTC(),
			EndDate:   created.EndDate.UTC(),
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.CreatedAt,
			Version:   f.Version,
		}, nil
	}

	if state == nil {
		return nil, fmt.Errorf("sprint %s: %s fact before creation", f.AggregateID, f.Kind)
	}

	next := *state
	next.Version = f.Version

	switch p := f.Payload.(type) {
	case fact.SprintStartedPayload:
		next.Status = StatusActive
	case fact.SprintCompletedPayload:
		next.Status = StatusCompleted
		next.TotalPoints = p.TotalPoints
		next.CompletedPoints = p.CompletedPoints
		next.Velocity = p.CompletedPoints
	case fact.SprintCancelledPayload:
		next.Status = StatusCancelled
	case fact.SprintGoalSetPayload:
		next.Goal = p.Goal
	case fact.SprintVelocityRecordedPayload:
		next.Velocity = p.Points
	default:
		next.UpdatedAt = state.UpdatedAt
		return &next, nil
	}

	next.UpdatedAt = f.CreatedAt
	return &next, nil
}
