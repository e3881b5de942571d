package projection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/sprint"
	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/storage"
)

// SprintProjector materializes sprint read models and derives the sprint
// analytics (status, velocity, burndown) from them.
type SprintProjector struct {
	Log     storage.FactLog
	Sprints storage.SprintStore
	Tasks   storage.TaskStore
}

// NewSprintProjector wires a sprint projector over the given log and stores.
func NewSprintProjector(log storage.FactLog, sprints storage.SprintStore, tasks storage.TaskStore) *SprintProjector {
	return &SprintProjector{Log: log, Sprints: sprints, Tasks: tasks}
}

// SyncFromFacts replays the sprint's facts and overwrites its projection
// row. It returns the resulting state, or nil when the sprint has no facts.
func (p *SprintProjector) SyncFromFacts(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	state, err := Replay(ctx, p.Log, fact.AggregateSprint, sprintID, sprint.Reduce)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	if err := p.Sprints.PutSprint(ctx, *state); err != nil {
		return nil, fmt.Errorf("store sprint projection %s: %w", sprintID, err)
	}
	return state, nil
}

// Get reads the materialized sprint row. A missing row returns nil.
func (p *SprintProjector) Get(ctx context.Context, sprintID string) (*sprint.Sprint, error) {
	record, err := p.Sprints.GetSprint(ctx, sprintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List reads the materialized sprint rows for a project.
func (p *SprintProjector) List(ctx context.Context, projectID string) ([]sprint.Sprint, error) {
	return p.Sprints.ListSprints(ctx, projectID)
}

// SprintStatus is the live progress view of one sprint.
type SprintStatus struct {
	Sprint          sprint.Sprint
	Tasks           []task.Task
	TotalPoints     int
	CompletedPoints int
	ProgressPct     float64
}

// Status returns the sprint with its tasks and live point totals. Unlike
// the frozen totals on a completed sprint, these are recomputed from the
// current task rows.
func (p *SprintProjector) Status(ctx context.Context, sprintID string) (*SprintStatus, error) {
	record, err := p.Sprints.GetSprint(ctx, sprintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("sprint %s not found", sprintID)
		}
		return nil, err
	}

	tasks, err := p.Tasks.ListTasks(ctx, storage.TaskFilter{SprintID: sprintID, Limit: 1000})
	if err != nil {
		return nil, err
	}

	status := &SprintStatus{Sprint: record, Tasks: tasks}
	for _, t := range tasks {
		status.TotalPoints += t.Points()
		if t.Status == task.StatusDone {
			status.CompletedPoints += t.Points()
		}
	}
	if status.TotalPoints > 0 {
		status.ProgressPct = float64(status.CompletedPoints) / float64(status.TotalPoints) * 100
	}
	return status, nil
}

// Complete freezes a sprint: it appends the sprint.completed fact with the
// point totals taken from the sprint's current tasks, re-syncs the
// projection, and records the velocity-history row in the same transaction
// as the projection update.
func (p *SprintProjector) Complete(ctx context.Context, sprintID string, meta fact.Metadata) (*sprint.Sprint, error) {
	current, err := p.Sprints.GetSprint(ctx, sprintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("sprint %s not found", sprintID)
		}
		return nil, err
	}
	if current.Status == sprint.StatusCompleted {
		return nil, fmt.Errorf("sprint %s is already completed", sprintID)
	}

	status, err := p.Status(ctx, sprintID)
	if err != nil {
		return nil, err
	}

	appended, err := p.Log.AppendFact(ctx, fact.Fact{
		AggregateKind: fact.AggregateSprint,
		AggregateID:   sprintID,
		Kind:          fact.SprintCompleted,
		Payload: fact.SprintCompletedPayload{
			TotalPoints:     status.TotalPoints,
			CompletedPoints: status.CompletedPoints,
		},
		Metadata: meta,
	})
	if err != nil {
		return nil, fmt.Errorf("append sprint completion: %w", err)
	}

	state, err := Replay(ctx, p.Log, fact.AggregateSprint, sprintID, sprint.Reduce)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("sprint %s has no facts after completion", sprintID)
	}

	if err := p.Sprints.CompleteSprint(ctx, *state, storage.VelocityRecord{
		ProjectID:       state.ProjectID,
		SprintID:        sprintID,
		CompletedPoints: status.CompletedPoints,
		TotalPoints:     status.TotalPoints,
		RecordedAt:      appended.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("complete sprint %s: %w", sprintID, err)
	}
	return state, nil
}

// VelocityReport summarizes a project's recent sprint throughput.
type VelocityReport struct {
	// Average and StdDev are computed over the completed points of the
	// most recent sprints. StdDev is the sample deviation and is 0 when
	// fewer than two sprints exist.
	Average     float64
	StdDev      float64
	SprintCount int
	// Trend lists completed points in chronological order, oldest first.
	Trend []int
}

// Velocity computes throughput stats over the project's last n completed
// sprints.
func (p *SprintProjector) Velocity(ctx context.Context, projectID string, n int) (*VelocityReport, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sprint count must be greater than zero")
	}

	history, err := p.Sprints.ListVelocityHistory(ctx, projectID, n)
	if err != nil {
		return nil, err
	}

	report := &VelocityReport{SprintCount: len(history)}
	if len(history) == 0 {
		return report, nil
	}

	// History arrives most recent first; the trend reads oldest first.
	report.Trend = make([]int, len(history))
	sum := 0
	for i, record := range history {
		report.Trend[len(history)-1-i] = record.CompletedPoints
		sum += record.CompletedPoints
	}
	report.Average = float64(sum) / float64(len(history))

	if len(history) > 1 {
		var squares float64
		for _, record := range history {
			diff := float64(record.CompletedPoints) - report.Average
			squares += diff * diff
		}
		report.StdDev = math.Sqrt(squares / float64(len(history)-1))
	}
	return report, nil
}

// BurndownPoint is one calendar day of a sprint burndown chart.
type BurndownPoint struct {
	Date      time.Time
	Remaining int
	Ideal     int
}

// Burndown charts remaining points per calendar day of the sprint, from
// the start date through the end date inclusive. A task's points leave the
// remaining total on the day it was completed. The ideal line descends
// linearly from the total to zero.
func (p *SprintProjector) Burndown(ctx context.Context, sprintID string) ([]BurndownPoint, error) {
	record, err := p.Sprints.GetSprint(ctx, sprintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("sprint %s not found", sprintID)
		}
		return nil, err
	}

	tasks, err := p.Tasks.ListTasks(ctx, storage.TaskFilter{SprintID: sprintID, Limit: 1000})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, t := range tasks {
		total += t.Points()
	}

	start := dayOf(record.StartDate)
	end := dayOf(record.EndDate)
	if end.Before(start) {
		return nil, fmt.Errorf("sprint %s ends before it starts", sprintID)
	}
	days := int(end.Sub(start).Hours() / 24)

	points := make([]BurndownPoint, 0, days+1)
	for d := 0; d <= days; d++ {
		date := start.AddDate(0, 0, d)

		remaining := total
		for _, t := range tasks {
			if t.Status == task.StatusDone && t.CompletedAt != nil && !dayOf(*t.CompletedAt).After(date) {
				remaining -= t.Points()
			}
		}

		ideal := 0
		if days > 0 {
			ideal = int(math.Round(float64(total) * float64(days-d) / float64(days)))
		}

		points = append(points, BurndownPoint{Date: date, Remaining: remaining, Ideal: ideal})
	}
	return points, nil
}

func dayOf(value time.Time) time.Time {
	value = value.UTC()
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}
