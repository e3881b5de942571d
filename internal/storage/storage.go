// Package storage defines the persistence contracts the tracking core
// depends on: the append-only fact log and the materialized projection
// stores derived from it. The fact log is the sole source of truth;
// projection rows are disposable and rewritten wholesale on sync.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/project"
	"github.com/tracklet/tracklet/internal/domain/sprint"
	"github.com/tracklet/tracklet/internal/domain/task"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// FactLog persists the ordered, immutable fact sequence per aggregate.
type FactLog interface {
	// AppendFact assigns the next per-aggregate version and durably
	// appends in one atomic unit. A version collision from an interleaved
	// writer fails the append; it is never retried silently.
	AppendFact(ctx context.Context, f fact.Fact) (fact.Fact, error)
	// ListFacts returns facts for one aggregate ordered by version
	// ascending, starting after afterVersion.
	ListFacts(ctx context.Context, aggregateKind fact.AggregateKind, aggregateID string, afterVersion uint64, limit int) ([]fact.Fact, error)
	// ListFactsByKind returns the most recent facts of one kind,
	// newest first.
	ListFactsByKind(ctx context.Context, kind fact.Kind, limit int) ([]fact.Fact, error)
	// ListFactsInRange returns facts created within [start, end],
	// ordered by creation time ascending.
	ListFactsInRange(ctx context.Context, start, end time.Time) ([]fact.Fact, error)
	// LatestVersion returns the highest version for an aggregate
	// (0 when no facts exist).
	LatestVersion(ctx context.Context, aggregateKind fact.AggregateKind, aggregateID string) (uint64, error)
	// ListAggregateIDs returns the distinct aggregate ids of one kind
	// that have at least one fact.
	ListAggregateIDs(ctx context.Context, aggregateKind fact.AggregateKind) ([]string, error)
}

// TaskFilter narrows task list reads. Zero values mean "any".
type TaskFilter struct {
	ProjectID string
	SprintID  string
	Status    task.Status
	Assignee  string
	Type      task.Type
	Priority  task.Priority
	Limit     int
	Offset    int
}

// TaskStore persists task projection rows.
type TaskStore interface {
	PutTask(ctx context.Context, t task.Task) error
	GetTask(ctx context.Context, id string) (task.Task, error)
	// ListTasks filters, paginates, and orders by priority rank
	// (critical first) then creation time descending.
	ListTasks(ctx context.Context, filter TaskFilter) ([]task.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// VelocityRecord is one insert-only velocity-history row, written when a
// sprint completes. It never exists without the matching completed sprint.
type VelocityRecord struct {
	ProjectID       string
	SprintID        string
	CompletedPoints int
	TotalPoints     int
	RecordedAt      time.Time
}

// SprintStore persists sprint projection rows and velocity history.
type SprintStore interface {
	PutSprint(ctx context.Context, s sprint.Sprint) error
	GetSprint(ctx context.Context, id string) (sprint.Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]sprint.Sprint, error)
	// CompleteSprint overwrites the sprint projection and inserts the
	// velocity-history row in one transaction.
	CompleteSprint(ctx context.Context, s sprint.Sprint, record VelocityRecord) error
	// ListVelocityHistory returns velocity rows for a project, most
	// recently recorded first.
	ListVelocityHistory(ctx context.Context, projectID string, limit int) ([]VelocityRecord, error)
}

// ProjectStore persists project projection rows.
type ProjectStore interface {
	PutProject(ctx context.Context, p project.Project) error
	GetProject(ctx context.Context, id string) (project.Project, error)
	ListProjects(ctx context.Context) ([]project.Project, error)
}
