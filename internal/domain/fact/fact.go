// Package fact defines the immutable domain facts that form the sole
// source of truth for tasks, sprints, and projects. Current state is
// always derived by folding a reducer over an aggregate's fact sequence.
package fact

import (
	"strings"
	"time"
)

// AggregateKind identifies which aggregate a fact belongs to.
type AggregateKind string

const (
	// AggregateTask scopes facts to a single work item.
	AggregateTask AggregateKind = "task"
	// AggregateSprint scopes facts to a single iteration.
	AggregateSprint AggregateKind = "sprint"
	// AggregateProject scopes facts to a single project container.
	AggregateProject AggregateKind = "project"
)

// Kind identifies the type of a fact. The vocabulary is closed per
// aggregate; unknown kinds are preserved on read and ignored by reducers.
type Kind string

// Task facts.
const (
	// TaskCreated records the creation of a task.
	TaskCreated Kind = "task.created"
	// TaskUpdated records updates to task metadata.
	TaskUpdated Kind = "task.updated"
	// TaskStatusChanged records a task status transition.
	TaskStatusChanged Kind = "task.status_changed"
	// TaskEstimated records point/hour estimates for a task.
	TaskEstimated Kind = "task.estimated"
	// TaskAssigned records an assignee change.
	TaskAssigned Kind = "task.assigned"
	// TaskAddedToSprint records the task joining a sprint.
	TaskAddedToSprint Kind = "task.added_to_sprint"
	// TaskRemovedFromSprint records the task leaving a sprint.
	TaskRemovedFromSprint Kind = "task.removed_from_sprint"
	// TaskLinkedToCommit records a commit linked to the task.
	TaskLinkedToCommit Kind = "task.linked_to_commit"
	// TaskLinkedToPR records a pull request linked to the task.
	TaskLinkedToPR Kind = "task.linked_to_pr"
	// TaskBlocked records the task becoming blocked.
	TaskBlocked Kind = "task.blocked"
	// TaskUnblocked records the task becoming unblocked.
	TaskUnblocked Kind = "task.unblocked"
	// TaskCompleted records the task being finished.
	TaskCompleted Kind = "task.completed"
	// TaskDeleted records the task being removed from view.
	TaskDeleted Kind = "task.deleted"
)

// Sprint facts.
const (
	// SprintCreated records the creation of a sprint.
	SprintCreated Kind = "sprint.created"
	// SprintStarted records the sprint becoming active.
	SprintStarted Kind = "sprint.started"
	// SprintCompleted records the sprint finishing.
	SprintCompleted Kind = "sprint.completed"
	// SprintCancelled records the sprint being abandoned.
	SprintCancelled Kind = "sprint.cancelled"
	// SprintGoalSet records a sprint goal change.
	SprintGoalSet Kind = "sprint.goal_set"
	// SprintVelocityRecorded records an explicit velocity measurement.
	SprintVelocityRecorded Kind = "sprint.velocity_recorded"
)

// Project facts.
const (
	// ProjectCreated records the creation of a project.
	ProjectCreated Kind = "project.created"
	// ProjectUpdated records updates to project metadata.
	ProjectUpdated Kind = "project.updated"
	// ProjectArchived records the project being archived.
	ProjectArchived Kind = "project.archived"
	// ProjectSettingsChanged records a project settings change.
	ProjectSettingsChanged Kind = "project.settings_changed"
)

// Metadata carries optional provenance for a fact.
type Metadata struct {
	// Actor identifies who triggered the fact.
	Actor string
	// Source names the subsystem that produced the fact (e.g. "reconciliation").
	Source string
	// CorrelationID groups facts belonging to one logical operation.
	CorrelationID string
	// CausationID points at the fact that caused this one.
	CausationID string
}

// Fact is an immutable record of something that happened to an aggregate.
// Version is assigned by the fact log on append and is gapless, strictly
// increasing per (AggregateKind, AggregateID), starting at 1.
type Fact struct {
	// ID is the globally unique fact identifier.
	ID string
	// AggregateKind is the kind of aggregate this fact belongs to.
	AggregateKind AggregateKind
	// AggregateID is the aggregate this fact belongs to.
	AggregateID string
	// Kind identifies the type of fact.
	Kind Kind
	// Version is the per-aggregate sequence number (starts at 1).
	Version uint64
	// Payload holds kind-specific data. Serialization is confined to the
	// persistence adapter via EncodePayload/DecodePayload.
	Payload Payload
	// Metadata carries optional provenance.
	Metadata Metadata
	// CreatedAt is when the fact occurred (UTC, millisecond precision).
	CreatedAt time.Time
}

// IsValid reports whether the kind is usable.
func (k Kind) IsValid() bool {
	return strings.TrimSpace(string(k)) != ""
}

// Aggregate returns the aggregate prefix of the kind (e.g. "task").
func (k Kind) Aggregate() AggregateKind {
	for i, c := range k {
		if c == '.' {
			return AggregateKind(k[:i])
		}
	}
	return AggregateKind(k)
}
