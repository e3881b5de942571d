package fact

import "time"

// Payload is the sealed set of kind-specific fact payloads. One variant
// exists per fact kind, so reducers can switch exhaustively over the
// concrete types and treat anything else as a forward-compatible no-op.
type Payload interface {
	// FactKind returns the kind this payload belongs to.
	FactKind() Kind
	isPayload()
}

// TaskCreatedPayload captures the payload for task.created facts.
type TaskCreatedPayload struct {
	Title       string `json:"title"`
	ProjectID   string `json:"project_id"`
	Description string `json:"description,omitempty"`
	// Status, Priority, and Type default to "todo", "medium", and "task"
	// in the reducer when absent.
	Status   string `json:"status,omitempty"`
	Priority string `json:"priority,omitempty"`
	Type     string `json:"type,omitempty"`
	Assignee string `json:"assignee,omitempty"`
}

// TaskUpdatedPayload captures the payload for task.updated facts.
type TaskUpdatedPayload struct {
	Fields map[string]any `json:"fields"`
}

// TaskStatusChangedPayload captures the payload for task.status_changed facts.
type TaskStatusChangedPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

// TaskEstimatedPayload captures the payload for task.estimated facts.
// Absent fields clear the corresponding estimate; there is no merging.
type TaskEstimatedPayload struct {
	Points *int     `json:"points,omitempty"`
	Hours  *float64 `json:"hours,omitempty"`
}

// TaskAssignedPayload captures the payload for task.assigned facts.
// An empty assignee clears the assignment.
type TaskAssignedPayload struct {
	Assignee string `json:"assignee"`
}

// TaskAddedToSprintPayload captures the payload for task.added_to_sprint facts.
type TaskAddedToSprintPayload struct {
	SprintID string `json:"sprint_id"`
}

// TaskRemovedFromSprintPayload captures the payload for task.removed_from_sprint facts.
type TaskRemovedFromSprintPayload struct {
	SprintID string `json:"sprint_id,omitempty"`
}

// TaskLinkedToCommitPayload captures the payload for task.linked_to_commit facts.
type TaskLinkedToCommitPayload struct {
	CommitSHA string `json:"commit_sha"`
	Branch    string `json:"branch,omitempty"`
	Message   string `json:"message,omitempty"`
}

// TaskLinkedToPRPayload captures the payload for task.linked_to_pr facts.
type TaskLinkedToPRPayload struct {
	Number int    `json:"number"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
}

// TaskBlockedPayload captures the payload for task.blocked facts.
type TaskBlockedPayload struct {
	Reason string `json:"reason"`
}

// TaskUnblockedPayload captures the payload for task.unblocked facts.
type TaskUnblockedPayload struct {
	PreviousStatus string `json:"previous_status,omitempty"`
}

// TaskCompletedPayload captures the payload for task.completed facts.
type TaskCompletedPayload struct {
	ActualHours *float64 `json:"actual_hours,omitempty"`
}

// TaskDeletedPayload captures the payload for task.deleted facts.
type TaskDeletedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// SprintCreatedPayload captures the payload for sprint.created facts.
type SprintCreatedPayload struct {
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Goal      string    `json:"goal,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// SprintStartedPayload captures the payload for sprint.started facts.
type SprintStartedPayload struct{}

// SprintCompletedPayload captures the payload for sprint.completed facts.
type SprintCompletedPayload struct {
	TotalPoints     int `json:"total_points"`
	CompletedPoints int `json:"completed_points"`
}

// SprintCancelledPayload captures the payload for sprint.cancelled facts.
type SprintCancelledPayload struct {
	Reason string `json:"reason,omitempty"`
}

// SprintGoalSetPayload captures the payload for sprint.goal_set facts.
type SprintGoalSetPayload struct {
	Goal string `json:"goal"`
}

// SprintVelocityRecordedPayload captures the payload for sprint.velocity_recorded facts.
type SprintVelocityRecordedPayload struct {
	Points int `json:"points"`
}

// ProjectCreatedPayload captures the payload for project.created facts.
type ProjectCreatedPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProjectUpdatedPayload captures the payload for project.updated facts.
type ProjectUpdatedPayload struct {
	Fields map[string]any `json:"fields"`
}

// ProjectArchivedPayload captures the payload for project.archived facts.
type ProjectArchivedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ProjectSettingsChangedPayload captures the payload for project.settings_changed facts.
// Settings replace the previous map wholesale.
type ProjectSettingsChangedPayload struct {
	Settings map[string]any `json:"settings"`
}

// UnknownPayload preserves the raw bytes of a fact kind this build does
// not know about. Reducers skip it.
type UnknownPayload struct {
	Kind Kind
	Raw  []byte
}

func (p TaskCreatedPayload) FactKind() Kind            { return TaskCreated }
func (p TaskUpdatedPayload) FactKind() Kind            { return TaskUpdated }
func (p TaskStatusChangedPayload) FactKind() Kind      { return TaskStatusChanged }
func (p TaskEstimatedPayload) FactKind() Kind          { return TaskEstimated }
func (p TaskAssignedPayload) FactKind() Kind           { return TaskAssigned }
func (p TaskAddedToSprintPayload) FactKind() Kind      { return TaskAddedToSprint }
func (p TaskRemovedFromSprintPayload) FactKind() Kind  { return TaskRemovedFromSprint }
func (p TaskLinkedToCommitPayload) FactKind() Kind     { return TaskLinkedToCommit }
func (p TaskLinkedToPRPayload) FactKind() Kind         { return TaskLinkedToPR }
func (p TaskBlockedPayload) FactKind() Kind            { return TaskBlocked }
func (p TaskUnblockedPayload) FactKind() Kind          { return TaskUnblocked }
func (p TaskCompletedPayload) FactKind() Kind          { return TaskCompleted }
func (p TaskDeletedPayload) FactKind() Kind            { return TaskDeleted }
func (p SprintCreatedPayload) FactKind() Kind          { return SprintCreated }
func (p SprintStartedPayload) FactKind() Kind          { return SprintStarted }
func (p SprintCompletedPayload) FactKind() Kind        { return SprintCompleted }
func (p SprintCancelledPayload) FactKind() Kind        { return SprintCancelled }
func (p SprintGoalSetPayload) FactKind() Kind          { return SprintGoalSet }
func (p SprintVelocityRecordedPayload) FactKind() Kind { return SprintVelocityRecorded }
func (p ProjectCreatedPayload) FactKind() Kind         { return ProjectCreated }
func (p ProjectUpdatedPayload) FactKind() Kind         { return ProjectUpdated }
func (p ProjectArchivedPayload) FactKind() Kind        { return ProjectArchived }
func (p ProjectSettingsChangedPayload) FactKind() Kind { return ProjectSettingsChanged }
func (p UnknownPayload) FactKind() Kind                { return p.Kind }

func (TaskCreatedPayload) isPayload()            {}
func (TaskUpdatedPayload) isPayload()            {}
func (TaskStatusChangedPayload) isPayload()      {}
func (TaskEstimatedPayload) isPayload()          {}
func (TaskAssignedPayload) isPayload()           {}
func (TaskAddedToSprintPayload) isPayload()      {}
func (TaskRemovedFromSprintPayload) isPayload()  {}
func (TaskLinkedToCommitPayload) isPayload()     {}
func (TaskLinkedToPRPayload) isPayload()         {}
func (TaskBlockedPayload) isPayload()            {}
func (TaskUnblockedPayload) isPayload()          {}
func (TaskCompletedPayload) isPayload()          {}
func (TaskDeletedPayload) isPayload()            {}
func (SprintCreatedPayload) isPayload()          {}
func (SprintStartedPayload) isPayload()          {}
func (SprintCompletedPayload) isPayload()        {}
func (SprintCancelledPayload) isPayload()        {}
func (SprintGoalSetPayload) isPayload()          {}
func (SprintVelocityRecordedPayload) isPayload() {}
func (ProjectCreatedPayload) isPayload()         {}
func (ProjectUpdatedPayload) isPayload()         {}
func (ProjectArchivedPayload) isPayload()        {}
func (ProjectSettingsChangedPayload) isPayload() {}
func (UnknownPayload) isPayload()                {}
