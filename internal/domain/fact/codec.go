package fact

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError indicates a fact that must not be appended.
type ValidationError struct {
	Kind Kind
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("invalid fact: %s", e.Msg)
	}
	return fmt.Sprintf("invalid %s fact: %s", e.Kind, e.Msg)
}

func invalidf(kind Kind, format string, args ...any) error {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// EncodePayload serializes a payload for storage. Only the persistence
// adapter should call this; domain code works with typed payloads.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	if unknown, ok := p.(UnknownPayload); ok {
		if len(unknown.Raw) == 0 {
			return []byte("{}"), nil
		}
		return unknown.Raw, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.FactKind(), err)
	}
	return data, nil
}

// DecodePayload deserializes stored payload bytes into the typed variant
// for kind. Unrecognized kinds decode into UnknownPayload so old readers
// tolerate facts written by newer code.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var target Payload
	switch kind {
	case TaskCreated:
		target = &TaskCreatedPayload{}
	case TaskUpdated:
		target = &TaskUpdatedPayload{}
	case TaskStatusChanged:
		target = &TaskStatusChangedPayload{}
	case TaskEstimated:
		target = &TaskEstimatedPayload{}
	case TaskAssigned:
		target = &TaskAssignedPayload{}
	case TaskAddedToSprint:
		target = &TaskAddedToSprintPayload{}
	case TaskRemovedFromSprint:
		target = &TaskRemovedFromSprintPayload{}
	case TaskLinkedToCommit:
		target = &TaskLinkedToCommitPayload{}
	case TaskLinkedToPR:
		target = &TaskLinkedToPRPayload{}
	case TaskBlocked:
		target = &TaskBlockedPayload{}
	case TaskUnblocked:
		target = &TaskUnblockedPayload{}
	case TaskCompleted:
		target = &TaskCompletedPayload{}
	case TaskDeleted:
		target = &TaskDeletedPayload{}
	case SprintCreated:
		target = &SprintCreatedPayload{}
	case SprintStarted:
		target = &SprintStartedPayload{}
	case SprintCompleted:
		target = &SprintCompletedPayload{}
	case SprintCancelled:
		target = &SprintCancelledPayload{}
	case SprintGoalSet:
		target = &SprintGoalSetPayload{}
	case SprintVelocityRecorded:
		target = &SprintVelocityRecordedPayload{}
	case ProjectCreated:
		target = &ProjectCreatedPayload{}
	case ProjectUpdated:
		target = &ProjectUpdatedPayload{}
	case ProjectArchived:
		target = &ProjectArchivedPayload{}
	case ProjectSettingsChanged:
		target = &ProjectSettingsChangedPayload{}
	default:
		return UnknownPayload{Kind: kind, Raw: append([]byte(nil), raw...)}, nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return deref(target), nil
}

// deref returns the value behind the decode target so payloads travel by
// value, matching how they are constructed in domain code.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *TaskCreatedPayload:
		return *v
	case *TaskUpdatedPayload:
		return *v
	case *TaskStatusChangedPayload:
		return *v
	case *TaskEstimatedPayload:
		return *v
	case *TaskAssignedPayload:
		return *v
	case *TaskAddedToSprintPayload:
		return *v
	case *TaskRemovedFromSprintPayload:
		return *v
	case *TaskLinkedToCommitPayload:
		return *v
	case *TaskLinkedToPRPayload:
		return *v
	case *TaskBlockedPayload:
		return *v
	case *TaskUnblockedPayload:
		return *v
	case *TaskCompletedPayload:
		return *v
	case *TaskDeletedPayload:
		return *v
	case *SprintCreatedPayload:
		return *v
	case *SprintStartedPayload:
		return *v
	case *SprintCompletedPayload:
		return *v
	case *SprintCancelledPayload:
		return *v
	case *SprintGoalSetPayload:
		return *v
	case *SprintVelocityRecordedPayload:
		return *v
	case *ProjectCreatedPayload:
		return *v
	case *ProjectUpdatedPayload:
		return *v
	case *ProjectArchivedPayload:
		return *v
	case *ProjectSettingsChangedPayload:
		return *v
	default:
		return p
	}
}

// Validate rejects facts that must never reach the log: missing aggregate
// identity, kind/aggregate mismatches, and payloads missing required fields.
func Validate(f Fact) error {
	if !f.Kind.IsValid() {
		return invalidf("", "kind is required")
	}
	if strings.TrimSpace(string(f.AggregateKind)) == "" {
		return invalidf(f.Kind, "aggregate kind is required")
	}
	if strings.TrimSpace(f.AggregateID) == "" {
		return invalidf(f.Kind, "aggregate id is required")
	}
	if f.Kind.Aggregate() != f.AggregateKind {
		return invalidf(f.Kind, "kind belongs to aggregate %q, fact targets %q", f.Kind.Aggregate(), f.AggregateKind)
	}
	if f.Payload == nil {
		return invalidf(f.Kind, "payload is required")
	}
	if f.Payload.FactKind() != f.Kind {
		return invalidf(f.Kind, "payload is for kind %q", f.Payload.FactKind())
	}
	return validatePayload(f.Kind, f.Payload)
}

func validatePayload(kind Kind, p Payload) error {
	switch v := p.(type) {
	case TaskCreatedPayload:
		if strings.TrimSpace(v.Title) == "" {
			return invalidf(kind, "title is required")
		}
		if strings.TrimSpace(v.ProjectID) == "" {
			return invalidf(kind, "project id is required")
		}
	case TaskStatusChangedPayload:
		if strings.TrimSpace(v.To) == "" {
			return invalidf(kind, "target status is required")
		}
	case TaskAddedToSprintPayload:
		if strings.TrimSpace(v.SprintID) == "" {
			return invalidf(kind, "sprint id is required")
		}
	case TaskLinkedToCommitPayload:
		if strings.TrimSpace(v.CommitSHA) == "" {
			return invalidf(kind, "commit sha is required")
		}
	case TaskLinkedToPRPayload:
		if v.Number <= 0 {
			return invalidf(kind, "pull request number must be positive")
		}
	case TaskBlockedPayload:
		if strings.TrimSpace(v.Reason) == "" {
			return invalidf(kind, "reason is required")
		}
	case SprintCreatedPayload:
		if strings.TrimSpace(v.ProjectID) == "" {
			return invalidf(kind, "project id is required")
		}
		if strings.TrimSpace(v.Name) == "" {
			return invalidf(kind, "name is required")
		}
		if v.StartDate.IsZero() || v.EndDate.IsZero() {
			return invalidf(kind, "start and end dates are required")
		}
		if v.EndDate.Before(v.StartDate) {
			return invalidf(kind, "end date precedes start date")
		}
	case SprintCompletedPayload:
		if v.TotalPoints < 0 || v.CompletedPoints < 0 {
			return invalidf(kind, "points must be non-negative")
		}
	case SprintGoalSetPayload:
		if strings.TrimSpace(v.Goal) == "" {
			return invalidf(kind, "goal is required")
		}
	case SprintVelocityRecordedPayload:
		if v.Points < 0 {
			return invalidf(kind, "points must be non-negative")
		}
	case ProjectCreatedPayload:
		if strings.TrimSpace(v.Name) == "" {
			return invalidf(kind, "name is required")
		}
	case UnknownPayload:
		return invalidf(kind, "unknown kind cannot be appended")
	}
	return nil
}
