package reconcile

import (
	"fmt"

	"github.com/tracklet/tracklet/internal/domain/task"
)

// Verdict classifies one task/issue pair.
type Verdict string

const (
	// Unchanged means both sides agree; nothing moves.
	Unchanged Verdict = "unchanged"
	// Push means the local state overwrites the remote issue.
	Push Verdict = "push"
	// Pull means the remote state overwrites the local projection, via a
	// reconciliation fact.
	Pull Verdict = "pull"
	// Conflict means both sides changed and the policy refuses to pick;
	// the caller decides. Nothing is mutated.
	Conflict Verdict = "conflict"
)

// Policy decides which side moves when statuses diverge.
type Policy string

const (
	// PolicyManual reports conflicts and mutates neither side. Default.
	PolicyManual Policy = "manual"
	// PolicyLocalWins pushes the local state on divergence.
	PolicyLocalWins Policy = "local-wins"
	// PolicyRemoteWins pulls the remote state on divergence.
	PolicyRemoteWins Policy = "remote-wins"
)

// ParsePolicy validates a policy name, defaulting empty to manual.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "":
		return PolicyManual, nil
	case PolicyManual, PolicyLocalWins, PolicyRemoteWins:
		return Policy(name), nil
	default:
		return "", fmt.Errorf("unknown reconcile policy %q", name)
	}
}

// Classify compares one local task against its remote issue and returns
// the verdict under the given policy.
//
// Statuses are equivalent when both sides are open or both are closed
// (closed maps to done/cancelled locally). When they diverge, a strictly
// newer remote pulls; otherwise the policy decides, and manual refuses.
// Equal timestamps count as not-newer, so a tie is a conflict under manual
// and resolves remote-wins under that policy.
func Classify(local task.Task, remote *Issue, policy Policy) Verdict {
	if remote == nil {
		return Push
	}

	if statusesEquivalent(local.Status, remote.State) {
		return Unchanged
	}

	switch policy {
	case PolicyLocalWins:
		return Push
	case PolicyRemoteWins:
		return Pull
	}

	if remote.UpdatedAt.After(local.UpdatedAt) {
		return Pull
	}
	return Conflict
}

func statusesEquivalent(local task.Status, remote IssueState) bool {
	if remote == IssueClosed {
		return local.Closed()
	}
	return !local.Closed()
}

// pullTarget maps a remote state onto the local status a pull should set.
// A closed issue completes the task; a reopened issue returns it to todo.
func pullTarget(remote IssueState) task.Status {
	if remote == IssueClosed {
		return task.StatusDone
	}
	return task.StatusTodo
}

// pushTarget maps a local status onto the remote state a push should set.
func pushTarget(local task.Status) IssueState {
	if local.Closed() {
		return IssueClosed
	}
	return IssueOpen
}
