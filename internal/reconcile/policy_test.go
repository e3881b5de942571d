package reconcile

import (
	"testing"
	"time"

	"github.com/tracklet/tracklet/internal/domain/task"
)

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyManual {
		t.Fatalf("ParsePolicy(\"\") = %v, %v; want manual", p, err)
	}
	if p, err := ParsePolicy("remote-wins"); err != nil || p != PolicyRemoteWins {
		t.Fatalf("ParsePolicy(remote-wins) = %v, %v", p, err)
	}
	if _, err := ParsePolicy("coin-flip"); err == nil {
		t.Fatal("ParsePolicy() accepted an unknown policy")
	}
}

func TestClassify(t *testing.T) {
	older := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	newer := older.Add(2 * time.Hour)

	localAt := func(status task.Status, at time.Time) task.Task {
		return task.Task{ID: "task-1", Status: status, UpdatedAt: at}
	}
	remoteAt := func(state IssueState, at time.Time) *Issue {
		return &Issue{Number: 7, State: state, UpdatedAt: at}
	}

	cases := []struct {
		name   string
		local  task.Task
		remote *Issue
		policy Policy
		want   Verdict
	}{
		{"no remote creates", localAt(task.StatusTodo, older), nil, PolicyManual, Push},
		{"both open", localAt(task.StatusInProgress, older), remoteAt(IssueOpen, newer), PolicyManual, Unchanged},
		{"both closed done", localAt(task.StatusDone, older), remoteAt(IssueClosed, newer), PolicyManual, Unchanged},
		{"both closed cancelled", localAt(task.StatusCancelled, older), remoteAt(IssueClosed, newer), PolicyManual, Unchanged},
		{"remote newer pulls", localAt(task.StatusInProgress, older), remoteAt(IssueClosed, newer), PolicyManual, Pull},
		{"local newer conflicts under manual", localAt(task.StatusInProgress, newer), remoteAt(IssueClosed, older), PolicyManual, Conflict},
		{"tie conflicts under manual", localAt(task.StatusInProgress, older), remoteAt(IssueClosed, older), PolicyManual, Conflict},
		{"local-wins pushes", localAt(task.StatusInProgress, older), remoteAt(IssueClosed, newer), PolicyLocalWins, Push},
		{"remote-wins pulls on tie", localAt(task.StatusInProgress, older), remoteAt(IssueClosed, older), PolicyRemoteWins, Pull},
		{"remote-wins pulls despite newer local", localAt(task.StatusInProgress, newer), remoteAt(IssueClosed, older), PolicyRemoteWins, Pull},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.local, tc.remote, tc.policy); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestStateMappings(t *testing.T) {
	if pullTarget(IssueClosed) != task.StatusDone {
		t.Fatal("closed issue should pull to done")
	}
	if pullTarget(IssueOpen) != task.StatusTodo {
		t.Fatal("reopened issue should pull to todo")
	}
	if pushTarget(task.StatusDone) != IssueClosed || pushTarget(task.StatusCancelled) != IssueClosed {
		t.Fatal("closed statuses should push closed")
	}
	if pushTarget(task.StatusBlocked) != IssueOpen {
		t.Fatal("blocked should push open")
	}
}
