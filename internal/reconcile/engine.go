package reconcile

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/projection"
	"github.com/tracklet/tracklet/internal/storage"
)

// metadataSource marks facts appended by the engine, so replays and audits
// can tell externally-driven changes from user actions.
const metadataSource = "reconciliation"

// Item is the outcome for one task/issue pair.
type Item struct {
	TaskID      string
	IssueNumber int
	Verdict     Verdict
	// Applied reports whether the verdict's resolution ran. Conflicts and
	// failed items are never applied.
	Applied bool
	Err     error
}

// Report collects the per-item outcomes of one reconciliation batch. A bad
// item never aborts the rest of the batch.
type Report struct {
	Items []Item
}

// Conflicts returns the items awaiting a caller decision.
func (r *Report) Conflicts() []Item {
	var out []Item
	for _, item := range r.Items {
		if item.Verdict == Conflict {
			out = append(out, item)
		}
	}
	return out
}

// Failed returns the items whose resolution errored.
func (r *Report) Failed() []Item {
	var out []Item
	for _, item := range r.Items {
		if item.Err != nil {
			out = append(out, item)
		}
	}
	return out
}

// Engine reconciles local task projections against an external tracker.
// It holds no fact-log transaction while awaiting tracker I/O: it reads
// the projection, computes a verdict, then issues a short follow-up write.
type Engine struct {
	log     storage.FactLog
	tasks   *projection.TaskProjector
	tracker Tracker
	policy  Policy
	tracer  trace.Tracer
	logger  *log.Logger
}

// NewEngine wires an engine over the given log, task store, and tracker.
func NewEngine(factLog storage.FactLog, taskStore storage.TaskStore, tracker Tracker, policy Policy) *Engine {
	return &Engine{
		log:     factLog,
		tasks:   projection.NewTaskProjector(factLog, taskStore),
		tracker: tracker,
		policy:  policy,
		tracer:  otel.Tracer("github.com/tracklet/tracklet/internal/reconcile"),
		logger:  log.Default(),
	}
}

// ReconcileProject reconciles every task of one project and returns the
// per-item report. Tracker failures are recorded per item; the batch
// continues. Cancellation stops before the next item.
func (e *Engine) ReconcileProject(ctx context.Context, projectID string) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.project")
	defer span.End()

	tasks, err := e.tasks.List(ctx, storage.TaskFilter{ProjectID: projectID, Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("list tasks for %s: %w", projectID, err)
	}

	report := &Report{}
	for _, local := range tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item := e.reconcileOne(ctx, local)
		if item.Err != nil {
			e.logger.Printf("reconcile: task %s: %v", item.TaskID, item.Err)
		}
		report.Items = append(report.Items, item)
	}
	return report, nil
}

// ReconcileTask reconciles a single task and returns its outcome. A
// missing task is an error; everything downstream lands in the item.
func (e *Engine) ReconcileTask(ctx context.Context, taskID string) (Item, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.task")
	defer span.End()

	local, err := e.tasks.Get(ctx, taskID)
	if err != nil {
		return Item{TaskID: taskID}, err
	}
	if local == nil {
		return Item{TaskID: taskID}, fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}
	return e.reconcileOne(ctx, *local), nil
}

func (e *Engine) reconcileOne(ctx context.Context, local task.Task) Item {
	item := Item{TaskID: local.ID, IssueNumber: local.ExternalIssueNumber}

	var remote *Issue
	if local.ExternalIssueNumber != 0 {
		issue, err := e.tracker.GetIssue(ctx, local.ExternalIssueNumber)
		if err != nil {
			item.Err = fmt.Errorf("get issue %d: %w", local.ExternalIssueNumber, err)
			return item
		}
		remote = issue
	}

	item.Verdict = Classify(local, remote, e.policy)

	switch item.Verdict {
	case Unchanged, Conflict:
		return item
	case Push:
		item.Err = e.push(ctx, local, remote, &item)
	case Pull:
		item.Err = e.pull(ctx, local, remote, &item)
	}
	return item
}

// push moves the local state to the tracker. A task with no remote issue
// gets one created, and the new number is recorded back on the task via a
// fact so the link survives rebuilds.
func (e *Engine) push(ctx context.Context, local task.Task, remote *Issue, item *Item) error {
	if remote != nil {
		if err := e.tracker.UpdateIssueState(ctx, remote.Number, pushTarget(local.Status)); err != nil {
			return fmt.Errorf("update issue %d: %w", remote.Number, err)
		}
		item.Applied = true
		return nil
	}

	created, err := e.tracker.CreateIssue(ctx, local.Title, local.Description, nil)
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	item.IssueNumber = created.Number

	// Cancellation skips the follow-up write; the created issue stays and
	// a later run relinks it.
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := e.log.AppendFact(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   local.ID,
		Kind:          fact.TaskUpdated,
		Payload:       fact.TaskUpdatedPayload{Fields: map[string]any{"external_issue_number": created.Number}},
		Metadata:      fact.Metadata{Source: metadataSource},
	}); err != nil {
		return fmt.Errorf("record issue number: %w", err)
	}
	if _, err := e.tasks.SyncFromFacts(ctx, local.ID); err != nil {
		return err
	}
	item.Applied = true
	return nil
}

// pull overwrites the local status from the remote state by appending a
// reconciliation fact and re-syncing the projection.
func (e *Engine) pull(ctx context.Context, local task.Task, remote *Issue, item *Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := e.log.AppendFact(ctx, fact.Fact{
		AggregateKind: fact.AggregateTask,
		AggregateID:   local.ID,
		Kind:          fact.TaskStatusChanged,
		Payload: fact.TaskStatusChangedPayload{
			From: string(local.Status),
			To:   string(pullTarget(remote.State)),
		},
		Metadata: fact.Metadata{Source: metadataSource},
	}); err != nil {
		return fmt.Errorf("record pulled status: %w", err)
	}
	if _, err := e.tasks.SyncFromFacts(ctx, local.ID); err != nil {
		return err
	}
	item.Applied = true
	return nil
}
