// Package projection rebuilds materialized read models from the fact log.
// Projection rows are disposable: every sync replays the aggregate's full
// fact sequence through a pure reducer and overwrites the row wholesale,
// so a rebuild from scratch always converges on the same state.
package projection

import (
	"context"
	"fmt"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/storage"
)

// replayPageSize bounds how many facts one page read pulls from the log.
const replayPageSize = 200

// Reducer folds one fact into the prior state. A nil prior state means the
// aggregate has no state yet; only a creation fact may produce one.
type Reducer[S any] func(state *S, f fact.Fact) (*S, error)

// Replay folds every fact of one aggregate, in version order, through
// reduce. It returns nil when the aggregate has no facts. A gap in the
// version sequence means the log is corrupt and fails the replay.
func Replay[S any](ctx context.Context, log storage.FactLog, aggregateKind fact.AggregateKind, aggregateID string, reduce Reducer[S]) (*S, error) {
	if log == nil {
		return nil, fmt.Errorf("fact log is not configured")
	}
	if aggregateID == "" {
		return nil, fmt.Errorf("aggregate id is required")
	}

	var state *S
	var lastVersion uint64

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := log.ListFacts(ctx, aggregateKind, aggregateID, lastVersion, replayPageSize)
		if err != nil {
			return nil, fmt.Errorf("replay %s %s: %w", aggregateKind, aggregateID, err)
		}
		if len(page) == 0 {
			return state, nil
		}

		for _, f := range page {
			if f.Version != lastVersion+1 {
				return nil, fmt.Errorf("replay %s %s: version gap, got %d after %d", aggregateKind, aggregateID, f.Version, lastVersion)
			}
			state, err = reduce(state, f)
			if err != nil {
				return nil, fmt.Errorf("replay %s %s at version %d: %w", aggregateKind, aggregateID, f.Version, err)
			}
			lastVersion = f.Version
		}

		if len(page) < replayPageSize {
			return state, nil
		}
	}
}
