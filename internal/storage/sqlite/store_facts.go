package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
	"github.com/tracklet/tracklet/internal/platform/id"
)

const factColumns = "id, aggregate_kind, aggregate_id, kind, version, payload_json, actor, source, correlation_id, causation_id, created_at"

// AppendFact validates the fact, assigns the next per-aggregate version,
// and inserts it, all inside one transaction. The UNIQUE index on
// (aggregate_kind, aggregate_id, version) turns an interleaved append into
// a hard constraint failure that propagates to the caller.
func (s *Store) AppendFact(ctx context.Context, f fact.Fact) (fact.Fact, error) {
	if err := ctx.Err(); err != nil {
		return fact.Fact{}, err
	}
	if s == nil || s.sqlDB == nil {
		return fact.Fact{}, fmt.Errorf("storage is not configured")
	}

	if err := fact.Validate(f); err != nil {
		return fact.Fact{}, err
	}

	if f.ID == "" {
		newID, err := id.NewID()
		if err != nil {
			return fact.Fact{}, fmt.Errorf("assign fact id: %w", err)
		}
		f.ID = newID
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.CreatedAt = f.CreatedAt.UTC().Truncate(time.Millisecond)

	payload, err := fact.EncodePayload(f.Payload)
	if err != nil {
		return fact.Fact{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fact.Fact{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var maxVersion int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM facts WHERE aggregate_kind = ? AND aggregate_id = ?",
		string(f.AggregateKind), f.AggregateID,
	).Scan(&maxVersion); err != nil {
		return fact.Fact{}, fmt.Errorf("read max version: %w", err)
	}
	f.Version = uint64(maxVersion) + 1

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO facts ("+factColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID,
		string(f.AggregateKind),
		f.AggregateID,
		string(f.Kind),
		int64(f.Version),
		payload,
		f.Metadata.Actor,
		f.Metadata.Source,
		f.Metadata.CorrelationID,
		f.Metadata.CausationID,
		toMillis(f.CreatedAt),
	); err != nil {
		if isConstraintError(err) {
			return fact.Fact{}, fmt.Errorf("version conflict for %s %s at version %d: %w", f.AggregateKind, f.AggregateID, f.Version, err)
		}
		return fact.Fact{}, fmt.Errorf("append fact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fact.Fact{}, fmt.Errorf("commit: %w", err)
	}

	return f, nil
}

// ListFacts returns facts for one aggregate ordered by version ascending.
func (s *Store) ListFacts(ctx context.Context, aggregateKind fact.AggregateKind, aggregateID string, afterVersion uint64, limit int) ([]fact.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if aggregateID == "" {
		return nil, fmt.Errorf("aggregate id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+factColumns+" FROM facts WHERE aggregate_kind = ? AND aggregate_id = ? AND version > ? ORDER BY version ASC LIMIT ?",
		string(aggregateKind), aggregateID, int64(afterVersion), int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// ListFactsByKind returns the most recent facts of one kind, newest first.
func (s *Store) ListFactsByKind(ctx context.Context, kind fact.Kind, limit int) ([]fact.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("kind is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+factColumns+" FROM facts WHERE kind = ? ORDER BY created_at DESC, version DESC LIMIT ?",
		string(kind), int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list facts by kind: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// ListFactsInRange returns facts created within [start, end], ascending by
// creation time.
func (s *Store) ListFactsInRange(ctx context.Context, start, end time.Time) ([]fact.Fact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end precedes start")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+factColumns+" FROM facts WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC, version ASC",
		toMillis(start), toMillis(end),
	)
	if err != nil {
		return nil, fmt.Errorf("list facts in range: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// LatestVersion returns the highest stored version for an aggregate.
func (s *Store) LatestVersion(ctx context.Context, aggregateKind fact.AggregateKind, aggregateID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if aggregateID == "" {
		return 0, fmt.Errorf("aggregate id is required")
	}

	var version int64
	if err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM facts WHERE aggregate_kind = ? AND aggregate_id = ?",
		string(aggregateKind), aggregateID,
	).Scan(&version); err != nil {
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return uint64(version), nil
}

// ListAggregateIDs returns distinct aggregate ids of one kind.
func (s *Store) ListAggregateIDs(ctx context.Context, aggregateKind fact.AggregateKind) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT DISTINCT aggregate_id FROM facts WHERE aggregate_kind = ? ORDER BY aggregate_id",
		string(aggregateKind),
	)
	if err != nil {
		return nil, fmt.Errorf("list aggregate ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var aggregateID string
		if err := rows.Scan(&aggregateID); err != nil {
			return nil, fmt.Errorf("scan aggregate id: %w", err)
		}
		ids = append(ids, aggregateID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate ids: %w", err)
	}
	return ids, nil
}

func scanFacts(rows *sql.Rows) ([]fact.Fact, error) {
	var facts []fact.Fact
	for rows.Next() {
		var (
			f             fact.Fact
			aggregateKind string
			kind          string
			version       int64
			payload       []byte
			createdAt     int64
		)
		if err := rows.Scan(
			&f.ID,
			&aggregateKind,
			&f.AggregateID,
			&kind,
			&version,
			&payload,
			&f.Metadata.Actor,
			&f.Metadata.Source,
			&f.Metadata.CorrelationID,
			&f.Metadata.CausationID,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}

		f.AggregateKind = fact.AggregateKind(aggregateKind)
		f.Kind = fact.Kind(kind)
		f.Version = uint64(version)
		f.CreatedAt = fromMillis(createdAt)

		decoded, err := fact.DecodePayload(f.Kind, payload)
		if err != nil {
			return nil, err
		}
		f.Payload = decoded

		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}
