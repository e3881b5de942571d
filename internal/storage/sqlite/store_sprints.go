package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tracklet/tracklet/internal/domain/sprint"
	"github.com/tracklet/tracklet/internal/storage"
)

const sprintColumns = "id, project_id, name, goal, status, start_date, end_date, total_points, completed_points, velocity, created_at, updated_at, version"

// PutSprint overwrites the sprint projection row wholesale.
func (s *Store) PutSprint(ctx context.Context, record sprint.Sprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("sprint id is required")
	}

	if err := upsertSprint(ctx, s.sqlDB, record); err != nil {
		return fmt.Errorf("put sprint: %w", err)
	}
	return nil
}

// GetSprint returns one sprint projection row.
func (s *Store) GetSprint(ctx context.Context, id string) (sprint.Sprint, error) {
	if err := ctx.Err(); err != nil {
		return sprint.Sprint{}, err
	}
	if s == nil || s.sqlDB == nil {
		return sprint.Sprint{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return sprint.Sprint{}, fmt.Errorf("sprint id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+sprintColumns+" FROM sprints WHERE id = ?", id)
	record, err := scanSprint(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sprint.Sprint{}, storage.ErrNotFound
		}
		return sprint.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return record, nil
}

// ListSprints returns sprints for a project, newest start first.
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]sprint.Sprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+sprintColumns+" FROM sprints WHERE project_id = ? ORDER BY start_date DESC",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []sprint.Sprint
	for rows.Next() {
		record, err := scanSprint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sprints: %w", err)
	}
	return sprints, nil
}

// CompleteSprint overwrites the sprint projection and inserts the
// velocity-history row in one transaction, so a velocity row can never
// exist without the matching completed sprint.
func (s *Store) CompleteSprint(ctx context.Context, record sprint.Sprint, velocity storage.VelocityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("sprint id is required")
	}
	if record.Status != sprint.StatusCompleted {
		return fmt.Errorf("sprint %s is not completed", record.ID)
	}
	if velocity.SprintID != record.ID || velocity.ProjectID != record.ProjectID {
		return fmt.Errorf("velocity record does not match sprint %s", record.ID)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertSprint(ctx, tx, record); err != nil {
		return fmt.Errorf("update sprint projection: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO velocity_history (project_id, sprint_id, completed_points, total_points, recorded_at) VALUES (?, ?, ?, ?, ?)",
		velocity.ProjectID,
		velocity.SprintID,
		velocity.CompletedPoints,
		velocity.TotalPoints,
		toMillis(velocity.RecordedAt),
	); err != nil {
		return fmt.Errorf("insert velocity history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListVelocityHistory returns velocity rows for a project, most recently
// recorded first.
func (s *Store) ListVelocityHistory(ctx context.Context, projectID string, limit int) ([]storage.VelocityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("project id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT project_id, sprint_id, completed_points, total_points, recorded_at FROM velocity_history WHERE project_id = ? ORDER BY recorded_at DESC LIMIT ?",
		projectID, int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list velocity history: %w", err)
	}
	defer rows.Close()

	var records []storage.VelocityRecord
	for rows.Next() {
		var record storage.VelocityRecord
		var recordedAt int64
		if err := rows.Scan(&record.ProjectID, &record.SprintID, &record.CompletedPoints, &record.TotalPoints, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan velocity record: %w", err)
		}
		record.RecordedAt = fromMillis(recordedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate velocity history: %w", err)
	}
	return records, nil
}

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSprint(ctx context.Context, target execContexter, record sprint.Sprint) error {
	_, err := target.ExecContext(ctx, `
INSERT INTO sprints (`+sprintColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    project_id = excluded.project_id,
    name = excluded.name,
    goal = excluded.goal,
    status = excluded.status,
    start_date = excluded.start_date,
    end_date = excluded.end_date,
    total_points = excluded.total_points,
    completed_points = excluded.completed_points,
    velocity = excluded.velocity,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    version = excluded.version
`,
		record.ID,
		record.ProjectID,
		record.Name,
		record.Goal,
		string(record.Status),
		toMillis(record.StartDate),
		toMillis(record.EndDate),
		record.TotalPoints,
		record.CompletedPoints,
		record.Velocity,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		int64(record.Version),
	)
	return err
}

func scanSprint(scan func(dest ...any) error) (sprint.Sprint, error) {
	var (
		record    sprint.Sprint
		status    string
		startDate int64
		endDate   int64
		createdAt int64
		updatedAt int64
		version   int64
	)
	if err := scan(
		&record.ID,
		&record.ProjectID,
		&record.Name,
		&record.Goal,
		&status,
		&startDate,
		&endDate,
		&record.TotalPoints,
		&record.CompletedPoints,
		&record.Velocity,
		&createdAt,
		&updatedAt,
		&version,
	); err != nil {
		return sprint.Sprint{}, err
	}
	record.Status = sprint.Status(status)
	record.StartDate = fromMillis(startDate)
	record.EndDate = fromMillis(endDate)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.Version = uint64(version)
	return record, nil
}
