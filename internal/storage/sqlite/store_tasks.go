package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tracklet/tracklet/internal/domain/task"
	"github.com/tracklet/tracklet/internal/storage"
)

const taskColumns = "id, project_id, sprint_id, title, description, status, priority, task_type, assignee, estimated_points, estimated_hours, actual_hours, linked_commits, linked_prs, branch, blocked_reason, external_issue_number, started_at, completed_at, created_at, updated_at, version"

// PutTask overwrites the task projection row wholesale.
func (s *Store) PutTask(ctx context.Context, t task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task id is required")
	}

	commits, err := json.Marshal(orEmptyStrings(t.LinkedCommits))
	if err != nil {
		return fmt.Errorf("encode linked commits: %w", err)
	}
	prs, err := json.Marshal(orEmptyInts(t.LinkedPRs))
	if err != nil {
		return fmt.Errorf("encode linked prs: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    project_id = excluded.project_id,
    sprint_id = excluded.sprint_id,
    title = excluded.title,
    description = excluded.description,
    status = excluded.status,
    priority = excluded.priority,
    task_type = excluded.task_type,
    assignee = excluded.assignee,
    estimated_points = excluded.estimated_points,
    estimated_hours = excluded.estimated_hours,
    actual_hours = excluded.actual_hours,
    linked_commits = excluded.linked_commits,
    linked_prs = excluded.linked_prs,
    branch = excluded.branch,
    blocked_reason = excluded.blocked_reason,
    external_issue_number = excluded.external_issue_number,
    started_at = excluded.started_at,
    completed_at = excluded.completed_at,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    version = excluded.version
`,
		t.ID,
		t.ProjectID,
		t.SprintID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		string(t.Type),
		t.Assignee,
		nullInt(t.EstimatedPoints),
		nullFloat(t.EstimatedHours),
		nullFloat(t.ActualHours),
		string(commits),
		string(prs),
		t.Branch,
		t.BlockedReason,
		t.ExternalIssueNumber,
		nullMillis(t.StartedAt),
		nullMillis(t.CompletedAt),
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
		int64(t.Version),
	)
	if err != nil {
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// GetTask returns one task projection row.
func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	if s == nil || s.sqlDB == nil {
		return task.Task{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return task.Task{}, fmt.Errorf("task id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, storage.ErrNotFound
		}
		return task.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks filters, paginates, and orders by priority rank then creation
// time descending.
func (s *Store) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	where := []string{"1 = 1"}
	var params []any
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		params = append(params, filter.ProjectID)
	}
	if filter.SprintID != "" {
		where = append(where, "sprint_id = ?")
		params = append(params, filter.SprintID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		params = append(params, string(filter.Status))
	}
	if filter.Assignee != "" {
		where = append(where, "assignee = ?")
		params = append(params, filter.Assignee)
	}
	if filter.Type != "" {
		where = append(where, "task_type = ?")
		params = append(params, string(filter.Type))
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		params = append(params, string(filter.Priority))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " + strings.Join(where, " AND ") + `
ORDER BY CASE priority
    WHEN 'critical' THEN 0
    WHEN 'high' THEN 1
    WHEN 'medium' THEN 2
    WHEN 'low' THEN 3
    ELSE 4
END ASC, created_at DESC
LIMIT ? OFFSET ?`
	params = append(params, int64(limit), int64(offset))

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes a task projection row. Deleting a missing row is not
// an error; the fact log still holds the task's history.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("task id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (task.Task, error) {
	var (
		t           task.Task
		status      string
		priority    string
		taskType    string
		points      sql.NullInt64
		estHours    sql.NullFloat64
		actHours    sql.NullFloat64
		commits     string
		prs         string
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
		version     int64
	)
	if err := scan(
		&t.ID,
		&t.ProjectID,
		&t.SprintID,
		&t.Title,
		&t.Description,
		&status,
		&priority,
		&taskType,
		&t.Assignee,
		&points,
		&estHours,
		&actHours,
		&commits,
		&prs,
		&t.Branch,
		&t.BlockedReason,
		&t.ExternalIssueNumber,
		&startedAt,
		&completedAt,
		&createdAt,
		&updatedAt,
		&version,
	); err != nil {
		return task.Task{}, err
	}

	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	t.Type = task.Type(taskType)
	if points.Valid {
		value := int(points.Int64)
		t.EstimatedPoints = &value
	}
	if estHours.Valid {
		value := estHours.Float64
		t.EstimatedHours = &value
	}
	if actHours.Valid {
		value := actHours.Float64
		t.ActualHours = &value
	}
	if err := json.Unmarshal([]byte(commits), &t.LinkedCommits); err != nil {
		return task.Task{}, fmt.Errorf("decode linked commits: %w", err)
	}
	if err := json.Unmarshal([]byte(prs), &t.LinkedPRs); err != nil {
		return task.Task{}, fmt.Errorf("decode linked prs: %w", err)
	}
	if len(t.LinkedCommits) == 0 {
		t.LinkedCommits = nil
	}
	if len(t.LinkedPRs) == 0 {
		t.LinkedPRs = nil
	}
	if startedAt.Valid {
		value := fromMillis(startedAt.Int64)
		t.StartedAt = &value
	}
	if completedAt.Valid {
		value := fromMillis(completedAt.Int64)
		t.CompletedAt = &value
	}
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	t.Version = uint64(version)
	return t, nil
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyInts(values []int) []int {
	if values == nil {
		return []int{}
	}
	return values
}

func nullInt(value *int) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

func nullFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullMillis(value *time.Time) any {
	if value == nil {
		return nil
	}
	return toMillis(*value)
}
