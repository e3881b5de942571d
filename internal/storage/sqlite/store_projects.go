package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tracklet/tracklet/internal/domain/project"
	"github.com/tracklet/tracklet/internal/storage"
)

const projectColumns = "id, name, description, status, settings_json, created_at, updated_at, version"

// PutProject overwrites the project projection row wholesale. Settings are
// serialized here only; domain code never sees the JSON form.
func (s *Store) PutProject(ctx context.Context, record project.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("project id is required")
	}

	settings := record.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode project settings: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO projects (`+projectColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    status = excluded.status,
    settings_json = excluded.settings_json,
    created_at = excluded.created_at,
    updated_at = excluded.updated_at,
    version = excluded.version
`,
		record.ID,
		record.Name,
		record.Description,
		string(record.Status),
		string(settingsJSON),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		int64(record.Version),
	)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	return nil
}

// GetProject returns one project projection row.
func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	if err := ctx.Err(); err != nil {
		return project.Project{}, err
	}
	if s == nil || s.sqlDB == nil {
		return project.Project{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return project.Project{}, fmt.Errorf("project id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	record, err := scanProject(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Project{}, storage.ErrNotFound
		}
		return project.Project{}, fmt.Errorf("get project: %w", err)
	}
	return record, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		record, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func scanProject(scan func(dest ...any) error) (project.Project, error) {
	var (
		record       project.Project
		status       string
		settingsJSON string
		createdAt    int64
		updatedAt    int64
		version      int64
	)
	if err := scan(
		&record.ID,
		&record.Name,
		&record.Description,
		&status,
		&settingsJSON,
		&createdAt,
		&updatedAt,
		&version,
	); err != nil {
		return project.Project{}, err
	}

	record.Status = project.Status(status)
	if err := json.Unmarshal([]byte(settingsJSON), &record.Settings); err != nil {
		return project.Project{}, fmt.Errorf("decode project settings: %w", err)
	}
	if len(record.Settings) == 0 {
		record.Settings = nil
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.Version = uint64(version)
	return record, nil
}
