// Package project defines the project projection record and its pure reducer.
package project

import (
	"fmt"
	"time"

	"github.com/tracklet/tracklet/internal/domain/fact"
)

// Status is the lifecycle state of a project.
type Status string

const (
	// StatusActive marks a live project.
	StatusActive Status = "active"
	// StatusArchived marks a retired project.
	StatusArchived Status = "archived"
)

// Project is the materialized current-state view of one project aggregate.
// Settings travel as a structured map; serialization lives only in the
// persistence adapter.
type Project struct {
	ID          string
	Name        string
	Description string
	Status      Status
	Settings    map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is the last fact version folded into this state.
	Version uint64
}

// Reduce folds one fact into the prior project state.
func Reduce(state *Project, f fact.Fact) (*Project, error) {
	if created, ok := f.Payload.(fact.ProjectCreatedPayload); ok {
		return &Project{
			ID:          f.AggregateID,
			Name:        created.Name,
			Description: created.Description,
			Status:      StatusActive,
			CreatedAt:   f.CreatedAt,
			UpdatedAt:   f.CreatedAt,
			Version:     f.Version,
		}, nil
	}

	if state == nil {
		return nil, fmt.Errorf("project %s: %s fact before creation", f.AggregateID, f.Kind)
	}

	next := *state
	if state.Settings != nil {
		next.Settings = make(map[string]any, len(state.Settings))
		for k, v := range state.Settings {
			next.Settings[k] = v
		}
	}
	next.Version = f.Version

	switch p := f.Payload.(type) {
	case fact.ProjectUpdatedPayload:
		for key, value := range p.Fields {
			switch key {
			case "name":
				if s, ok := value.(string); ok && s != "" {
					next.Name = s
				}
			case "description":
				if s, ok := value.(string); ok {
					next.Description = s
				}
			}
		}
	case fact.ProjectArchivedPayload:
		next.Status = StatusArchived
	case fact.ProjectSettingsChangedPayload:
		// Settings replace wholesale; partial merges would make replay
		// order-sensitive across kinds.
		next.Settings = p.Settings
	default:
		next.UpdatedAt = state.UpdatedAt
		return &next, nil
	}

	next.UpdatedAt = f.CreatedAt
	return &next, nil
}
