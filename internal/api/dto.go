package api

import (
	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/wellness"
)

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Color       string          `json:"color,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Metrics     []models.Metric `json:"metrics,omitempty"`
}

func (r CreateCategoryRequest) toModel() models.Category {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return models.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
		Enabled:     enabled,
		Metrics:     r.Metrics,
	}
}

// UpdateCategoryRequest is the request body for a partial category
// update. Absent fields are left unchanged.
type UpdateCategoryRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Icon        *string         `json:"icon,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Metrics     []models.Metric `json:"metrics,omitempty"`
}

func (r UpdateCategoryRequest) toPatch() wellness.CategoryPatch {
	return wellness.CategoryPatch{
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
		Enabled:     r.Enabled,
		Metrics:     r.Metrics,
	}
}

// ReorderRequest moves a category from one position to another.
type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SetGoalRequest upserts the goal for a (category, metric) pair.
type SetGoalRequest struct {
	CategoryID string  `json:"category_id"`
	MetricID   string  `json:"metric_id"`
	Target     float64 `json:"target"`
}

// BatchGoalsRequest upserts several goals in one optimistic batch.
type BatchGoalsRequest struct {
	Goals []SetGoalRequest `json:"goals"`
}

// CreateEntryRequest is the request body for recording an entry.
type CreateEntryRequest struct {
	Date       string  `json:"date"`
	CategoryID string  `json:"category_id"`
	MetricID   string  `json:"metric_id,omitempty"`
	Duration   int     `json:"duration_min"`
	Value      float64 `json:"value"`
	Notes      string  `json:"notes,omitempty"`
}

// UpdateEntryRequest is the request body for a partial entry update.
type UpdateEntryRequest struct {
	Date     *string  `json:"date,omitempty"`
	Duration *int     `json:"duration_min,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
}

func (r UpdateEntryRequest) toPatch() wellness.EntryPatch {
	return wellness.EntryPatch{
		Date:     r.Date,
		Duration: r.Duration,
		Value:    r.Value,
		Notes:    r.Notes,
	}
}

// CategoryListResponse wraps the ordered category list.
type CategoryListResponse struct {
	Categories []models.Category `json:"categories"`
	Total      int               `json:"total"`
}

// GoalListResponse wraps all goals.
type GoalListResponse struct {
	Goals []models.Goal `json:"goals"`
	Total int           `json:"total"`
}

// EntryListResponse wraps all entries.
type EntryListResponse struct {
	Entries []models.Entry `json:"entries"`
	Total   int            `json:"total"`
}

// PendingResponse reports whether an entity has an in-flight mutation.
type PendingResponse struct {
	ID      string `json:"id"`
	Pending bool   `json:"pending"`
}
