// Package models defines the domain types for Wunjo.
package models

import "time"

// Entity kind tags used by the optimistic engine and snapshot store.
const (
	KindCategory = "category"
	KindGoal     = "goal"
	KindEntry    = "entry"
)

// Metric describes one measurable dimension of a category
// (e.g. "distance" in km for a running category).
type Metric struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Step         float64 `json:"step"`
	DefaultValue float64 `json:"default_value"`
	DefaultGoal  float64 `json:"default_goal"`
}

// Category is a tracked activity area. Metric order is significant and
// preserved as authored; category order itself is kept by the store's
// ordered index (drag reorder in the UI).
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Color       string   `json:"color,omitempty"`
	Enabled     bool     `json:"enabled"`
	Metrics     []Metric `json:"metrics"`
}

// EntityID implements store.Entity.
func (c Category) EntityID() string { return c.ID }

// Metric returns the metric with the given id, if the category defines it.
func (c Category) Metric(metricID string) (Metric, bool) {
	for _, m := range c.Metrics {
		if m.ID == metricID {
			return m, true
		}
	}
	return Metric{}, false
}

// Goal is a target value for one metric of one category. At most one goal
// exists per (CategoryID, MetricID) pair; the wellness store enforces this
// by upsert lookup, not the underlying store.
type Goal struct {
	ID         string  `json:"id"`
	CategoryID string  `json:"category_id"`
	MetricID   string  `json:"metric_id"`
	Target     float64 `json:"target"`
}

// EntityID implements store.Entity.
func (g Goal) EntityID() string { return g.ID }

// Entry is one tracked activity record. Identity is immutable once
// created; the remaining fields can be edited.
type Entry struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"` // YYYY-MM-DD
	CategoryID string    `json:"category_id"`
	MetricID   string    `json:"metric_id,omitempty"`
	Duration   int       `json:"duration_min"`
	Value      float64   `json:"value"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (e Entry) EntityID() string { return e.ID }
