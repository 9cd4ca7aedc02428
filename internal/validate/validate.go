// Package validate holds the pure validation functions run before any
// optimistic mutation is dispatched.
package validate

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/wunjo/internal/models"
)

// Result is the outcome of validating one value. A failed Result carries
// human-readable messages; a passed one carries none.
type Result struct {
	OK     bool
	Errors []string
}

func pass() Result { return Result{OK: true} }

func fail(err error) Result {
	return Result{Errors: messages(err)}
}

// messages flattens an ozzo error into stable "field: reason" strings.
func messages(err error) []string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(errs))
	for field, ferr := range errs {
		out = append(out, fmt.Sprintf("%s: %s", field, ferr.Error()))
	}
	sort.Strings(out)
	return out
}

// Category validates a category and its nested metrics.
func Category(c models.Category) Result {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Name, validation.Required, validation.Length(1, 80)),
		validation.Field(&c.Color, validation.Length(0, 32)),
		validation.Field(&c.Metrics, validation.By(func(any) error {
			return metricsValid(c.Metrics)
		})),
	)
	if err != nil {
		return fail(err)
	}
	return pass()
}

func metricsValid(metrics []models.Metric) error {
	seen := make(map[string]struct{}, len(metrics))
	for i, m := range metrics {
		if err := validation.ValidateStruct(&m,
			validation.Field(&m.ID, validation.Required),
			validation.Field(&m.Name, validation.Required),
			validation.Field(&m.Unit, validation.Required),
		); err != nil {
			return fmt.Errorf("metric %d: %v", i, err)
		}
		if m.Max < m.Min {
			return fmt.Errorf("metric %d: max %v below min %v", i, m.Max, m.Min)
		}
		if m.Step < 0 {
			return fmt.Errorf("metric %d: negative step", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("metric %d: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// Goal validates a single goal.
func Goal(g models.Goal) Result {
	err := validation.ValidateStruct(&g,
		validation.Field(&g.CategoryID, validation.Required),
		validation.Field(&g.MetricID, validation.Required),
		validation.Field(&g.Target, validation.Min(0.0)),
	)
	if err != nil {
		return fail(err)
	}
	return pass()
}

// Goals validates a batch of goals, prefixing messages with the index of
// the failing element.
func Goals(goals []models.Goal) Result {
	var msgs []string
	for i, g := range goals {
		if res := Goal(g); !res.OK {
			for _, m := range res.Errors {
				msgs = append(msgs, fmt.Sprintf("goal %d: %s", i, m))
			}
		}
	}
	if len(msgs) > 0 {
		return Result{Errors: msgs}
	}
	return pass()
}

// Entry validates a tracking entry.
func Entry(e models.Entry) Result {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&e.CategoryID, validation.Required),
		validation.Field(&e.Duration, validation.Min(0)),
		validation.Field(&e.Notes, validation.Length(0, 2000)),
	)
	if err != nil {
		return fail(err)
	}
	return pass()
}
