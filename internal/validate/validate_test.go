package validate

import (
	"strings"
	"testing"

	"github.com/starford/wunjo/internal/models"
)

func validCategory() models.Category {
	return models.Category{
		ID:      "c1",
		Name:    "Fitness",
		Enabled: true,
		Metrics: []models.Metric{
			{ID: "m1", Name: "Distance", Unit: "km", Min: 0, Max: 100, Step: 0.5},
		},
	}
}

func TestCategoryValid(t *testing.T) {
	if res := Category(validCategory()); !res.OK {
		t.Fatalf("expected valid, got %v", res.Errors)
	}
}

func TestCategoryMissingName(t *testing.T) {
	c := validCategory()
	c.Name = ""
	res := Category(c)
	if res.OK {
		t.Fatal("expected failure")
	}
	found := false
	for _, m := range res.Errors {
		if strings.HasPrefix(m, "name:") {
			found = true
		}
	}
	if !found {
		t.Errorf("no name message in %v", res.Errors)
	}
}

func TestCategoryMetricBounds(t *testing.T) {
	c := validCategory()
	c.Metrics[0].Min = 10
	c.Metrics[0].Max = 5
	if res := Category(c); res.OK {
		t.Error("expected failure for max < min")
	}
}

func TestCategoryDuplicateMetricIDs(t *testing.T) {
	c := validCategory()
	c.Metrics = append(c.Metrics, c.Metrics[0])
	if res := Category(c); res.OK {
		t.Error("expected failure for duplicate metric id")
	}
}

func TestGoal(t *testing.T) {
	g := models.Goal{ID: "g1", CategoryID: "c1", MetricID: "m1", Target: 30}
	if res := Goal(g); !res.OK {
		t.Fatalf("expected valid, got %v", res.Errors)
	}

	g.Target = -1
	if res := Goal(g); res.OK {
		t.Error("expected failure for negative target")
	}

	g = models.Goal{ID: "g1", Target: 5}
	res := Goal(g)
	if res.OK {
		t.Fatal("expected failure for missing references")
	}
	if len(res.Errors) != 2 {
		t.Errorf("expected 2 messages, got %v", res.Errors)
	}
}

func TestGoalsIndexesMessages(t *testing.T) {
	res := Goals([]models.Goal{
		{ID: "g1", CategoryID: "c1", MetricID: "m1", Target: 10},
		{ID: "g2", Target: 10},
	})
	if res.OK {
		t.Fatal("expected failure")
	}
	for _, m := range res.Errors {
		if !strings.HasPrefix(m, "goal 1:") {
			t.Errorf("message not indexed: %q", m)
		}
	}
}

func TestEntry(t *testing.T) {
	e := models.Entry{ID: "e1", Date: "2026-08-29", CategoryID: "c1", Duration: 45, Value: 5}
	if res := Entry(e); !res.OK {
		t.Fatalf("expected valid, got %v", res.Errors)
	}

	e.Date = "29/08/2026"
	if res := Entry(e); res.OK {
		t.Error("expected failure for malformed date")
	}

	e.Date = "2026-08-29"
	e.Duration = -5
	if res := Entry(e); res.OK {
		t.Error("expected failure for negative duration")
	}
}
