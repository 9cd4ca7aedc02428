// Package testutil provides shared test helpers for setting up snapshot
// databases and wellness services.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/wunjo/internal/backend"
	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/optimistic"
	"github.com/starford/wunjo/internal/persist"
	"github.com/starford/wunjo/internal/wellness"
)

// TestDB creates a temporary SQLite snapshot database that is
// automatically cleaned up.
func TestDB(t *testing.T) *persist.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "wunjo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := persist.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService builds a wellness service over a zero-latency simulated
// backend, returning the backend so tests can inject failures.
func TestService(t *testing.T, opts ...wellness.Option) (*wellness.Service, *backend.Simulated) {
	t.Helper()
	be := backend.NewSimulated(0)
	engine := optimistic.New(be)
	svc := wellness.New(engine, opts...)
	return svc, be
}

// SeedCategory adds a fitness category with one distance metric and
// fails the test on error.
func SeedCategory(t *testing.T, svc *wellness.Service, id string) models.Category {
	t.Helper()
	c, err := svc.AddCategory(context.Background(), models.Category{
		ID:      id,
		Name:    "Fitness",
		Enabled: true,
		Metrics: []models.Metric{
			{ID: "m1", Name: "Distance", Unit: "km", Min: 0, Max: 100, Step: 0.5, DefaultGoal: 30},
		},
	})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}
