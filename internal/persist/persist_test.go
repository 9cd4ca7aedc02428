package persist

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "wunjo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)

	cats := store.FromSlice([]models.Category{
		{ID: "c2", Name: "Sleep", Enabled: true},
		{ID: "c1", Name: "Fitness", Enabled: true, Metrics: []models.Metric{
			{ID: "m1", Name: "Distance", Unit: "km", Max: 100, Step: 0.5},
		}},
	})

	if err := SaveSnapshot(db, models.KindCategory, cats); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := LoadSnapshot[models.Category](db, models.KindCategory, discard())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if diff := cmp.Diff(cats.Items(), loaded.Items()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	// Order is positional, not insertion-sorted by id.
	if diff := cmp.Diff([]string{"c2", "c1"}, loaded.IDs()); diff != "" {
		t.Errorf("order not preserved:\n%s", diff)
	}
}

func TestSnapshotReplacesPrevious(t *testing.T) {
	db := testDB(t)

	first := store.FromSlice([]models.Goal{{ID: "g1", CategoryID: "c1", MetricID: "m1", Target: 30}})
	if err := SaveSnapshot(db, models.KindGoal, first); err != nil {
		t.Fatal(err)
	}

	second := store.FromSlice([]models.Goal{{ID: "g2", CategoryID: "c1", MetricID: "m2", Target: 10}})
	if err := SaveSnapshot(db, models.KindGoal, second); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSnapshot[models.Goal](db, models.KindGoal, discard())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Has("g1") || !loaded.Has("g2") {
		t.Errorf("snapshot not replaced: ids=%v", loaded.IDs())
	}
}

func TestKindsAreIsolated(t *testing.T) {
	db := testDB(t)

	cats := store.FromSlice([]models.Category{{ID: "c1", Name: "Fitness", Enabled: true}})
	goals := store.FromSlice([]models.Goal{{ID: "g1", CategoryID: "c1", MetricID: "m1", Target: 5}})

	if err := SaveSnapshot(db, models.KindCategory, cats); err != nil {
		t.Fatal(err)
	}
	if err := SaveSnapshot(db, models.KindGoal, goals); err != nil {
		t.Fatal(err)
	}

	// Clearing goals must not touch categories.
	if err := SaveSnapshot(db, models.KindGoal, store.New[models.Goal]()); err != nil {
		t.Fatal(err)
	}
	loadedCats, err := LoadSnapshot[models.Category](db, models.KindCategory, discard())
	if err != nil {
		t.Fatal(err)
	}
	if loadedCats.Len() != 1 {
		t.Errorf("category snapshot affected by goal save: %v", loadedCats.IDs())
	}
}

func TestLoadSkipsCorruptRows(t *testing.T) {
	db := testDB(t)

	cats := store.FromSlice([]models.Category{
		{ID: "c1", Name: "Fitness", Enabled: true},
		{ID: "c2", Name: "Sleep", Enabled: true},
	})
	if err := SaveSnapshot(db, models.KindCategory, cats); err != nil {
		t.Fatal(err)
	}

	// Corrupt one row's payload behind the checksum's back.
	if _, err := db.conn.Exec(
		`UPDATE entities SET data = 'not json' WHERE kind = ? AND id = 'c1'`,
		models.KindCategory,
	); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadSnapshot[models.Category](db, models.KindCategory, discard())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Has("c1") {
		t.Error("corrupt row loaded")
	}
	if !loaded.Has("c2") {
		t.Error("healthy row skipped")
	}
}

func TestImportLedger(t *testing.T) {
	db := testDB(t)

	ok, err := db.WasImported("abc")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unknown checksum reported imported")
	}

	if err := db.MarkImported("abc", "export.json"); err != nil {
		t.Fatal(err)
	}
	// Idempotent re-mark.
	if err := db.MarkImported("abc", "export.json"); err != nil {
		t.Fatal(err)
	}

	ok, err = db.WasImported("abc")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("marked checksum not reported imported")
	}
}
