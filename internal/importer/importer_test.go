package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/wunjo/internal/testutil"
	"github.com/starford/wunjo/internal/wellness"
)

const exportJSON = `{
	"device": "garmin-watch",
	"exported_at": "2026-08-29T07:00:00Z",
	"entries": [
		{"date": "2026-08-29", "category_id": "c1", "metric_id": "m1", "duration_min": 45, "value": 5.2},
		{"date": "2026-08-28", "category_id": "c1", "duration_min": 30, "value": 3}
	]
}`

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testImporter(t *testing.T) (*Importer, *wellness.Service, string) {
	t.Helper()
	inbox := t.TempDir()
	db := testutil.TestDB(t)
	svc, _ := testutil.TestService(t)
	testutil.SeedCategory(t, svc, "c1")
	return New(inbox, svc, db, discard()), svc, inbox
}

func TestSyncImportsExistingFiles(t *testing.T) {
	im, svc, inbox := testImporter(t)

	if err := os.WriteFile(filepath.Join(inbox, "export.json"), []byte(exportJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := im.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if got := len(svc.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
}

func TestSyncIsIdempotentByChecksum(t *testing.T) {
	im, svc, inbox := testImporter(t)

	path := filepath.Join(inbox, "export.json")
	if err := os.WriteFile(path, []byte(exportJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := im.Sync(context.Background()); err != nil {
			t.Fatalf("Sync %d: %v", i, err)
		}
	}
	if got := len(svc.Entries()); got != 2 {
		t.Errorf("entries after repeated sync = %d, want 2", got)
	}
}

func TestSyncSkipsUnknownCategoryEntries(t *testing.T) {
	im, svc, inbox := testImporter(t)

	payload := `{"entries": [
		{"date": "2026-08-29", "category_id": "nope", "value": 1},
		{"date": "2026-08-29", "category_id": "c1", "value": 2}
	]}`
	if err := os.WriteFile(filepath.Join(inbox, "mixed.json"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := im.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(svc.Entries()); got != 1 {
		t.Errorf("entries = %d, want 1 (unknown category skipped)", got)
	}
}

func TestSyncIgnoresNonExportFiles(t *testing.T) {
	im, svc, inbox := testImporter(t)

	if err := os.WriteFile(filepath.Join(inbox, "README.txt"), []byte("not an export"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := im.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := len(svc.Entries()); got != 0 {
		t.Errorf("entries = %d, want 0", got)
	}
}

func TestWatchPicksUpNewFile(t *testing.T) {
	im, svc, inbox := testImporter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan error, 1)
	go func() { watchDone <- im.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(inbox, "export.json"), []byte(exportJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for len(svc.Entries()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("watcher never imported entries, have %d", len(svc.Entries()))
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	if err := <-watchDone; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
