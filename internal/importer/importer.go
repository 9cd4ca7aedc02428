// Package importer watches an inbox directory for device-export files
// and feeds their entries through the wellness store's normal optimistic
// path. Files are deduplicated by content checksum so reprocessing an
// export (watcher double-fire, service restart) is harmless.
package importer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/wunjo/internal/apperr"
	"github.com/starford/wunjo/internal/checksum"
	"github.com/starford/wunjo/internal/models"
	"github.com/starford/wunjo/internal/parser"
	"github.com/starford/wunjo/internal/persist"
	"github.com/starford/wunjo/internal/wellness"
)

// settleDelay lets a file finish being written before it is read;
// exports arrive via copy/rename from sync clients.
const settleDelay = 200 * time.Millisecond

// Importer processes export files from an inbox directory.
type Importer struct {
	inbox  string
	svc    *wellness.Service
	db     *persist.DB
	logger *slog.Logger
}

// New creates an importer for the given inbox directory.
func New(inbox string, svc *wellness.Service, db *persist.DB, logger *slog.Logger) *Importer {
	return &Importer{inbox: inbox, svc: svc, db: db, logger: logger}
}

// Sync processes every export file already present in the inbox. Run at
// startup to pick up files that arrived while the service was down.
func (im *Importer) Sync(ctx context.Context) error {
	return filepath.WalkDir(im.inbox, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !isExportFile(p) {
			return nil
		}
		im.processFile(ctx, p)
		return nil
	})
}

// Watch runs an fsnotify loop over the inbox until ctx is cancelled.
// Each created or written export file is processed after a short settle
// delay.
func (im *Importer) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(im.inbox); err != nil {
		return err
	}
	im.logger.Info("importer: watching inbox", slog.String("path", im.inbox))

	// Coalesce rapid write events per file.
	timers := make(map[string]*time.Timer)
	fire := make(chan string, 64)

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			im.logger.Info("importer: stopped")
			return nil

		case p := <-fire:
			delete(timers, p)
			im.processFile(ctx, p)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isExportFile(ev.Name) {
				continue
			}
			p := ev.Name
			if t, exists := timers[p]; exists {
				t.Reset(settleDelay)
				continue
			}
			timers[p] = time.AfterFunc(settleDelay, func() {
				select {
				case fire <- p:
				case <-ctx.Done():
				}
			})

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Warn("importer: watcher error", slog.String("error", err.Error()))
		}
	}
}

func isExportFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// processFile imports one export file. All failures are logged, never
// fatal: a bad file must not stop the watcher.
func (im *Importer) processFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		im.logger.Warn("importer: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	sum := checksum.Sum(data)
	if im.db != nil {
		done, err := im.db.WasImported(sum)
		if err != nil {
			im.logger.Warn("importer: ledger lookup failed", slog.String("error", err.Error()))
			return
		}
		if done {
			im.logger.Debug("importer: already imported",
				slog.String("path", path), slog.String("checksum", checksum.Short(data)))
			return
		}
	}

	ex, err := parser.Parse(data)
	if err != nil {
		im.logger.Warn("importer: parse failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	imported := 0
	for i, entry := range ex.Entries {
		_, err := im.svc.AddEntry(ctx, models.Entry{
			Date:       entry.Date,
			CategoryID: entry.CategoryID,
			MetricID:   entry.MetricID,
			Duration:   entry.Duration,
			Value:      entry.Value,
			Notes:      entry.Notes,
		})
		if err != nil {
			// Unknown categories are a data problem in the export, not ours.
			if errors.Is(err, apperr.ErrNotFound) {
				im.logger.Warn("importer: entry references unknown category",
					slog.String("path", path), slog.Int("entry", i),
					slog.String("category_id", entry.CategoryID))
				continue
			}
			im.logger.Warn("importer: entry rejected",
				slog.String("path", path), slog.Int("entry", i), slog.String("error", err.Error()))
			continue
		}
		imported++
	}

	if im.db != nil {
		if err := im.db.MarkImported(sum, filepath.Base(path)); err != nil {
			im.logger.Warn("importer: mark imported failed", slog.String("error", err.Error()))
		}
	}

	im.logger.Info("importer: processed export",
		slog.String("path", path),
		slog.String("device", ex.Device),
		slog.Int("imported", imported),
		slog.Int("total", len(ex.Entries)))
}
