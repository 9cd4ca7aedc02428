// Package persist provides SQLite-backed snapshots of the normalized
// stores so that tracker state survives restarts, plus the import ledger
// used to deduplicate device-export files.
package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/wunjo/internal/checksum"
	"github.com/starford/wunjo/internal/store"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	position   INTEGER NOT NULL,
	data       TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_entities_kind_position ON entities(kind, position);

CREATE TABLE IF NOT EXISTS imports (
	checksum    TEXT PRIMARY KEY,
	filename    TEXT NOT NULL DEFAULT '',
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// DB wraps a sql.DB with snapshot-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("persist: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persist: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("persist: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SaveSnapshot replaces the stored snapshot for kind with the current
// contents of s, preserving order via the position column. The whole
// replacement runs in one transaction.
func SaveSnapshot[T store.Entity](db *DB, kind string, s store.Store[T]) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM entities WHERE kind = ?`, kind); err != nil {
		return fmt.Errorf("persist: clear %s snapshot: %w", kind, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO entities (kind, id, position, data, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("persist: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for pos, item := range s.Items() {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("persist: marshal %s %s: %w", kind, item.EntityID(), err)
		}
		if _, err := stmt.Exec(kind, item.EntityID(), pos, string(data), checksum.Sum(data), now); err != nil {
			return fmt.Errorf("persist: insert %s %s: %w", kind, item.EntityID(), err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot hydrates a store for kind in stored position order. Rows
// that fail to decode are skipped with a warning so a corrupt row cannot
// prevent startup; a missing snapshot yields an empty store.
func LoadSnapshot[T store.Entity](db *DB, kind string, logger *slog.Logger) (store.Store[T], error) {
	s := store.New[T]()
	rows, err := db.conn.Query(`
		SELECT id, data, checksum FROM entities WHERE kind = ? ORDER BY position
	`, kind)
	if err != nil {
		return s, fmt.Errorf("persist: load %s snapshot: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, data, sum string
		if err := rows.Scan(&id, &data, &sum); err != nil {
			return s, fmt.Errorf("persist: scan %s row: %w", kind, err)
		}
		if sum != "" && sum != checksum.Sum([]byte(data)) {
			logger.Warn("snapshot row failed checksum, skipping",
				slog.String("kind", kind), slog.String("id", id))
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			logger.Warn("snapshot row failed to decode, skipping",
				slog.String("kind", kind), slog.String("id", id),
				slog.String("error", err.Error()))
			continue
		}
		s = s.Put(item)
	}
	return s, rows.Err()
}

// WasImported reports whether an import file with the given checksum has
// already been processed.
func (db *DB) WasImported(sum string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT count(*) FROM imports WHERE checksum = ?`, sum).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("persist: lookup import: %w", err)
	}
	return n > 0, nil
}

// MarkImported records a processed import file. Re-marking the same
// checksum is a no-op.
func (db *DB) MarkImported(sum, filename string) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO imports (checksum, filename, imported_at) VALUES (?, ?, ?)
	`, sum, filename, time.Now())
	if err != nil {
		return fmt.Errorf("persist: mark imported: %w", err)
	}
	return nil
}
