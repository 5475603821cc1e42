// Package ledger remembers which catalog files were synced, and with what
// content, so unchanged files can be skipped on the next scan.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bmwdex/bmwdex/engine/catalog"
)

// Memory opens a ledger that lives only as long as the process.
const Memory = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS sync_files (
	path      TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	hash      TEXT NOT NULL,
	status    TEXT NOT NULL,
	processed INTEGER NOT NULL DEFAULT 0,
	error     TEXT NOT NULL DEFAULT '',
	synced_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	path      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	status    TEXT NOT NULL,
	model     TEXT NOT NULL DEFAULT '',
	processed INTEGER NOT NULL DEFAULT 0,
	error     TEXT NOT NULL DEFAULT '',
	synced_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_log_synced_at ON sync_log(synced_at);
`

// Entry is one sync_log row.
type Entry struct {
	Path      string       `json:"path"`
	Kind      catalog.Kind `json:"kind"`
	Status    string       `json:"status"`
	Model     string       `json:"model,omitempty"`
	Processed int          `json:"processed"`
	Error     string       `json:"error,omitempty"`
	SyncedAt  time.Time    `json:"synced_at"`
}

// Ledger is a SQLite-backed record of synced files.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path.
func Open(path string) (*Ledger, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	// One connection: an in-memory database is per connection, and a file
	// ledger has a single writer anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA synchronous = NORMAL", schema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: init: %w", err)
		}
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// Unchanged reports whether path was last synced successfully with its
// current content. Any error reads as changed.
func (l *Ledger) Unchanged(ctx context.Context, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var hash, status string
	err = l.db.QueryRowContext(ctx, `SELECT hash, status FROM sync_files WHERE path = ?`, path).Scan(&hash, &status)
	if err != nil {
		return false
	}
	return status == catalog.StatusSuccess && hash != "" && hash == catalog.ContentHash(data)
}

// Skip adapts Unchanged to catalog.SyncOpts.Skip.
func (l *Ledger) Skip(ctx context.Context) func(string) bool {
	return func(path string) bool { return l.Unchanged(ctx, path) }
}

// Record stores a sync result under the hash of the content that was
// synced, not of what is on disk now, so a file rewritten mid-sync reads as
// changed. Skipped results are not recorded so the previous outcome stays
// authoritative.
func (l *Ledger) Record(ctx context.Context, r catalog.FileResult) error {
	if r.Status == catalog.StatusSkipped {
		return nil
	}
	at := l.now().UTC().UnixMilli()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_files (path, kind, hash, status, processed, error, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind = excluded.kind, hash = excluded.hash, status = excluded.status,
			processed = excluded.processed, error = excluded.error, synced_at = excluded.synced_at`,
		r.File, string(r.Kind), r.Hash, r.Status, r.Processed, r.Error, at)
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", r.File, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_log (path, kind, status, model, processed, error, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.File, string(r.Kind), r.Status, r.Model, r.Processed, r.Error, at)
	if err != nil {
		return fmt.Errorf("ledger: log %s: %w", r.File, err)
	}
	return tx.Commit()
}

// History returns the newest limit log entries, newest first.
func (l *Ledger) History(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT path, kind, status, model, processed, error, synced_at
		FROM sync_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
			at   int64
		)
		if err := rows.Scan(&e.Path, &kind, &e.Status, &e.Model, &e.Processed, &e.Error, &at); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.Kind = catalog.Kind(kind)
		e.SyncedAt = time.UnixMilli(at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Forget drops path so the next scan syncs it again.
func (l *Ledger) Forget(ctx context.Context, path string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM sync_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("ledger: forget %s: %w", path, err)
	}
	return nil
}
