package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bmwdex/bmwdex/engine/catalog"
	"github.com/bmwdex/bmwdex/engine/ledger"
	"github.com/bmwdex/bmwdex/pkg/metrics"
)

// syncer runs data-directory files through the catalog pipelines, on a full
// scan or one file at a time, and records every outcome in the ledger.
type syncer struct {
	dir       string
	pipelines catalog.Pipelines
	ledger    *ledger.Ledger
	log       *slog.Logger
	debounce  time.Duration

	reg     *metrics.Registry
	scanDur *metrics.Histogram

	// mu serialises scans and single-file syncs.
	mu sync.Mutex
}

func newSyncer(dir string, p catalog.Pipelines, l *ledger.Ledger, reg *metrics.Registry, log *slog.Logger) *syncer {
	if reg == nil {
		reg = metrics.New()
	}
	return &syncer{
		dir:       dir,
		pipelines: p,
		ledger:    l,
		log:       log,
		debounce:  500 * time.Millisecond,
		reg:       reg,
		scanDur:   reg.Histogram("bmwdex_sync_scan_duration_seconds", "Full data directory scan latency.", nil),
	}
}

func (s *syncer) count(r catalog.FileResult) {
	s.reg.Counter("bmwdex_sync_files_total", "Files seen by catalog-sync.",
		"kind", string(r.Kind), "status", r.Status).Inc()
}

func (s *syncer) record(ctx context.Context, r catalog.FileResult) {
	s.count(r)
	switch r.Status {
	case catalog.StatusError:
		s.log.WarnContext(ctx, "catalog-sync: file failed", "file", r.File, "error", r.Error)
	case catalog.StatusSuccess:
		s.log.InfoContext(ctx, "catalog-sync: file synced", "file", r.File, "model", r.Model, "processed", r.Processed)
	}
	if err := s.ledger.Record(ctx, r); err != nil {
		s.log.ErrorContext(ctx, "catalog-sync: ledger record", "file", r.File, "error", err)
	}
}

// scan syncs every file that changed since its last successful sync.
func (s *syncer) scan(ctx context.Context) ([]catalog.FileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	defer s.scanDur.Since(start)

	results, err := catalog.SyncDir(ctx, s.dir, s.pipelines, catalog.SyncOpts{
		Skip:     s.ledger.Skip(ctx),
		OnResult: func(r catalog.FileResult) { s.record(ctx, r) },
	})
	synced := 0
	for _, r := range results {
		if r.Status != catalog.StatusSkipped {
			synced++
		}
	}
	s.log.InfoContext(ctx, "catalog-sync: scan complete", "files", len(results), "synced", synced, "duration", time.Since(start))
	return results, err
}

// syncFile syncs one changed file when it sits in a kind directory.
func (s *syncer) syncFile(ctx context.Context, path string) (catalog.FileResult, bool) {
	kind, ok := catalog.KindOf(path)
	if !ok || !strings.HasSuffix(path, ".json") {
		return catalog.FileResult{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger.Unchanged(ctx, path) {
		return catalog.FileResult{File: path, Kind: kind, Status: catalog.StatusSkipped}, true
	}
	r := catalog.SyncFile(ctx, path, kind, s.pipelines)
	s.record(ctx, r)
	return r, true
}

// watch rescans every interval and syncs files as they are written.
// Rapid writes to one file are debounced. It returns when ctx is done.
func (s *syncer) watch(ctx context.Context, interval time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if err := s.addTree(w, s.dir); err != nil {
		return err
	}

	if interval <= 0 {
		interval = 5 * time.Minute
	}
	rescan := time.NewTicker(interval)
	defer rescan.Stop()
	flush := time.NewTicker(s.debounce / 5)
	defer flush.Stop()
	pending := map[string]time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := s.addTree(w, ev.Name); err != nil {
						s.log.WarnContext(ctx, "catalog-sync: watch dir", "dir", ev.Name, "error", err)
					}
					// Files written before the watch was added are picked up here.
					_, _ = s.scan(ctx)
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WarnContext(ctx, "catalog-sync: watcher error", "error", err)

		case now := <-flush.C:
			for path, at := range pending {
				if now.Sub(at) < s.debounce {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				s.syncFile(ctx, path)
			}

		case <-rescan.C:
			if _, err := s.scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.ErrorContext(ctx, "catalog-sync: scan", "error", err)
			}
		}
	}
}

// addTree watches root and every directory below it.
func (s *syncer) addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
