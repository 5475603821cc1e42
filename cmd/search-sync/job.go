package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bmwdex/bmwdex/engine/search"
	"github.com/bmwdex/bmwdex/pkg/metrics"
)

const runTimeout = 30 * time.Minute

// job runs one index sync and records its outcome.
type job struct {
	sync func(context.Context) (search.SyncStats, error)
	log  *slog.Logger

	runs     *metrics.Counter
	failures *metrics.Counter
	docs     *metrics.Counter
	duration *metrics.Histogram

	mu   sync.Mutex
	last search.SyncStats
}

func newJob(syncFn func(context.Context) (search.SyncStats, error), reg *metrics.Registry, log *slog.Logger) *job {
	return &job{
		sync:     syncFn,
		log:      log,
		runs:     reg.Counter("bmwdex_search_sync_runs_total", "Index sync runs."),
		failures: reg.Counter("bmwdex_search_sync_failures_total", "Index sync runs that failed."),
		docs:     reg.Counter("bmwdex_search_sync_documents_total", "Documents upserted into the index."),
		duration: reg.Histogram("bmwdex_search_sync_duration_seconds", "Index sync latency.", []float64{1, 5, 15, 60, 300, 900}),
	}
}

func (j *job) run(ctx context.Context) error {
	j.runs.Inc()
	start := time.Now()
	defer j.duration.Since(start)

	stats, err := j.sync(ctx)
	if err != nil {
		j.failures.Inc()
		j.log.ErrorContext(ctx, "search sync failed", "error", err)
		return err
	}
	j.docs.Add(int64(stats.Engines + stats.Classes))
	j.mu.Lock()
	j.last = stats
	j.mu.Unlock()
	j.log.InfoContext(ctx, "search sync complete",
		"engines", stats.Engines, "classes", stats.Classes, "duration", stats.Duration)
	return nil
}

func (j *job) lastStats() search.SyncStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// schedule runs j on the cron spec until ctx is done. A run still in
// progress when the next one is due makes that one skip.
func schedule(ctx context.Context, spec string, j *job) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		_ = j.run(runCtx)
	}); err != nil {
		return fmt.Errorf("search-sync: schedule %q: %w", spec, err)
	}
	c.Start()
	j.log.Info("search sync scheduled", "schedule", spec)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
