package search

import (
	"context"
	"fmt"
	"time"

	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/repo"
)

// Source lists what gets indexed. *graph.CatalogStore satisfies it.
type Source interface {
	ListEngines(ctx context.Context, opts repo.ListOpts) ([]graph.Engine, error)
	ListEngineClasses(ctx context.Context, opts repo.ListOpts) ([]graph.EngineClass, error)
}

var _ Source = (*graph.CatalogStore)(nil)

// SyncStats reports one Sync run.
type SyncStats struct {
	Engines  int           `json:"engines"`
	Classes  int           `json:"engine_classes"`
	Duration time.Duration `json:"duration"`
}

// Sync pages every engine and engine class out of src and upserts them,
// creating the collection first when needed. pageSize <= 0 uses
// repo.DefaultLimit.
func Sync(ctx context.Context, src Source, ix *Index, pageSize int) (SyncStats, error) {
	start := time.Now()
	if pageSize <= 0 {
		pageSize = repo.DefaultLimit
	}
	var stats SyncStats

	dims, err := ix.Dims(ctx)
	if err != nil {
		return stats, err
	}
	if err := ix.EnsureCollection(ctx, dims); err != nil {
		return stats, err
	}

	stats.Engines, err = syncPages(ctx, pageSize, src.ListEngines, ix.UpsertEngines)
	if err != nil {
		return stats, fmt.Errorf("search: sync engines: %w", err)
	}
	stats.Classes, err = syncPages(ctx, pageSize, src.ListEngineClasses, ix.UpsertClasses)
	if err != nil {
		return stats, fmt.Errorf("search: sync engine classes: %w", err)
	}
	stats.Duration = time.Since(start)
	ix.log.Info("search: sync complete", "engines", stats.Engines, "engine_classes", stats.Classes, "duration", stats.Duration)
	return stats, nil
}

func syncPages[T any](
	ctx context.Context,
	pageSize int,
	list func(context.Context, repo.ListOpts) ([]T, error),
	upsert func(context.Context, []T) (int, error),
) (int, error) {
	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := list(ctx, repo.ListOpts{Offset: offset, Limit: pageSize})
		if err != nil {
			return total, err
		}
		n, err := upsert(ctx, page)
		total += n
		if err != nil {
			return total, err
		}
		if len(page) < pageSize {
			return total, nil
		}
	}
}
