// Command search-sync copies engines and engine classes from the catalog
// graph into the Qdrant search index. It runs once, or on a cron schedule
// when one is configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/engine/search"
	"github.com/bmwdex/bmwdex/pkg/config"
	"github.com/bmwdex/bmwdex/pkg/metrics"
	"github.com/bmwdex/bmwdex/pkg/ollama"
	"github.com/bmwdex/bmwdex/pkg/resilience"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML or TOML config file")
		scheduleF  = flag.String("schedule", "", "cron schedule (overrides config; empty runs once)")
		pageSize   = flag.Int("page-size", 0, "catalog page size")
		reset      = flag.Bool("reset", false, "drop the collection before syncing")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	if *scheduleF != "" {
		cfg.Sync.Schedule = *scheduleF
	}
	if err := run(cfg, *pageSize, *reset, logger); err != nil {
		logger.Error("search-sync exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, pageSize int, reset bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(context.Background())
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	store := graph.New(driver, cfg.Neo4j.Database)

	index, err := search.New(cfg.Qdrant.URL, cfg.Qdrant.Collection, search.Options{
		Embedder: ollama.New(cfg.Ollama.URL, cfg.Ollama.Model),
		Logger:   logger,
		EmbedRPS: cfg.Ollama.EmbedRPS,
		Breaker:  resilience.DefaultBreakerOpts,
	})
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()

	if reset {
		if err := index.DeleteCollection(ctx); err != nil {
			return fmt.Errorf("reset collection: %w", err)
		}
		logger.Info("collection dropped", "collection", index.Collection())
	}

	reg := metrics.New()
	j := newJob(func(ctx context.Context) (search.SyncStats, error) {
		return search.Sync(ctx, store, index, pageSize)
	}, reg, logger)

	if cfg.Sync.Schedule == "" {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		return j.run(runCtx)
	}

	reg.CollectRuntime(ctx, "bmwdex_search_sync", 15*time.Second)
	reg.ServeAsync(ctx, ":"+cfg.MetricsPort, logger)
	return schedule(ctx, cfg.Sync.Schedule, j)
}
