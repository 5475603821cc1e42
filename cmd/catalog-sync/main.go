// Command catalog-sync keeps the catalog graph in step with the data
// directory. It watches for new payload files, rescans on an interval and
// serves the NATS receive and sync subjects.
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

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/errgroup"

	"github.com/bmwdex/bmwdex/engine/catalog"
	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/engine/ledger"
	"github.com/bmwdex/bmwdex/pkg/bmwcode"
	"github.com/bmwdex/bmwdex/pkg/config"
	"github.com/bmwdex/bmwdex/pkg/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML or TOML config file")
		once       = flag.Bool("once", false, "scan the data directory once and exit")
		noNATS     = flag.Bool("no-nats", false, "do not serve the NATS subjects")
		interval   = flag.Duration("interval", 0, "rescan interval (overrides config)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	bmwcode.SetLogger(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Sync.Interval.Duration = *interval
	}
	if err := run(cfg, *once, !*noNATS, logger); err != nil {
		logger.Error("catalog-sync exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, once, serveNATS bool, logger *slog.Logger) error {
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

	l, err := ledger.Open(cfg.Sync.Ledger)
	if err != nil {
		return err
	}
	defer l.Close()

	reg := metrics.New()
	pipelines := catalog.NewPipelines(catalog.Deps{
		Sink:    graph.New(driver, cfg.Neo4j.Database),
		Logger:  logger,
		Metrics: reg,
		Decode:  bmwcode.DecodeOptions{FoldCase: cfg.FoldCase},
		Workers: cfg.Sync.Workers,
	})
	s := newSyncer(cfg.DataDir, pipelines, l, reg, logger)

	if once {
		_, err := s.scan(ctx)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if serveNATS {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("bmwdex-catalog-sync"), nats.MaxReconnects(-1))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		// The API archives received payloads; the consumer only stores them.
		subs, err := catalog.StartConsumer(nc, catalog.ConsumerDeps{
			Pipelines: pipelines,
			DataDir:   cfg.DataDir,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		logger.Info("catalog consumer started", "subscriptions", len(subs), "queue", catalog.QueueGroup)
	}

	reg.CollectRuntime(gctx, "bmwdex_sync", 15*time.Second)
	g.Go(func() error { return reg.Serve(gctx, ":"+cfg.MetricsPort) })
	g.Go(func() error {
		if _, err := s.scan(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		logger.Info("watching data directory", "dir", cfg.DataDir, "interval", cfg.Sync.Interval.Duration)
		return s.watch(gctx, cfg.Sync.Interval.Duration)
	})
	return g.Wait()
}
