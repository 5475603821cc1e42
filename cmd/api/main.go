// Command api serves the bmwdex HTTP API: code parsing, payload intake,
// catalog reads and engine search.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
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
	"github.com/bmwdex/bmwdex/engine/search"
	"github.com/bmwdex/bmwdex/pkg/bmwcode"
	"github.com/bmwdex/bmwdex/pkg/config"
	"github.com/bmwdex/bmwdex/pkg/metrics"
	"github.com/bmwdex/bmwdex/pkg/mid"
	"github.com/bmwdex/bmwdex/pkg/ollama"
	"github.com/bmwdex/bmwdex/pkg/resilience"
)

const maxBody = 8 << 20

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	bmwcode.SetLogger(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &server{
		log:     logger,
		decode:  bmwcode.DecodeOptions{FoldCase: cfg.FoldCase},
		archive: catalog.Archive{Dir: cfg.DataDir},
	}

	// --- Neo4j ---
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4j.URL, neo4j.BasicAuth(cfg.Neo4j.User, cfg.Neo4j.Pass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer driver.Close(context.Background())
	srv.catalog = graph.New(driver, cfg.Neo4j.Database)

	// --- NATS (optional: parsing routes work without it) ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("bmwdex-api"), nats.MaxReconnects(-1))
	if err != nil {
		logger.Warn("nats unavailable, receive routes will only archive", "url", cfg.NATSURL, "error", err)
	} else {
		defer nc.Drain()
		client := catalog.NewClient(nc)
		srv.pub, srv.syncer = client, client
	}

	// --- Qdrant + Ollama ---
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
	srv.search = index

	// --- Sync ledger (written by catalog-sync) ---
	if _, err := os.Stat(cfg.Sync.Ledger); err == nil {
		l, err := ledger.Open(cfg.Sync.Ledger)
		if err != nil {
			return err
		}
		defer l.Close()
		srv.history = l
	}

	reg := metrics.New()
	reg.CollectRuntime(ctx, "bmwdex_api", 15*time.Second)

	handler := mid.Chain(srv.routes(),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("bmwdex-api"),
		mid.MaxBytes(maxBody),
		mid.Metrics(reg, "bmwdex_api"),
	)
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      6 * time.Minute, // POST /api/sync waits for the consumer
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return reg.Serve(gctx, ":"+cfg.MetricsPort) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})
	return g.Wait()
}
