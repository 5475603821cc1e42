// Package catalog turns vendor car and engine payloads into catalog graph
// writes. Each payload kind runs a Validate -> Parse -> Store pipeline; the
// same pipelines serve directory syncs and the NATS receive subjects.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/bmwcode"
	"github.com/bmwdex/bmwdex/pkg/fn"
	"github.com/bmwdex/bmwdex/pkg/metrics"
)

// Sink is the persistence the Store stages write through.
// *graph.CatalogStore satisfies it.
type Sink interface {
	EnsureCarHierarchy(ctx context.Context, mk graph.Make, m graph.CarModel) error
	SaveGeneration(ctx context.Context, g graph.Generation) error
	LinkGenerationEngine(ctx context.Context, l graph.GenerationEngine) error
	SaveEngineClass(ctx context.Context, c graph.EngineClass) error
	SaveEngine(ctx context.Context, e graph.Engine) error
	SaveEngineConfiguration(ctx context.Context, c graph.EngineConfiguration) error
}

var _ Sink = (*graph.CatalogStore)(nil)

// StoreRetry retries transient Neo4j failures in the Store stages.
var StoreRetry = fn.RetryOpts{
	MaxAttempts: 3,
	InitialWait: 200 * time.Millisecond,
	MaxWait:     2 * time.Second,
	Jitter:      true,
	Retryable:   neo4j.IsRetryable,
}

// Deps holds the external dependencies of the pipelines.
type Deps struct {
	Sink    Sink
	Logger  *slog.Logger
	Metrics *metrics.Registry
	// Decode is passed to the engine code decoder.
	Decode bmwcode.DecodeOptions
	// Workers bounds per-generation engine parsing; <= 0 uses one per row.
	Workers int
	// Retry overrides StoreRetry when MaxAttempts is set.
	Retry fn.RetryOpts
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) retry() fn.RetryOpts {
	if d.Retry.MaxAttempts == 0 {
		return StoreRetry
	}
	return d.Retry
}

// counters are the pipeline's metrics. A nil registry gets a private one so
// callers never branch on it.
type counters struct {
	generations     *metrics.Counter
	links           *metrics.Counter
	engines         *metrics.Counter
	configurations  *metrics.Counter
	chassisWarnings *metrics.Counter
	unparsed        *metrics.Counter
}

func newCounters(reg *metrics.Registry) counters {
	if reg == nil {
		reg = metrics.New()
	}
	return counters{
		generations:     reg.Counter("bmwdex_catalog_generations_stored_total", "Generations written to the graph."),
		links:           reg.Counter("bmwdex_catalog_generation_engines_total", "Generation to engine links written."),
		engines:         reg.Counter("bmwdex_catalog_engines_stored_total", "Engines written to the graph."),
		configurations:  reg.Counter("bmwdex_catalog_configurations_stored_total", "Engine configurations written to the graph."),
		chassisWarnings: reg.Counter("bmwdex_catalog_chassis_warnings_total", "Generation names without a chassis code."),
		unparsed:        reg.Counter("bmwdex_catalog_unparsed_engines_total", "Engine descriptions without a code or family."),
	}
}
