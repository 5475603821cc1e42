package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/bmwdex/bmwdex/engine/domain"
	"github.com/bmwdex/bmwdex/pkg/natsutil"
)

const (
	// SubjectCars carries received car payloads.
	SubjectCars = "catalog.cars.receive"
	// SubjectEngines carries received engine payloads.
	SubjectEngines = "catalog.engines.receive"
	// SubjectDLQ receives payloads that failed MaxRetries times.
	SubjectDLQ = "catalog.dlq"
	// SubjectSync is a request/reply subject that runs SyncDir.
	SubjectSync = "catalog.sync.request"
	// QueueGroup lets several consumers share the receive subjects.
	QueueGroup = "catalog-sync"
	// MaxRetries before a payload goes to the DLQ.
	MaxRetries = 3
)

// DeadLetter is published to SubjectDLQ.
type DeadLetter struct {
	Subject string          `json:"subject"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
	Retries int             `json:"retries"`
}

// SyncRequest asks a consumer to sync its data directory.
type SyncRequest struct {
	Kinds []Kind `json:"kinds,omitempty"`
}

// SyncReply answers a SyncRequest.
type SyncReply struct {
	Message string       `json:"message"`
	Results []FileResult `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// ConsumerDeps holds what StartConsumer needs.
type ConsumerDeps struct {
	Pipelines Pipelines
	// Archive, when Dir is set, keeps a copy of every received payload.
	Archive Archive
	// DataDir is synced on SubjectSync requests; empty disables the subject.
	DataDir string
	Logger  *slog.Logger
}

// StartConsumer subscribes to the receive subjects, runs each payload
// through its pipeline, re-publishes failures with an incremented
// X-Retry-Count and sends them to SubjectDLQ after MaxRetries. Invalid
// payloads go to the DLQ at once.
func StartConsumer(nc *nats.Conn, deps ConsumerDeps) ([]*nats.Subscription, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	var subs []*nats.Subscription
	unsubscribe := func() {
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
	}

	carSub, err := natsutil.Subscribe(nc, SubjectCars, QueueGroup, log, func(ctx context.Context, m natsutil.Msg[domain.CarPayload]) {
		handle(ctx, nc, log, m, func(ctx context.Context, p domain.CarPayload) error {
			if deps.Archive.Dir != "" {
				if _, err := deps.Archive.WriteCar(p); err != nil {
					log.WarnContext(ctx, "catalog: archive failed", "model", p.Model, "error", err)
				}
			}
			res, err := deps.Pipelines.Cars(ctx, p).Unwrap()
			if err == nil {
				log.InfoContext(ctx, "catalog: car stored", "make", res.Make, "model", res.Model, "generations", res.Generations)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	subs = append(subs, carSub)

	engineSub, err := natsutil.Subscribe(nc, SubjectEngines, QueueGroup, log, func(ctx context.Context, m natsutil.Msg[domain.EnginePayload]) {
		handle(ctx, nc, log, m, func(ctx context.Context, p domain.EnginePayload) error {
			if deps.Archive.Dir != "" {
				if _, err := deps.Archive.WriteEngine(p); err != nil {
					log.WarnContext(ctx, "catalog: archive failed", "model", p.Model, "error", err)
				}
			}
			res, err := deps.Pipelines.Engines(ctx, p).Unwrap()
			if err == nil {
				log.InfoContext(ctx, "catalog: engine class stored", "model", res.Model, "engines", res.Engines)
			}
			return err
		})
	})
	if err != nil {
		unsubscribe()
		return nil, err
	}
	subs = append(subs, engineSub)

	if deps.DataDir != "" {
		syncSub, err := natsutil.Subscribe(nc, SubjectSync, QueueGroup, log, func(ctx context.Context, m natsutil.Msg[SyncRequest]) {
			reply := SyncReply{Message: "Database sync completed"}
			results, err := SyncDir(ctx, deps.DataDir, deps.Pipelines, SyncOpts{Kinds: m.Value.Kinds})
			reply.Results = results
			if err != nil {
				reply.Message, reply.Error = "Sync failed", err.Error()
			}
			if err := natsutil.Reply(nc, m, reply); err != nil {
				log.WarnContext(ctx, "catalog: sync reply failed", "error", err)
			}
		})
		if err != nil {
			unsubscribe()
			return nil, err
		}
		subs = append(subs, syncSub)
	}
	return subs, nil
}

func handle[T any](ctx context.Context, nc *nats.Conn, log *slog.Logger, m natsutil.Msg[T], run func(context.Context, T) error) {
	err := run(ctx, m.Value)
	if err == nil {
		return
	}
	retries := m.Retries() + 1
	log.ErrorContext(ctx, "catalog: pipeline failed", "subject", m.Subject, "retry", retries, "error", err)

	if retries < MaxRetries && !errors.Is(err, domain.ErrInvalidPayload) {
		if err := natsutil.Redeliver(ctx, nc, m, retries); err != nil {
			log.ErrorContext(ctx, "catalog: retry publish failed", "error", err)
		}
		return
	}
	dl := DeadLetter{Subject: m.Subject, Payload: m.Data, Error: err.Error(), Retries: retries}
	if err := natsutil.Publish(ctx, nc, SubjectDLQ, dl); err != nil {
		log.ErrorContext(ctx, "catalog: DLQ publish failed", "error", err)
	}
}
