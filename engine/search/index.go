// Package search keeps a Qdrant index of engines and engine classes for
// free-text lookup.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/fn"
	"github.com/bmwdex/bmwdex/pkg/ollama"
	"github.com/bmwdex/bmwdex/pkg/resilience"
)

// DefaultTopK is used when Search is asked for zero hits.
const DefaultTopK = 10

// batchSize bounds points per upsert request.
const batchSize = 64

// Embedder turns text into a vector. *ollama.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

var _ Embedder = (*ollama.Client)(nil)

// ErrNoEmbedder is returned when an Index without an Embedder is asked to
// embed.
var ErrNoEmbedder = errors.New("search: no embedder configured")

// PointsClient is the subset of the Qdrant points API the index uses.
type PointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsClient is the subset of the Qdrant collections API the index uses.
type CollectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Options configure an Index.
type Options struct {
	Embedder Embedder
	Logger   *slog.Logger
	// EmbedRPS throttles embedding calls; <= 0 disables throttling.
	EmbedRPS float64
	Breaker  resilience.BreakerOpts
	// Retry applies to each embedding call. Zero MaxAttempts uses
	// fn.DefaultRetry with ollama.Retryable.
	Retry fn.RetryOpts
}

// Index is the only owner of Qdrant calls.
type Index struct {
	conn        *grpc.ClientConn
	points      PointsClient
	collections CollectionsClient
	collection  string

	embedder Embedder
	guard    *resilience.Guard
	retry    fn.RetryOpts
	log      *slog.Logger
}

// New dials Qdrant's gRPC endpoint at addr.
func New(addr, collection string, opts Options) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("search: dial qdrant %s: %w", addr, err)
	}
	ix := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, opts)
	ix.conn = conn
	return ix, nil
}

// NewWithClients builds an Index over existing clients.
func NewWithClients(points PointsClient, collections CollectionsClient, collection string, opts Options) *Index {
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = fn.DefaultRetry
		retry.Retryable = ollama.Retryable
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		points:      points,
		collections: collections,
		collection:  collection,
		embedder:    opts.Embedder,
		guard:       resilience.NewGuard(opts.EmbedRPS, 1, opts.Breaker),
		retry:       retry,
		log:         log,
	}
}

// Collection is the Qdrant collection name.
func (ix *Index) Collection() string { return ix.collection }

// Close closes the gRPC connection when New opened one.
func (ix *Index) Close() error {
	if ix.conn == nil {
		return nil
	}
	return ix.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if missing.
func (ix *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := ix.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("search: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == ix.collection {
			return nil
		}
	}
	_, err = ix.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: create collection %s: %w", ix.collection, err)
	}
	ix.log.Info("search: collection created", "collection", ix.collection, "dims", dims)
	return nil
}

// DeleteCollection drops the collection.
func (ix *Index) DeleteCollection(ctx context.Context) error {
	if _, err := ix.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: ix.collection}); err != nil {
		return fmt.Errorf("search: delete collection %s: %w", ix.collection, err)
	}
	return nil
}

// embed calls the embedder through the rate limiter and breaker, retrying
// transient failures.
func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if ix.embedder == nil {
		return nil, ErrNoEmbedder
	}
	return fn.Retry(ctx, ix.retry, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(resilience.Guarded(ctx, ix.guard, func(ctx context.Context) ([]float32, error) {
			return ix.embedder.Embed(ctx, text)
		}))
	}).Unwrap()
}

// Dims embeds a sample text to learn the embedder's vector size.
func (ix *Index) Dims(ctx context.Context) (int, error) {
	v, err := ix.embed(ctx, "BMW engine")
	if err != nil {
		return 0, fmt.Errorf("search: sample dims: %w", err)
	}
	return len(v), nil
}

// Upsert embeds docs and writes them in batches. It returns how many points
// were written before any error.
func (ix *Index) Upsert(ctx context.Context, docs []Document) (int, error) {
	written := 0
	for _, batch := range fn.Chunk(docs, batchSize) {
		points := make([]*pb.PointStruct, 0, len(batch))
		for _, d := range batch {
			vec, err := ix.embed(ctx, d.Text)
			if err != nil {
				return written, fmt.Errorf("search: embed %s %s: %w", d.Kind, d.Key, err)
			}
			points = append(points, toPoint(d, vec))
		}
		wait := true
		_, err := ix.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: ix.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return written, fmt.Errorf("search: upsert %d points: %w", len(points), err)
		}
		written += len(points)
	}
	return written, nil
}

// UpsertEngines indexes engines.
func (ix *Index) UpsertEngines(ctx context.Context, engines []graph.Engine) (int, error) {
	return ix.Upsert(ctx, fn.Map(engines, EngineDocument))
}

// UpsertClasses indexes engine classes.
func (ix *Index) UpsertClasses(ctx context.Context, classes []graph.EngineClass) (int, error) {
	return ix.Upsert(ctx, fn.Map(classes, ClassDocument))
}

// DeleteKind removes every point of kind.
func (ix *Index) DeleteKind(ctx context.Context, kind Kind) error {
	wait := true
	_, err := ix.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: ix.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{Must: []*pb.Condition{fieldMatch("kind", string(kind))}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("search: delete %s points: %w", kind, err)
	}
	return nil
}

// Search embeds query and returns the nearest points, restricted to kind
// unless kind is empty. topK <= 0 means DefaultTopK.
func (ix *Index) Search(ctx context.Context, query string, kind Kind, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	vec, err := ix.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	req := &pb.SearchPoints{
		CollectionName: ix.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if kind != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("kind", string(kind))}}
	}
	resp, err := ix.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := Hit{ID: r.GetId().GetUuid(), Score: r.GetScore(), Fields: map[string]string{}}
		for k, v := range r.GetPayload() {
			s := v.GetStringValue()
			switch k {
			case "kind":
				h.Kind = Kind(s)
			case "key":
				h.Key = s
			default:
				h.Fields[k] = s
			}
		}
		hits[i] = h
	}
	return hits, nil
}

func toPoint(d Document, vec []float32) *pb.PointStruct {
	payload := map[string]*pb.Value{
		"kind": stringValue(string(d.Kind)),
		"key":  stringValue(d.Key),
	}
	for k, v := range d.Fields {
		if v != "" {
			payload[k] = stringValue(v)
		}
	}
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: d.ID()}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}}},
		Payload: payload,
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}
