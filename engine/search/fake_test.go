package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/fn"
	"github.com/bmwdex/bmwdex/pkg/repo"
)

type fakePoints struct {
	mu        sync.Mutex
	upserts   []*pb.UpsertPoints
	deletes   []*pb.DeletePoints
	searches  []*pb.SearchPoints
	upsertErr error
	searchErr error
	result    []*pb.ScoredPoint
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, in)
	return &pb.PointsOperationResponse{}, f.upsertErr
}

func (f *fakePoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, in)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, in)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &pb.SearchResponse{Result: f.result}, nil
}

func (f *fakePoints) upserted() []*pb.PointStruct {
	var out []*pb.PointStruct
	for _, u := range f.upserts {
		out = append(out, u.GetPoints()...)
	}
	return out
}

type fakeCollections struct {
	existing  []string
	listErr   error
	createErr error
	created   []*pb.CreateCollection
	deleted   []string
}

func (f *fakeCollections) List(context.Context, *pb.ListCollectionsRequest, ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, name := range f.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in)
	return &pb.CollectionOperationResponse{Result: f.createErr == nil}, f.createErr
}

func (f *fakeCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.deleted = append(f.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

// fakeEmbedder maps text to a 3-dim vector of its length, first byte and
// line count. failures > 0 fails that many calls first.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, f.err
	}
	if text == "" {
		return nil, errors.New("empty text")
	}
	return []float32{float32(len(text)), float32(text[0]), float32(strings.Count(text, "\n") + 1)}, nil
}

type fakeSource struct {
	engines []graph.Engine
	classes []graph.EngineClass
	listErr error
	pages   []repo.ListOpts
}

func (f *fakeSource) ListEngines(_ context.Context, opts repo.ListOpts) ([]graph.Engine, error) {
	f.pages = append(f.pages, opts)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return page(f.engines, opts), nil
}

func (f *fakeSource) ListEngineClasses(_ context.Context, opts repo.ListOpts) ([]graph.EngineClass, error) {
	f.pages = append(f.pages, opts)
	return page(f.classes, opts), nil
}

func page[T any](items []T, opts repo.ListOpts) []T {
	if opts.Offset >= len(items) {
		return nil
	}
	return items[opts.Offset:min(opts.Offset+opts.Limit, len(items))]
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testIndex(points *fakePoints, cols *fakeCollections, emb Embedder) *Index {
	return NewWithClients(points, cols, "bmwdex", Options{
		Embedder: emb,
		Logger:   quiet(),
		Retry:    fn.RetryOpts{MaxAttempts: 2},
	})
}
