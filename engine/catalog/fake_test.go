package catalog

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/pkg/fn"
)

type fakeSink struct {
	mu           sync.Mutex
	makes        []graph.Make
	models       []graph.CarModel
	generations  []graph.Generation
	links        []graph.GenerationEngine
	classes      []graph.EngineClass
	engines      []graph.Engine
	configs      []graph.EngineConfiguration
	failOn       string // method name to fail
	failErr      error
	failuresLeft int // <= 0 fails forever
	calls        map[string]int
}

func (f *fakeSink) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
	if f.failOn != method {
		return nil
	}
	if f.failuresLeft > 0 {
		f.failuresLeft--
		if f.failuresLeft == 0 {
			f.failOn = ""
		}
	}
	return f.failErr
}

func (f *fakeSink) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeSink) EnsureCarHierarchy(_ context.Context, mk graph.Make, m graph.CarModel) error {
	if err := f.hit("EnsureCarHierarchy"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.makes = append(f.makes, mk)
	f.models = append(f.models, m)
	return nil
}

func (f *fakeSink) SaveGeneration(_ context.Context, g graph.Generation) error {
	if err := f.hit("SaveGeneration"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generations = append(f.generations, g)
	return nil
}

func (f *fakeSink) LinkGenerationEngine(_ context.Context, l graph.GenerationEngine) error {
	if err := f.hit("LinkGenerationEngine"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, l)
	return nil
}

func (f *fakeSink) SaveEngineClass(_ context.Context, c graph.EngineClass) error {
	if err := f.hit("SaveEngineClass"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classes = append(f.classes, c)
	return nil
}

func (f *fakeSink) SaveEngine(_ context.Context, e graph.Engine) error {
	if err := f.hit("SaveEngine"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engines = append(f.engines, e)
	return nil
}

func (f *fakeSink) SaveEngineConfiguration(_ context.Context, c graph.EngineConfiguration) error {
	if err := f.hit("SaveEngineConfiguration"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, c)
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// testDeps retries immediately so failure tests stay fast.
func testDeps(sink Sink) Deps {
	return Deps{
		Sink:    sink,
		Logger:  quiet(),
		Workers: 2,
		Retry:   fn.RetryOpts{MaxAttempts: 1},
	}
}
