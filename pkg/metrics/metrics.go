// Package metrics is a small registry that renders counters, gauges and
// histograms in the Prometheus text exposition format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// Counter only goes up.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge holds a float that can move either way.
type Gauge struct{ bits atomic.Uint64 }

func (g *Gauge) Set(v float64) { g.bits.Store(math.Float64bits(v)) }
func (g *Gauge) Inc()          { g.Add(1) }
func (g *Gauge) Dec()          { g.Add(-1) }
func (g *Gauge) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Add moves the gauge by d.
func (g *Gauge) Add(d float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + d)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []uint64 // cumulative, one per bound
	sum    float64
	count  uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i := sort.SearchFloat64s(h.bounds, v); i < len(h.bounds); i++ {
		h.counts[i]++
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

type family struct {
	name   string
	help   string
	kind   kind
	series map[string]any // rendered label set -> *Counter, *Gauge or *Histogram
}

// Registry holds metric families in registration order.
type Registry struct {
	mu       sync.Mutex
	families map[string]*family
	order    []string
}

func New() *Registry {
	return &Registry{families: make(map[string]*family)}
}

// Counter returns the counter for name and the given label pairs, creating it
// on first use.
func (r *Registry) Counter(name, help string, labels ...string) *Counter {
	return get(r, name, help, kindCounter, labels, func() *Counter { return &Counter{} })
}

// Gauge returns the gauge for name and the given label pairs.
func (r *Registry) Gauge(name, help string, labels ...string) *Gauge {
	return get(r, name, help, kindGauge, labels, func() *Gauge { return &Gauge{} })
}

// Histogram returns the histogram for name and the given label pairs. Nil
// bounds use DefaultBuckets. Bounds are fixed by the first call.
func (r *Registry) Histogram(name, help string, bounds []float64, labels ...string) *Histogram {
	if bounds == nil {
		bounds = DefaultBuckets
	}
	return get(r, name, help, kindHistogram, labels, func() *Histogram { return newHistogram(bounds) })
}

func get[M any](r *Registry, name, help string, k kind, labels []string, mk func() *M) *M {
	key := labelString(labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[name]
	if !ok {
		f = &family{name: name, help: help, kind: k, series: make(map[string]any)}
		r.families[name] = f
		r.order = append(r.order, name)
	}
	if f.kind != k {
		panic(fmt.Sprintf("metrics: %s registered as %s, requested as %s", name, f.kind, k))
	}
	if f.help == "" {
		f.help = help
	}
	if m, ok := f.series[key].(*M); ok {
		return m
	}
	m := mk()
	f.series[key] = m
	return m
}

// labelString renders k/v pairs as `k1="v1",k2="v2"`. A trailing odd key is dropped.
func labelString(kv []string) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kv[i])
		b.WriteString(`="`)
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(kv[i+1]))
		b.WriteByte('"')
	}
	return b.String()
}

func braces(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

func join(labels, extra string) string {
	if labels == "" {
		return extra
	}
	return labels + "," + extra
}

// Render writes every family in the text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, name := range r.order {
		f := r.families[name]
		if f.help != "" {
			fmt.Fprintf(&b, "# HELP %s %s\n", name, f.help)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, f.kind)

		keys := make([]string, 0, len(f.series))
		for k := range f.series {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch m := f.series[k].(type) {
			case *Counter:
				fmt.Fprintf(&b, "%s%s %d\n", name, braces(k), m.Value())
			case *Gauge:
				fmt.Fprintf(&b, "%s%s %s\n", name, braces(k), strconv.FormatFloat(m.Value(), 'g', -1, 64))
			case *Histogram:
				m.mu.Lock()
				for i, bound := range m.bounds {
					fmt.Fprintf(&b, "%s_bucket{%s} %d\n", name, join(k, fmt.Sprintf(`le="%g"`, bound)), m.counts[i])
				}
				fmt.Fprintf(&b, "%s_bucket{%s} %d\n", name, join(k, `le="+Inf"`), m.count)
				fmt.Fprintf(&b, "%s_sum%s %g\n", name, braces(k), m.sum)
				fmt.Fprintf(&b, "%s_count%s %d\n", name, braces(k), m.count)
				m.mu.Unlock()
			}
		}
	}
	return b.String()
}

// Handler serves Render.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(r.Render()))
	})
}

// CollectRuntime samples goroutine count, heap and GC stats under prefix
// every interval until ctx is done.
func (r *Registry) CollectRuntime(ctx context.Context, prefix string, interval time.Duration) {
	goroutines := r.Gauge(prefix+"_goroutines", "Number of goroutines")
	heap := r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects")
	gcs := r.Gauge(prefix+"_gc_cycles", "Completed GC cycles")
	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.Set(float64(runtime.NumGoroutine()))
		heap.Set(float64(ms.HeapAlloc))
		gcs.Set(float64(ms.NumGC))
	}
	sample()
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sample()
			}
		}
	}()
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shut)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
	return nil
}

// ServeAsync runs Serve in the background and logs its failure.
func (r *Registry) ServeAsync(ctx context.Context, addr string, log *slog.Logger) {
	go func() {
		if err := r.Serve(ctx, addr); err != nil {
			log.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
}
