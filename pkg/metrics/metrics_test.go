package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounterSameSeries(t *testing.T) {
	r := New()
	c := r.Counter("catalog_files_total", "Files synced", "kind", "cars")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Fatalf("value = %d", c.Value())
	}
	if r.Counter("catalog_files_total", "", "kind", "cars") != c {
		t.Fatal("same name and labels should return the same counter")
	}
	if r.Counter("catalog_files_total", "", "kind", "engines") == c {
		t.Fatal("different labels should return a different counter")
	}
}

func TestGauge(t *testing.T) {
	g := New().Gauge("queue_depth", "")
	g.Set(2)
	g.Inc()
	g.Add(0.5)
	g.Dec()
	if g.Value() != 2.5 {
		t.Fatalf("value = %v", g.Value())
	}
}

func TestHistogramCumulative(t *testing.T) {
	r := New()
	h := r.Histogram("stage_seconds", "Stage time", []float64{1, 0.1, 0.5})
	for _, v := range []float64{0.0625, 0.25, 0.75, 2} {
		h.Observe(v)
	}
	if h.Count() != 4 {
		t.Fatalf("count = %d", h.Count())
	}
	out := r.Render()
	for _, want := range []string{
		`stage_seconds_bucket{le="0.1"} 1`,
		`stage_seconds_bucket{le="0.5"} 2`,
		`stage_seconds_bucket{le="1"} 3`,
		`stage_seconds_bucket{le="+Inf"} 4`,
		`stage_seconds_sum 3.0625`,
		`stage_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestRenderOrderAndLabels(t *testing.T) {
	r := New()
	r.Counter("b_total", "second").Inc()
	r.Gauge("a_gauge", "first").Set(1)
	r.Histogram("lat_seconds", "", []float64{1}, "stage", "parse").Observe(0.5)
	r.Counter("b_total", "", "path", `a"b`).Inc()

	out := r.Render()
	if strings.Index(out, "# TYPE b_total counter") > strings.Index(out, "# TYPE a_gauge gauge") {
		t.Error("families should render in registration order")
	}
	for _, want := range []string{
		"# HELP b_total second",
		`b_total{path="a\"b"} 1`,
		`lat_seconds_bucket{stage="parse",le="1"} 1`,
		`lat_seconds_count{stage="parse"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestKindMismatchPanics(t *testing.T) {
	r := New()
	r.Counter("x", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("x", "")
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("hits_total", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestCollectRuntime(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.CollectRuntime(ctx, "bmwdex", time.Hour)
	if r.Gauge("bmwdex_goroutines", "").Value() < 1 {
		t.Fatal("goroutines gauge not sampled")
	}
	if !strings.Contains(r.Render(), "bmwdex_heap_alloc_bytes") {
		t.Fatal("heap gauge missing")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Serve(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
