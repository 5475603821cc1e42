package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bmwdex/bmwdex/engine/catalog"
	"github.com/bmwdex/bmwdex/engine/domain"
	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/engine/ledger"
	"github.com/bmwdex/bmwdex/engine/search"
	"github.com/bmwdex/bmwdex/pkg/bmwcode"
	"github.com/bmwdex/bmwdex/pkg/natsutil"
	"github.com/bmwdex/bmwdex/pkg/natsutil/natstest"
	"github.com/bmwdex/bmwdex/pkg/repo"
)

// --- Fakes ---

type fakeCatalog struct {
	engines map[string]graph.Engine
	classes []graph.EngineClass
	err     error
	opts    repo.ListOpts
}

func (f *fakeCatalog) GetEngine(_ context.Context, code string) (graph.Engine, error) {
	if f.err != nil {
		return graph.Engine{}, f.err
	}
	e, ok := f.engines[code]
	if !ok {
		return graph.Engine{}, fmt.Errorf("engine %s: %w", code, repo.ErrNotFound)
	}
	return e, nil
}

func (f *fakeCatalog) EngineConfigurations(_ context.Context, code string) ([]graph.EngineConfiguration, error) {
	return []graph.EngineConfiguration{{EngineCode: code, Power: "240 kW", Years: "2015-2018"}}, nil
}

func (f *fakeCatalog) GenerationsWithEngine(context.Context, string) ([]graph.Generation, error) {
	return []graph.Generation{{ID: "bmw-3-series-g20", Name: "G20"}}, nil
}

func (f *fakeCatalog) ListEngineClasses(_ context.Context, opts repo.ListOpts) ([]graph.EngineClass, error) {
	f.opts = opts
	return f.classes, f.err
}

func (f *fakeCatalog) Counts(context.Context) (map[string]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return map[string]int64{"engines": 2, "generations": 5}, nil
}

type fakeSearcher struct {
	query string
	kind  search.Kind
	topK  int
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, query string, kind search.Kind, topK int) ([]search.Hit, error) {
	f.query, f.kind, f.topK = query, kind, topK
	if f.err != nil {
		return nil, f.err
	}
	return []search.Hit{{Kind: search.KindEngine, Key: "B58B30M0", Score: 0.9}}, nil
}

type fakeSyncer struct {
	reply catalog.SyncReply
	err   error
	got   catalog.SyncRequest
}

func (f *fakeSyncer) Sync(_ context.Context, req catalog.SyncRequest) (catalog.SyncReply, error) {
	f.got = req
	return f.reply, f.err
}

type fakeHistory struct{ entries []ledger.Entry }

func (f *fakeHistory) History(_ context.Context, limit int) ([]ledger.Entry, error) {
	return f.entries[:min(limit, len(f.entries))], nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// --- Tests ---

func TestHealth(t *testing.T) {
	rec := do(t, (&server{}).routes(), "GET", "/api/health", "")
	if rec.Code != http.StatusOK || decode[map[string]string](t, rec)["status"] != "ok" {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}
}

func TestParseEngine(t *testing.T) {
	h := (&server{log: quiet()}).routes()
	tests := []struct {
		name string
		body string
		want map[string]any
	}{
		{
			name: "modern code",
			body: `{"engine":"B38A15M0 1.5 L I3 turbo"}`,
			want: map[string]any{
				"code": "B38A15M0", "engineFamily": "B38", "valid": true, "match_kind": "modern-full",
				"decoded": bmwcode.DecodeEngineCode("B38A15M0"),
			},
		},
		{
			name: "basic code",
			body: `{"engine":"M20 straight six"}`,
			want: map[string]any{
				"code": "M20", "engineFamily": "M20", "valid": true, "match_kind": "basic",
				"decoded": bmwcode.DecodeEngineCode("M20"),
			},
		},
		{
			name: "nothing",
			body: `{"engine":"2.0 L diesel"}`,
			want: map[string]any{"code": nil, "engineFamily": nil, "valid": false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/parse/engine", tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status %d", rec.Code)
			}
			got := decode[map[string]any](t, rec)
			delete(got, "parts")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	if rec := do(t, h, "POST", "/api/parse/engine", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: %d", rec.Code)
	}
}

func TestDecode(t *testing.T) {
	h := (&server{log: quiet()}).routes()
	rec := do(t, h, "GET", "/api/decode/b38a15m0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	got := decode[decodeResponse](t, rec)
	if got.Code != "B38A15M0" || got.Decoded != bmwcode.DecodeEngineCode("B38A15M0") || got.Complete {
		t.Errorf("got %+v", got)
	}

	folded := (&server{log: quiet(), decode: bmwcode.DecodeOptions{FoldCase: true}}).routes()
	got = decode[decodeResponse](t, do(t, folded, "GET", "/api/decode/B38A15M0", ""))
	if !got.Parts.Mounting.OK || !strings.Contains(got.Decoded, "transverse mounted") {
		t.Errorf("fold case: %+v", got)
	}

	rec = do(t, h, "GET", "/api/decode/NOTACODE", "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid engine code") {
		t.Errorf("invalid code: %d %s", rec.Code, rec.Body)
	}
}

func TestParseChassisAndModelYear(t *testing.T) {
	h := (&server{log: quiet()}).routes()
	chassis := decode[struct{ Codes []string }](t, do(t, h, "POST", "/api/parse/chassis", `{"name":"E90/E91/LCI"}`))
	if diff := cmp.Diff([]string{"E90", "E91"}, chassis.Codes); diff != "" {
		t.Errorf("codes (-want +got):\n%s", diff)
	}

	years := decode[map[string]any](t, do(t, h, "POST", "/api/parse/model-year", `{"model_year":"2019–present"}`))
	if diff := cmp.Diff(map[string]any{"start_year": float64(2019), "end_year": nil}, years); diff != "" {
		t.Errorf("years (-want +got):\n%s", diff)
	}
}

func TestReceiveArchivesAndPublishes(t *testing.T) {
	_, nc := natstest.Start(t)
	got := make(chan domain.CarPayload, 1)
	sub, err := natsutil.Subscribe(nc, catalog.SubjectCars, "", quiet(), func(_ context.Context, m natsutil.Msg[domain.CarPayload]) {
		got <- m.Value
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	dir := t.TempDir()
	client := catalog.NewClient(nc)
	h := (&server{log: quiet(), archive: catalog.Archive{Dir: dir}, pub: client}).routes()

	body := `{"make":"BMW","model":"M3","data":{"models":[{"model":"E30","engine_details":[{"engine":"S14B23"}]}]}}`
	rec := do(t, h, "POST", "/api/cars/receive", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	resp := decode[receiveResponse](t, rec)
	want := receiveResponse{Message: "Car data written successfully", Count: 1, FilePath: filepath.Join(dir, "bmw", "cars", "m3.json"), Queued: true}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(resp.FilePath); err != nil {
		t.Errorf("archive: %v", err)
	}
	select {
	case p := <-got:
		if p.Model != "M3" || len(p.Data.Models) != 1 {
			t.Errorf("published %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("payload not published")
	}
}

func TestReceiveRejectsInvalidPayloads(t *testing.T) {
	h := (&server{log: quiet()}).routes()
	tests := []struct {
		path, body string
	}{
		{"/api/cars/receive", `{"model":"M3","data":[]}`},
		{"/api/cars/receive", `not json`},
		{"/api/engines/receive", `{"model":"BMW S14"}`},
		{"/api/engines/receive", `{"data":[]}`},
	}
	for _, tt := range tests {
		rec := do(t, h, "POST", tt.path, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status %d", tt.path, tt.body, rec.Code)
			continue
		}
		if msg := decode[errorBody](t, rec).Message; msg != "Invalid payload format" {
			t.Errorf("%s %s: message %q", tt.path, tt.body, msg)
		}
	}
}

func TestReceiveKeepsArchiveInsideDataDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "lib")
	h := (&server{log: quiet(), archive: catalog.Archive{Dir: dir}}).routes()

	rec := do(t, h, "POST", "/api/cars/receive", `{"make":"../../escaped","model":"pwn","data":{"models":[]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	got := decode[receiveResponse](t, rec)
	if rel, err := filepath.Rel(dir, got.FilePath); err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("archived outside data dir: %s", got.FilePath)
	}
	if _, err := os.Stat(filepath.Join(root, "escaped")); !os.IsNotExist(err) {
		t.Fatal("traversal wrote outside the data dir")
	}

	for _, tt := range []struct{ path, body string }{
		{"/api/cars/receive", `{"make":"..","model":"pwn","data":{"models":[]}}`},
		{"/api/engines/receive", `{"model":"..","data":[{"engine_code":"N55B30"}]}`},
	} {
		rec := do(t, h, "POST", tt.path, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status %d", tt.path, tt.body, rec.Code)
		}
	}
}

func TestReceiveEngineWithoutArchive(t *testing.T) {
	h := (&server{log: quiet()}).routes()
	rec := do(t, h, "POST", "/api/engines/receive", `{"model":"BMW S14","data":[{"engine_code":"S14B23"},{"engine_code":"S14B25"}]}`)
	got := decode[receiveResponse](t, rec)
	if rec.Code != http.StatusOK || got.Count != 2 || got.Queued || got.FilePath != "" {
		t.Fatalf("%d %+v", rec.Code, got)
	}
}

func TestSync(t *testing.T) {
	syncer := &fakeSyncer{reply: catalog.SyncReply{Message: "Database sync completed", Results: []catalog.FileResult{{File: "a.json", Status: catalog.StatusSuccess}}}}
	h := (&server{log: quiet(), syncer: syncer}).routes()

	rec := do(t, h, "POST", "/api/sync", `{"kinds":["engines"]}`)
	if rec.Code != http.StatusOK || len(syncer.got.Kinds) != 1 {
		t.Fatalf("status %d req %+v", rec.Code, syncer.got)
	}
	if rec := do(t, h, "POST", "/api/sync", ""); rec.Code != http.StatusOK {
		t.Errorf("empty body: %d", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/sync", `{"kinds":["trucks"]}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: %d", rec.Code)
	}

	syncer.reply = catalog.SyncReply{Message: "Sync failed", Error: "permission denied"}
	if rec := do(t, h, "POST", "/api/sync", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("failed sync: %d", rec.Code)
	}
	syncer.err = errors.New("no responders")
	if rec := do(t, h, "POST", "/api/sync", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("unreachable consumer: %d", rec.Code)
	}
	if rec := do(t, (&server{log: quiet()}).routes(), "POST", "/api/sync", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no syncer: %d", rec.Code)
	}
}

func TestSyncHistory(t *testing.T) {
	hist := &fakeHistory{entries: []ledger.Entry{{Path: "b.json"}, {Path: "a.json"}}}
	h := (&server{log: quiet(), history: hist}).routes()
	got := decode[[]ledger.Entry](t, do(t, h, "GET", "/api/sync/history?limit=1", ""))
	if len(got) != 1 || got[0].Path != "b.json" {
		t.Errorf("history = %+v", got)
	}
}

func TestGetEngine(t *testing.T) {
	cat := &fakeCatalog{engines: map[string]graph.Engine{"B58B30M0": {Code: "B58B30M0", Family: "B58", Valid: true}}}
	h := (&server{log: quiet(), catalog: cat}).routes()

	rec := do(t, h, "GET", "/api/engines/b58b30m0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	got := decode[engineResponse](t, rec)
	if got.Family != "B58" || len(got.Configurations) != 1 || got.Generations[0].Name != "G20" {
		t.Errorf("got %+v", got)
	}

	if rec := do(t, h, "GET", "/api/engines/N55B30M0", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing engine: %d", rec.Code)
	}
	cat.err = errors.New("neo4j down")
	if rec := do(t, h, "GET", "/api/engines/B58B30M0", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("store error: %d", rec.Code)
	}
}

func TestListClassesAndStats(t *testing.T) {
	cat := &fakeCatalog{classes: []graph.EngineClass{{Model: "BMW B58"}}}
	h := (&server{log: quiet(), catalog: cat}).routes()

	classes := decode[[]graph.EngineClass](t, do(t, h, "GET", "/api/engine-classes?offset=20&limit=5", ""))
	if len(classes) != 1 || cat.opts != (repo.ListOpts{Offset: 20, Limit: 5}) {
		t.Errorf("classes=%+v opts=%+v", classes, cat.opts)
	}
	stats := decode[map[string]int64](t, do(t, h, "GET", "/api/stats", ""))
	if stats["engines"] != 2 {
		t.Errorf("stats = %v", stats)
	}
	if rec := do(t, (&server{log: quiet()}).routes(), "GET", "/api/stats", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no catalog: %d", rec.Code)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := &fakeSearcher{}
	for _, h := range []http.Handler{
		(&server{log: quiet(), search: s}).routes(),
		(&server{log: quiet()}).routes(),
	} {
		for _, path := range []string{"/api/search/engines", "/api/search/engines?q=+++"} {
			rec := do(t, h, "GET", path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status %d", path, rec.Code)
			}
			if body := strings.TrimSpace(rec.Body.String()); body != `{"hits":[]}` {
				t.Errorf("%s: body %s", path, body)
			}
		}
	}
	if s.query != "" {
		t.Errorf("empty query reached the index: %q", s.query)
	}
}

func TestSearch(t *testing.T) {
	s := &fakeSearcher{}
	h := (&server{log: quiet(), search: s}).routes()

	rec := do(t, h, "GET", "/api/search/engines?q=twin+turbo+six", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if s.query != "twin turbo six" || s.topK != searchLimit || s.kind != "" {
		t.Errorf("searched %q kind=%q topK=%d", s.query, s.kind, s.topK)
	}
	do(t, h, "GET", "/api/search/engines?q=b58&kind=class&limit=3", "")
	if s.kind != search.KindClass || s.topK != 3 {
		t.Errorf("kind=%q topK=%d", s.kind, s.topK)
	}

	if rec := do(t, h, "GET", "/api/search/engines?q=b58&kind=cars", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: %d", rec.Code)
	}
	s.err = errors.New("qdrant down")
	if rec := do(t, h, "GET", "/api/search/engines?q=b58", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("search error: %d", rec.Code)
	}
}
