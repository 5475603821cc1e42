package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bmwdex/bmwdex/engine/catalog"
	"github.com/bmwdex/bmwdex/engine/domain"
	"github.com/bmwdex/bmwdex/engine/graph"
	"github.com/bmwdex/bmwdex/engine/ledger"
	"github.com/bmwdex/bmwdex/engine/search"
	"github.com/bmwdex/bmwdex/pkg/bmwcode"
	"github.com/bmwdex/bmwdex/pkg/repo"
)

// Catalog is the read side of the graph store.
type Catalog interface {
	GetEngine(ctx context.Context, code string) (graph.Engine, error)
	EngineConfigurations(ctx context.Context, code string) ([]graph.EngineConfiguration, error)
	GenerationsWithEngine(ctx context.Context, code string) ([]graph.Generation, error)
	ListEngineClasses(ctx context.Context, opts repo.ListOpts) ([]graph.EngineClass, error)
	Counts(ctx context.Context) (map[string]int64, error)
}

// Searcher runs free-text engine search.
type Searcher interface {
	Search(ctx context.Context, query string, kind search.Kind, topK int) ([]search.Hit, error)
}

// Publisher hands received payloads to the catalog consumer.
type Publisher interface {
	PublishCar(ctx context.Context, p domain.CarPayload) error
	PublishEngine(ctx context.Context, p domain.EnginePayload) error
}

// Syncer asks the catalog consumer to sync its data directory.
type Syncer interface {
	Sync(ctx context.Context, req catalog.SyncRequest) (catalog.SyncReply, error)
}

// History lists recent sync outcomes.
type History interface {
	History(ctx context.Context, limit int) ([]ledger.Entry, error)
}

var (
	_ Catalog   = (*graph.CatalogStore)(nil)
	_ Searcher  = (*search.Index)(nil)
	_ Publisher = (*catalog.Client)(nil)
	_ Syncer    = (*catalog.Client)(nil)
	_ History   = (*ledger.Ledger)(nil)
)

// server holds the handler dependencies. Nil dependencies answer 503.
type server struct {
	log     *slog.Logger
	decode  bmwcode.DecodeOptions
	catalog Catalog
	search  Searcher
	pub     Publisher
	syncer  Syncer
	history History
	archive catalog.Archive
}

const (
	searchLimit = 10
	syncTimeout = 5 * time.Minute
)

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)

	mux.HandleFunc("POST /api/parse/engine", s.handleParseEngine)
	mux.HandleFunc("GET /api/decode/{code}", s.handleDecode)
	mux.HandleFunc("POST /api/parse/chassis", handleParseChassis)
	mux.HandleFunc("POST /api/parse/model-year", handleParseModelYear)

	mux.HandleFunc("POST /api/cars/receive", s.handleReceiveCar)
	mux.HandleFunc("POST /api/engines/receive", s.handleReceiveEngine)
	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/sync/history", s.handleSyncHistory)

	mux.HandleFunc("GET /api/engines/{code}", s.handleGetEngine)
	mux.HandleFunc("GET /api/engine-classes", s.handleListClasses)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/search/engines", s.handleSearch)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Message: msg}
	if err != nil {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Parsing ---

type parseEngineRequest struct {
	Engine string `json:"engine"`
}

// parseEngineResponse encodes missing code and family as null.
type parseEngineResponse struct {
	Code         *string                 `json:"code"`
	EngineFamily *string                 `json:"engineFamily"`
	Valid        bool                    `json:"valid"`
	MatchKind    string                  `json:"match_kind,omitempty"`
	Decoded      string                  `json:"decoded,omitempty"`
	Parts        *bmwcode.EngineDecoding `json:"parts,omitempty"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *server) handleParseEngine(w http.ResponseWriter, r *http.Request) {
	var req parseEngineRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	res := bmwcode.ExtractEngineCode(req.Engine)
	out := parseEngineResponse{
		Code:         nullable(res.Code),
		EngineFamily: nullable(res.EngineFamily),
		MatchKind:    bmwcode.MatchKind(req.Engine),
	}
	if res.HasCode() && bmwcode.IsValidEngineCode(res.Code) {
		parts := bmwcode.DecodeEngineCodeParts(res.Code, s.decode)
		out.Valid, out.Decoded, out.Parts = true, parts.String(), &parts
	}
	writeJSON(w, http.StatusOK, out)
}

type decodeResponse struct {
	Code     string                 `json:"code"`
	Decoded  string                 `json:"decoded"`
	Complete bool                   `json:"complete"`
	Parts    bmwcode.EngineDecoding `json:"parts"`
}

func (s *server) handleDecode(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	if err := domain.ValidateEngineCode(code); err != nil {
		writeError(w, http.StatusBadRequest, "invalid engine code", err)
		return
	}
	parts := bmwcode.DecodeEngineCodeParts(code, s.decode)
	writeJSON(w, http.StatusOK, decodeResponse{Code: code, Decoded: parts.String(), Complete: parts.Complete(), Parts: parts})
}

func handleParseChassis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": req.Name, "codes": bmwcode.ExtractChassisCodes(req.Name)})
}

func handleParseModelYear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelYear string `json:"model_year"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	writeJSON(w, http.StatusOK, bmwcode.ParseModelYear(req.ModelYear))
}

// --- Receive ---

type receiveResponse struct {
	Message  string `json:"message"`
	Count    int    `json:"count"`
	FilePath string `json:"filePath,omitempty"`
	Queued   bool   `json:"queued"`
}

func (s *server) handleReceiveCar(w http.ResponseWriter, r *http.Request) {
	var p domain.CarPayload
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload format", err)
		return
	}
	if err := domain.ValidateCarPayload(p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload format", err)
		return
	}
	resp := receiveResponse{Message: "Car data received", Count: len(p.Data.Models)}
	if s.archive.Dir != "" {
		path, err := s.archive.WriteCar(p)
		if errors.Is(err, domain.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, "Invalid payload format", err)
			return
		}
		if err != nil {
			s.log.ErrorContext(r.Context(), "api: archive car", "model", p.Model, "error", err)
			writeError(w, http.StatusInternalServerError, "File operation failed", err)
			return
		}
		resp.Message, resp.FilePath = "Car data written successfully", path
	}
	if s.pub != nil {
		if err := s.pub.PublishCar(r.Context(), p); err != nil {
			s.log.ErrorContext(r.Context(), "api: publish car", "model", p.Model, "error", err)
			writeError(w, http.StatusBadGateway, "Error processing request", err)
			return
		}
		resp.Queued = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleReceiveEngine(w http.ResponseWriter, r *http.Request) {
	var p domain.EnginePayload
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload format", err)
		return
	}
	if err := domain.ValidateEnginePayload(p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload format", err)
		return
	}
	resp := receiveResponse{Message: "Engine data received", Count: len(p.Data)}
	if s.archive.Dir != "" {
		path, err := s.archive.WriteEngine(p)
		if errors.Is(err, domain.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, "Invalid payload format", err)
			return
		}
		if err != nil {
			s.log.ErrorContext(r.Context(), "api: archive engine", "model", p.Model, "error", err)
			writeError(w, http.StatusInternalServerError, "File operation failed", err)
			return
		}
		resp.Message, resp.FilePath = "Engine data written successfully", path
	}
	if s.pub != nil {
		if err := s.pub.PublishEngine(r.Context(), p); err != nil {
			s.log.ErrorContext(r.Context(), "api: publish engine", "model", p.Model, "error", err)
			writeError(w, http.StatusBadGateway, "Error processing request", err)
			return
		}
		resp.Queued = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Sync ---

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "sync is not configured", nil)
		return
	}
	var req catalog.SyncRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}
	for _, k := range req.Kinds {
		if k != catalog.KindCars && k != catalog.KindEngines {
			writeError(w, http.StatusBadRequest, "unknown kind "+strconv.Quote(string(k)), nil)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()
	reply, err := s.syncer.Sync(ctx, req)
	if err != nil {
		s.log.ErrorContext(ctx, "api: sync request", "error", err)
		writeError(w, http.StatusBadGateway, "Sync failed", err)
		return
	}
	status := http.StatusOK
	if reply.Error != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, reply)
}

func (s *server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "sync ledger is not configured", nil)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.history.History(r.Context(), limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "api: sync history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Catalog reads ---

type engineResponse struct {
	graph.Engine
	Configurations []graph.EngineConfiguration `json:"configurations"`
	Generations    []graph.Generation          `json:"generations"`
}

func (s *server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured", nil)
		return
	}
	code := strings.ToUpper(strings.TrimSpace(r.PathValue("code")))
	ctx := r.Context()
	e, err := s.catalog.GetEngine(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "engine not found", nil)
		return
	}
	if err != nil {
		s.log.ErrorContext(ctx, "api: get engine", "engine_code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	resp := engineResponse{Engine: e}
	if resp.Configurations, err = s.catalog.EngineConfigurations(ctx, code); err == nil {
		resp.Generations, err = s.catalog.GenerationsWithEngine(ctx, code)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "api: engine details", "engine_code", code, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured", nil)
		return
	}
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	classes, err := s.catalog.ListEngineClasses(r.Context(), repo.ListOpts{Offset: offset, Limit: limit})
	if err != nil {
		s.log.ErrorContext(r.Context(), "api: list engine classes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	if classes == nil {
		classes = []graph.EngineClass{}
	}
	writeJSON(w, http.StatusOK, classes)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured", nil)
		return
	}
	counts, err := s.catalog.Counts(r.Context())
	if err != nil {
		s.log.ErrorContext(r.Context(), "api: stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"hits": []search.Hit{}})
		return
	}
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured", nil)
		return
	}
	kind := search.Kind(q.Get("kind"))
	switch kind {
	case "", search.KindEngine, search.KindClass:
	default:
		writeError(w, http.StatusBadRequest, "unknown kind "+strconv.Quote(string(kind)), nil)
		return
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = searchLimit
	}
	hits, err := s.search.Search(r.Context(), query, kind, limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "api: search", "query", query, "error", err)
		writeError(w, http.StatusBadGateway, "search failed", nil)
		return
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "hits": hits})
}
