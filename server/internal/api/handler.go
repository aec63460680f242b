package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/alerts"
	"github.com/plantlens/plantlens/server/internal/analysis"
	"github.com/plantlens/plantlens/server/internal/config"
	"github.com/plantlens/plantlens/server/internal/exposition"
	"github.com/plantlens/plantlens/server/internal/importer"
	"github.com/plantlens/plantlens/server/internal/normalize"
	"github.com/plantlens/plantlens/server/internal/store"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 32 << 20

// Publisher receives every dataset report the API produces.
// *ws.Hub satisfies it.
type Publisher interface {
	Publish(dataset string, r *types.Report)
	Forget(dataset string)
}

// settings is the reloadable part of the handler. A request loads it once so
// one run sees one consistent parameter set.
type settings struct {
	params     types.Parameters
	engine     *analysis.Engine
	collectors map[string]*importer.Collector
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store    *store.Store
	alerts   *alerts.Engine
	pub      Publisher
	settings atomic.Pointer[settings]
	router   *mux.Router
	now      func() time.Time
}

// New creates a Handler wired to the dataset store, the alert engine and an
// optional report publisher, and registers all routes.
func New(st *store.Store, al *alerts.Engine, pub Publisher, cfg *config.Config) *Handler {
	h := &Handler{store: st, alerts: al, pub: pub, router: mux.NewRouter(), now: time.Now}
	h.Apply(cfg)

	v1 := h.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", h.health).Methods(http.MethodGet)
	v1.HandleFunc("/parameters", h.parameters).Methods(http.MethodGet)
	v1.HandleFunc("/analyze", h.analyze).Methods(http.MethodPost)
	v1.HandleFunc("/alerts", h.listAlerts).Methods(http.MethodGet)

	v1.HandleFunc("/datasets", h.listDatasets).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{id}", h.putDataset).Methods(http.MethodPut)
	v1.HandleFunc("/datasets/{id}", h.deleteDataset).Methods(http.MethodDelete)
	v1.HandleFunc("/datasets/{id}/rows", h.getRows).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{id}/rows", h.appendRows).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{id}/import", h.importRows).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{id}/collect/{source}", h.collect).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{id}/analyze", h.analyzeDataset).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{id}/diagnostics", h.diagnostics).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{id}/metrics", h.metrics).Methods(http.MethodGet)

	h.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	h.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return h
}

// Apply swaps in the analysis defaults, aliases and sources of cfg.
// Requests already in flight keep the settings they started with.
func (h *Handler) Apply(cfg *config.Config) {
	s := &settings{
		params:     cfg.Analysis.Parameters,
		engine:     analysis.NewEngine(normalize.DefaultAliases().Merge(cfg.Analysis.Aliases), nil),
		collectors: make(map[string]*importer.Collector, len(cfg.Sources)),
	}
	for _, src := range cfg.Sources {
		s.collectors[src.ID] = importer.NewCollector(src)
	}
	h.settings.Store(s)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	firing := 0
	for _, a := range h.alerts.Active() {
		if a.State == alerts.StateFiring {
			firing++
		}
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		DatasetCount: len(h.store.List()),
		FiringAlerts: firing,
		Time:         h.now().UTC(),
	})
}

// parameters returns GET /api/v1/parameters: the defaults every run starts from.
func (h *Handler) parameters(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Load()
	sources := make([]string, 0, len(s.collectors))
	for id := range s.collectors {
		sources = append(sources, id)
	}
	sort.Strings(sources)
	jsonResp(w, http.StatusOK, ParametersResponse{Parameters: s.params, Sources: sources})
}

// analyze handles POST /api/v1/analyze: a stateless run over the posted rows.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	s := h.settings.Load()
	report, err := s.engine.Run(req.Rows, req.Parameters.apply(s.params))
	if err != nil {
		analysisErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, report)
}

// listAlerts returns GET /api/v1/alerts: firing alerts and those resolved
// within the past hour.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// listDatasets returns GET /api/v1/datasets.
func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.store.List())
}

// putDataset handles PUT /api/v1/datasets/{id}: replace all rows.
func (h *Handler) putDataset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req RowsRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Put(id, req.Rows); err != nil {
		storeErr(w, err)
		return
	}
	slog.Info("api: dataset replaced", "dataset", id, "rows", len(req.Rows))
	jsonResp(w, http.StatusOK, DatasetResponse{ID: id, Rows: len(req.Rows)})
}

// deleteDataset handles DELETE /api/v1/datasets/{id}: drop the rows and
// resolve the dataset's alerts.
func (h *Handler) deleteDataset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.store.Delete(id) {
		jsonErr(w, http.StatusNotFound, "dataset not found")
		return
	}
	h.alerts.Clear(id)
	if h.pub != nil {
		h.pub.Forget(id)
	}
	slog.Info("api: dataset deleted", "dataset", id)
	w.WriteHeader(http.StatusNoContent)
}

// getRows returns GET /api/v1/datasets/{id}/rows.
func (h *Handler) getRows(w http.ResponseWriter, r *http.Request) {
	d, ok := h.store.Get(mux.Vars(r)["id"])
	if !ok {
		jsonErr(w, http.StatusNotFound, "dataset not found")
		return
	}
	jsonResp(w, http.StatusOK, RowsResponse{ID: d.ID, Rows: d.Rows, UpdatedAt: d.UpdatedAt.UTC()})
}

// appendRows handles POST /api/v1/datasets/{id}/rows.
func (h *Handler) appendRows(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	h.appendAndRespond(w, mux.Vars(r)["id"], req.Rows)
}

// importRows handles POST /api/v1/datasets/{id}/import: the body is a machine
// exporter page in the Prometheus text format. The facility query parameter
// labels samples that carry none.
func (h *Handler) importRows(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	rows, err := importer.Parse(r.Body, r.URL.Query().Get("facility"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	h.appendAndRespond(w, mux.Vars(r)["id"], rows)
}

// collect handles POST /api/v1/datasets/{id}/collect/{source}: a one-shot
// pull from a configured exporter.
func (h *Handler) collect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, ok := h.settings.Load().collectors[vars["source"]]
	if !ok {
		jsonErr(w, http.StatusNotFound, "source not found")
		return
	}
	rows, err := c.Collect(r.Context())
	if err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	h.appendAndRespond(w, vars["id"], rows)
}

// analyzeDataset handles POST /api/v1/datasets/{id}/analyze. The report is
// checked against the alert rules and published to stream clients.
func (h *Handler) analyzeDataset(w http.ResponseWriter, r *http.Request) {
	var req DatasetAnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	report, ok := h.runDataset(w, id, req.Parameters)
	if !ok {
		return
	}

	fired := h.alerts.Evaluate(id, report)
	if h.pub != nil {
		h.pub.Publish(id, report)
	}
	slog.Info("api: dataset analyzed",
		"dataset", id,
		"report", report.ID,
		"groups", len(report.Groups),
		"alerts_fired", len(fired),
	)
	jsonResp(w, http.StatusOK, report)
}

// diagnostics returns GET /api/v1/datasets/{id}/diagnostics: per-group hints
// under the default parameters.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	report, ok := h.runDataset(w, mux.Vars(r)["id"], nil)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, diagnose(report))
}

// metrics returns GET /api/v1/datasets/{id}/metrics: the analysis under the
// default parameters in the Prometheus text format.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, ok := h.runDataset(w, id, nil)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", exposition.ContentType)
	if err := exposition.Write(w, id, report); err != nil {
		slog.Error("api: write exposition", "dataset", id, "err", err)
	}
}

// --- helpers ----------------------------------------------------------------

// runDataset analyzes dataset id. On failure it writes the error response and
// returns false.
func (h *Handler) runDataset(w http.ResponseWriter, id string, o *ParameterOverride) (*types.Report, bool) {
	d, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "dataset not found")
		return nil, false
	}
	s := h.settings.Load()
	report, err := s.engine.Run(d.Rows, o.apply(s.params))
	if err != nil {
		analysisErr(w, err)
		return nil, false
	}
	return report, true
}

func (h *Handler) appendAndRespond(w http.ResponseWriter, id string, rows []types.Row) {
	total, err := h.store.Append(id, rows)
	if err != nil {
		storeErr(w, err)
		return
	}
	slog.Info("api: rows appended", "dataset", id, "appended", len(rows), "rows", total)
	jsonResp(w, http.StatusOK, DatasetResponse{ID: id, Rows: total, Appended: len(rows)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// analysisErr maps input errors to 422 and anything else to 500.
func analysisErr(w http.ResponseWriter, err error) {
	var (
		schema *normalize.SchemaError
		date   *normalize.DateParseError
		value  *normalize.ValueError
		param  *analysis.ParameterError
	)
	switch {
	case errors.As(err, &schema):
		jsonResp(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Missing: schema.Missing})
	case errors.As(err, &date), errors.As(err, &value), errors.As(err, &param):
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("api: analysis failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "analysis failed")
	}
}

func storeErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRowLimit) {
		jsonErr(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	jsonErr(w, http.StatusInternalServerError, err.Error())
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
