// Package api provides HTTP handlers for reordering and analyzing appliance
// configuration and for browsing deployment runs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/analyze"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/domain"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/plan"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/reorder"
	"github.com/DumpySquare/flipperAgents-sub001/internal/core/sanitize"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/api/openapi"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies. Full appliance exports run to a few MB.
const maxBodyBytes = 16 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store           store.Store
	engine          *reorder.Engine
	sanitizeOptions sanitize.Options
	logger          *zap.Logger
	version         string
}

// NewHandler creates a new API handler. A nil engine uses the default tier
// table and a nil logger discards output.
func NewHandler(s store.Store, engine *reorder.Engine, sanitizeOptions sanitize.Options, l *zap.Logger) *Handler {
	if engine == nil {
		engine = reorder.New(nil)
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{
		store:           s,
		engine:          engine,
		sanitizeOptions: sanitizeOptions,
		logger:          l,
		version:         "dev",
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reorder", h.handleReorder)
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/plan", h.handlePlan)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.handleListRuns)
			r.Get("/{id}", h.handleGetRun)
		})
	})

	// API documentation
	r.Get("/openapi.json", h.openAPI().Handler())

	return r
}

// openAPI describes the routes registered in Routes.
// SetVersion sets the build version reported in the OpenAPI document.
func (h *Handler) SetVersion(version string) {
	h.version = version
}

func (h *Handler) openAPI() *openapi.Generator {
	g := openapi.NewGenerator(
		openapi.WithTitle("nsorder API"),
		openapi.WithVersion(h.version),
		openapi.WithDescription("Reorder appliance configuration into dependency order and deploy it over SSH"),
	)

	configErrors := []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}
	g.Register(openapi.Operation{
		Method: http.MethodPost, Path: "/api/v1/reorder", ID: "reorder", Tag: "Config",
		Summary: "Reorder commands into dependency order",
		Request: ConfigRequest{}, Response: ReorderResponse{}, Errors: configErrors,
	})
	g.Register(openapi.Operation{
		Method: http.MethodPost, Path: "/api/v1/analyze", ID: "analyze", Tag: "Config",
		Summary: "Count objects per category",
		Request: ConfigRequest{}, Response: AnalyzeResponse{}, Errors: configErrors,
	})
	g.Register(openapi.Operation{
		Method: http.MethodPost, Path: "/api/v1/plan", ID: "plan", Tag: "Config",
		Summary: "Explain where each command moves",
		Request: ConfigRequest{}, Response: PlanResponse{},
		Errors:  append(configErrors, http.StatusInternalServerError),
	})
	g.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/api/v1/runs", ID: "listRuns", Tag: "Runs",
		Summary:  "List deployment runs, newest first",
		Response: ListRunsResponse{},
		QueryParams: []openapi.Param{
			{Name: "target", Description: "Only runs for this target"},
			{Name: "limit", Integer: true},
			{Name: "offset", Integer: true},
		},
		Errors: []int{http.StatusInternalServerError, http.StatusServiceUnavailable},
	})
	g.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/api/v1/runs/{id}", ID: "getRun", Tag: "Runs",
		Summary:  "Get one deployment run",
		Response: RunResponse{},
		Errors:   []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusServiceUnavailable},
	})
	g.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/health", ID: "health", Tag: "Health",
		Summary: "Liveness probe", Response: HealthResponse{},
	})
	g.Register(openapi.Operation{
		Method: http.MethodGet, Path: "/ready", ID: "ready", Tag: "Health",
		Summary: "Readiness probe", Response: ReadyResponse{},
		Errors:  []int{http.StatusServiceUnavailable},
	})

	return g
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "disabled"}

	if h.store != nil {
		if _, err := h.store.ListRuns(r.Context(), store.ListOptions{Limit: 1}); err != nil {
			h.logger.Warn("readiness check failed", zap.Error(err))
			checks["database"] = "failed"
			h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
				Status: "not_ready",
				Checks: checks,
			})
			return
		}
		checks["database"] = "ok"
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Config Handlers
// =============================================================================

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readConfig(w, r)
	if !ok {
		return
	}

	cmds := h.engine.Order(h.engine.Parse(text))
	h.writeJSON(w, http.StatusOK, ReorderResponse{
		Batch:    reorder.Join(cmds),
		Commands: len(cmds),
	})
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readConfig(w, r)
	if !ok {
		return
	}

	report := analyze.Analyze(text)
	h.writeJSON(w, http.StatusOK, AnalyzeResponse{
		Report: report,
		Total:  report.Total(),
	})
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readConfig(w, r)
	if !ok {
		return
	}

	p := plan.Build(h.engine, text)
	diff, err := plan.Diff(h.engine, text)
	if err != nil {
		h.logger.Error("failed to render diff", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to render diff", "internal_error")
		return
	}

	steps := p.Steps
	if steps == nil {
		steps = []plan.Step{}
	}
	h.writeJSON(w, http.StatusOK, PlanResponse{
		Steps: steps,
		Moved: p.Moved(),
		Diff:  diff,
	})
}

// readConfig decodes a ConfigRequest and returns the text to process. It
// writes the error response itself and returns false on failure.
func (h *Handler) readConfig(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ConfigRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "request_too_large")
			return "", false
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request")
		return "", false
	}

	text := req.Config
	if req.Sanitize {
		text = sanitize.Apply(text, h.sanitizeOptions)
	}
	return text, true
}

// =============================================================================
// Run Handlers
// =============================================================================

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "run not found", "run_not_found")
			return
		}
		h.logger.Error("failed to get run", zap.String("run_id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to get run", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, runToResponse(run))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	opts = opts.Normalize()

	var runs []domain.Run
	var err error

	// Filter by target if provided
	target := r.URL.Query().Get("target")
	if target != "" {
		runs, err = h.store.ListRunsByTarget(r.Context(), target, opts)
	} else {
		runs, err = h.store.ListRuns(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}

	total, err := h.store.CountRuns(r.Context(), target)
	if err != nil {
		h.logger.Error("failed to count runs", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list runs", "internal_error")
		return
	}

	resp := ListRunsResponse{
		Runs:   make([]RunResponse, 0, len(runs)),
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for i := range runs {
		resp.Runs = append(resp.Runs, runToResponse(&runs[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run history is not configured", "store_unavailable")
		return false
	}
	return true
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func runToResponse(run *domain.Run) RunResponse {
	return RunResponse{
		ID:           run.ID,
		Target:       run.Target,
		Status:       run.Status,
		CommandCount: run.CommandCount,
		Report:       run.Report,
		Batch:        run.Batch,
		Output:       run.Output,
		FailedLines:  domain.FailedLines(run.Output),
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
