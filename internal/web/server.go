package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/allocator"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/catalog"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/hedgepricer"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/layout"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/logger"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/solver"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/state"
	"github.com/tamkaize/impermanent-loss-quantum-optimization/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the optimization pipeline and run history over HTTP.
type WebServer struct {
	router     *mux.Router
	port       string
	alloc      *allocator.Allocator
	catalog    types.Catalog
	scenarios  []types.Scenario
	parameters types.ModelParameters
}

// NewWebServer creates a new web server instance bound to a default
// catalog; optimize requests may override the catalog inline.
func NewWebServer(port string, alloc *allocator.Allocator, defaultCatalog types.Catalog, scenarios []types.Scenario, params types.ModelParameters) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		alloc:      alloc,
		catalog:    defaultCatalog,
		scenarios:  scenarios,
		parameters: params,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/optimize", ws.handleOptimize).Methods("POST")
	api.HandleFunc("/scenarios", ws.handleGetScenarios).Methods("GET")
	api.HandleFunc("/hedges/quotes", ws.handleGetHedgeQuotes).Methods("GET")
	api.HandleFunc("/runs", ws.handleGetRuns).Methods("GET")
	api.HandleFunc("/runs/latest", ws.handleGetLatestRun).Methods("GET")
	api.HandleFunc("/runs/{id}", ws.handleGetRun).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		// Remote solver jobs can take a while to drain.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// optimizeRequest is the POST /api/optimize body. Positions and hedges
// documents are optional inline overrides of the server's default catalog.
type optimizeRequest struct {
	ScenarioID         string          `json:"scenario_id"`
	Positions          json.RawMessage `json:"positions,omitempty"`
	Hedges             json.RawMessage `json:"hedges,omitempty"`
	NumSamples         int             `json:"num_samples,omitempty"`
	RelaxationSchedule int             `json:"relaxation_schedule,omitempty"`
}

func (ws *WebServer) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ScenarioID == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "scenario_id is required")
		return
	}

	scenario, err := catalog.PickScenario(ws.scenarios, req.ScenarioID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	requestCatalog := ws.catalog
	if len(req.Positions) > 0 {
		requestCatalog, err = catalog.BuildCatalog(req.Positions, req.Hedges)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := ws.alloc.Optimize(r.Context(), allocator.Request{
		Catalog:            requestCatalog,
		Scenario:           scenario,
		Parameters:         ws.parameters,
		NumSamples:         req.NumSamples,
		RelaxationSchedule: req.RelaxationSchedule,
	})
	if err != nil {
		switch {
		case errors.Is(err, layout.ErrCatalogTooSmall), errors.Is(err, catalog.ErrInvalidCatalog):
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, solver.ErrSolverFailure), errors.Is(err, solver.ErrNoSamples):
			ws.writeErrorResponse(w, http.StatusBadGateway, err.Error())
		default:
			webLogger.Error().Err(err).Msg("Optimization request failed")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Optimization failed")
		}
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, result)
}

func (ws *WebServer) handleGetScenarios(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"scenarios": ws.scenarios,
	})
}

func (ws *WebServer) handleGetHedgeQuotes(w http.ResponseWriter, r *http.Request) {
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = "ETH"
	}

	notional := hedgepricer.ReferenceNotional(ws.catalog.SizeTiers)
	if notionalStr := r.URL.Query().Get("notional"); notionalStr != "" {
		parsed, err := strconv.ParseFloat(notionalStr, 64)
		if err != nil || parsed <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "notional must be a positive number")
			return
		}
		notional = parsed
	}
	if notional <= 0 {
		notional = 5000
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"asset":        asset,
		"notional_usd": notional,
		"quotes":       hedgepricer.BuildHedgeMatrix(asset, notional),
	})
}

func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	runs, err := state.GetRecentOptimizationRuns(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to fetch optimization runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch runs")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (ws *WebServer) handleGetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := state.GetLatestOptimizationRun()
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No optimization runs recorded yet")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to fetch latest run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch latest run")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, run)
}

func (ws *WebServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	run, err := state.GetOptimizationRun(runID)
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Run not found: "+runID)
			return
		}
		webLogger.Error().Err(err).Str("run_id", runID).Msg("Failed to fetch run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch run")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, run)
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbHealthy := false
	runCount := 0
	if state.DB != nil {
		if err := state.DB.Ping(); err == nil {
			dbHealthy = true
			if count, err := state.CountOptimizationRuns(); err == nil {
				runCount = count
			}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !dbHealthy {
		// The pipeline still works without persistence.
		status = "degraded"
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":           status,
		"timestamp":        time.Now().UTC(),
		"database_healthy": dbHealthy,
		"run_count":        runCount,
		"positions":        len(ws.catalog.Positions),
		"scenarios":        len(ws.scenarios),
	})
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
