package ui

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocanopy/adapters/stats/bayes"
	"gocanopy/adapters/stats/optimizer"
	"gocanopy/app"
	"gocanopy/domain/canopy"
	"gocanopy/domain/core"
	"gocanopy/internal/errors"
	"gocanopy/ports"
)

// App represents the HTTP API application
type App struct {
	router  *chi.Mux
	service *app.FitService
	repo    ports.FitResultRepository
	port    string
}

// Config holds HTTP application configuration
type Config struct {
	Port string
}

// NewApp creates the HTTP API over a fit service and an optional
// result repository
func NewApp(config Config, service *app.FitService, repo ports.FitResultRepository) *App {
	a := &App{
		router:  chi.NewRouter(),
		service: service,
		repo:    repo,
		port:    config.Port,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	a.router.Post("/api/fits", a.handleRunFit)
	a.router.Get("/api/fits", a.handleListRuns)
	a.router.Get("/api/fits/{id}", a.handleGetRun)
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := ":" + a.port
	log.Printf("Starting gocanopy API server on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// fitPayload is the JSON body accepted by POST /api/fits
type fitPayload struct {
	Observations []canopy.Observation    `json:"observations"`
	Restarts     int                     `json:"restarts,omitempty"`
	BaseSeed     int64                   `json:"base_seed,omitempty"`
	Level        float64                 `json:"level,omitempty"`
	RunBayes     bool                    `json:"run_bayes,omitempty"`
	Chains       int                     `json:"chains,omitempty"`
	Warmup       int                     `json:"warmup,omitempty"`
	Samples      int                     `json:"samples,omitempty"`
	Predictive   []bayes.PredictivePoint `json:"predictive,omitempty"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleRunFit(w http.ResponseWriter, r *http.Request) {
	var payload fitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeError(w, http.StatusBadRequest, errors.InvalidInput("malformed request body"))
		return
	}

	optCfg := optimizer.DefaultConfig()
	if payload.Restarts > 0 {
		optCfg.Restarts = payload.Restarts
	}
	if payload.BaseSeed != 0 {
		optCfg.BaseSeed = payload.BaseSeed
	}
	mcmcCfg := bayes.DefaultConfig()
	if payload.Chains > 0 {
		mcmcCfg.Chains = payload.Chains
	}
	if payload.Warmup > 0 {
		mcmcCfg.Warmup = payload.Warmup
	}
	if payload.Samples > 0 {
		mcmcCfg.Samples = payload.Samples
	}

	outcome, err := a.service.Run(r.Context(), app.FitRequest{
		Observations: payload.Observations,
		Optimizer:    optCfg,
		Sampler:      mcmcCfg,
		Level:        payload.Level,
		Predictive:   payload.Predictive,
		RunBayes:     payload.RunBayes,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.GetCode(err) == errors.CodeInvalidInput {
			status = http.StatusBadRequest
		}
		a.writeError(w, status, err)
		return
	}
	a.writeJSON(w, http.StatusOK, outcome)
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if a.repo == nil {
		a.writeError(w, http.StatusNotImplemented, errors.New(errors.CodeConfigInvalid, "no result store configured"))
		return
	}
	runs, err := a.repo.ListRuns(r.Context(), 50)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if a.repo == nil {
		a.writeError(w, http.StatusNotImplemented, errors.New(errors.CodeConfigInvalid, "no result store configured"))
		return
	}
	runID := core.RunID(chi.URLParam(r, "id"))
	tables, err := a.repo.GetEstimates(r.Context(), runID)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(tables) == 0 {
		a.writeError(w, http.StatusNotFound, errors.New(errors.CodeInvalidInput, "run not found"))
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"run_id": runID, "tables": tables})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, err error) {
	a.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
