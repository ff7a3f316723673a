package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/config"
	"github.com/plumbline/blueprint-engine/pkg/services"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and status endpoints.
type HealthHandler struct {
	cfg    *config.Config
	svc    services.BlueprintAnalysisService
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(cfg *config.Config, svc services.BlueprintAnalysisService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, svc: svc, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("GET /api/metrics", h.Metrics)
}

// Health handles GET /health requests.
// Returns a simple "ok" status for load balancer health checks.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "blueprint-engine",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}

// Status handles GET /api/status requests.
// Reports pipeline readiness, lifetime counters, and circuit breaker state.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.svc.Health()); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// Metrics handles GET /api/metrics requests.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, h.svc.Metrics()); err != nil {
		h.logger.Error("Failed to encode metrics response", zap.Error(err))
	}
}
