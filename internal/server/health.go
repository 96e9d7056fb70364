package server

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// Health status constants for health check responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker provides health check endpoints for Kubernetes probes.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// serverContext provides access to dependencies for health checks
	serverContext *ServerContext
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	// Server starts as ready by default
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// isServerShuttingDown checks if the server context is shutting down.
// Returns false if serverContext is nil (safe for testing).
func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is served on /health.
type DetailedHealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	AuthMode string `json:"authMode,omitempty"`
	ReadOnly bool   `json:"readOnly"`
}

// LivenessHandler returns an HTTP handler for the /healthz endpoint.
// Liveness probes indicate whether the process should be restarted.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns an HTTP handler for the /readyz endpoint.
// Readiness probes indicate whether the server is ready to receive traffic.
// Credentials are not resolved here; a broken identity setup shows up on the
// first booking request instead of taking the pod out of rotation.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks := make(map[string]string)
		allOk := true

		if !h.ready.Load() {
			checks["ready"] = healthStatusNotReady
			allOk = false
		} else {
			checks["ready"] = healthStatusOK
		}

		if h.isServerShuttingDown() {
			checks["shutdown"] = healthStatusShuttingDown
			allOk = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		response := HealthResponse{Checks: checks}
		status := http.StatusOK
		if allOk {
			response.Status = healthStatusOK
		} else {
			response.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// DetailedHealthHandler returns an HTTP handler for the /health endpoint,
// which adds uptime and the configured authentication mode.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		response := DetailedHealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		}
		if h.serverContext != nil {
			response.AuthMode = h.serverContext.AuthMode()
			response.ReadOnly = h.serverContext.ReadOnly()
		}

		status := http.StatusOK
		if !h.ready.Load() {
			response.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		} else if h.isServerShuttingDown() {
			response.Status = healthStatusShuttingDown
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the router.
func (h *HealthChecker) RegisterHealthEndpoints(r chi.Router) {
	r.Method(http.MethodGet, "/healthz", h.LivenessHandler())
	r.Method(http.MethodGet, "/readyz", h.ReadinessHandler())
	r.Method(http.MethodGet, "/health", h.DetailedHealthHandler())
}
