package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"photomap/internal/catalog"
	"photomap/internal/intake"
	"photomap/internal/logging"
	"photomap/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"

	statsTimeout = 2 * time.Second
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Intake intake.Status `json:"intake"`

	Catalog      *catalog.Stats `json:"catalog,omitempty"`
	CatalogError string         `json:"catalogError,omitempty"`

	MemoryUsage  float64 `json:"memoryUsage"`
	MemoryPaused bool    `json:"memoryPaused"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. It reports 503
// until the first successful poll.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.intake.GetStatus()

	response := HealthResponse{
		Ready:        status.Ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Intake:       status,
		MemoryUsage:  h.memory.GetUsage(),
		MemoryPaused: h.memory.IsPaused(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()

	stats, err := h.stats.GetStats(ctx)
	if err != nil {
		logging.Warn("Health check could not read catalog stats: %v", err)
		response.CatalogError = err.Error()
	} else {
		response.Catalog = &stats
	}

	switch {
	case !status.Ready && status.LastPoll.IsZero():
		response.Status = statusStarting
	case !status.Ready, err != nil, response.MemoryPaused:
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	code := http.StatusOK
	if response.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	respond(w, r, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, r, http.StatusOK, "alive")
}

// ReadinessCheck returns 200 once the intake poller has completed a
// successful poll.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.intake.IsReady() {
		respondStatus(w, r, http.StatusOK, "ready")
		return
	}
	respondStatus(w, r, http.StatusServiceUnavailable, "not_ready")
}
