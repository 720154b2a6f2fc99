package api

import (
	"net/http"
	"time"

	"task-manager/config"
	"task-manager/logger"
	"task-manager/tasks/manager"
)

var startTime = time.Now()

// StatsProvider reports the manager's current state.
type StatsProvider interface {
	Stats() manager.Stats
}

// HealthResponse provides detailed health information
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version,omitempty"`
	Storage   string `json:"storage"`
	Ready     bool   `json:"ready"`
	Tasks     int    `json:"tasks"`
	InFlight  int    `json:"in_flight"`
	LoadError string `json:"load_error,omitempty"`
}

// NewHealthHandler returns a health check handler. It answers 503 until
// the startup load has settled; a failed load is reported as degraded.
func NewHealthHandler(cfg *config.Config, stats StatsProvider, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := stats.Stats()

		response := HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).String(),
			Version:   cfg.Version,
			Storage:   cfg.StorageBackend,
			Ready:     s.Ready,
			Tasks:     s.Tasks,
			InFlight:  s.InFlight,
			LoadError: s.LoadError,
		}

		code := http.StatusOK
		switch {
		case !s.Ready:
			response.Status = "starting"
			code = http.StatusServiceUnavailable
		case s.LoadError != "":
			response.Status = "degraded"
		}

		respondWithJSON(w, code, response, lg)
	}
}
