package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/reliability"
	"github.com/aristath/frontier/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// JobRunner starts registered jobs on demand. The scheduler implements it, so
// manual and scheduled runs of a job share one running guard.
type JobRunner interface {
	Jobs() []string
	RunNow(name string) (<-chan error, error)
}

// SystemHandlers handles system monitoring and job triggers
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	runsDB      *database.DB
	archiver    *reliability.ReportArchiver
	jobs        JobRunner
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status         string          `json:"status"` // "healthy" or "unhealthy"
	UptimeSeconds  int64           `json:"uptime_seconds"`
	Goroutines     int             `json:"goroutines"`
	CPUPercent     float64         `json:"cpu_percent"`
	RAMPercent     float64         `json:"ram_percent"`
	Database       *database.Stats `json:"database,omitempty"`
	ArchiveEnabled bool            `json:"archive_enabled"`
	Jobs           []string        `json:"jobs"`
}

// JobTriggerResponse is returned when a job is triggered manually
type JobTriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewSystemHandlers creates a new system handlers instance. archiver and jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, runsDB *database.DB, archiver *reliability.ReportArchiver, jobs JobRunner) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		runsDB:      runsDB,
		archiver:    archiver,
		jobs:        jobs,
	}
}

func (h *SystemHandlers) jobNames() []string {
	if h.jobs == nil {
		return []string{}
	}
	return h.jobs.Jobs()
}

// HandleSystemStatus returns system status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:         "healthy",
		UptimeSeconds:  int64(time.Since(h.startupTime).Seconds()),
		Goroutines:     runtime.NumGoroutine(),
		CPUPercent:     cpuPercent,
		RAMPercent:     ramPercent,
		ArchiveEnabled: h.archiver != nil,
		Jobs:           h.jobNames(),
	}

	if h.runsDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.runsDB.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Runs database health check failed")
			response.Status = "unhealthy"
		}
		if stats, err := h.runsDB.GetStats(ctx); err == nil {
			response.Database = stats
		} else {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleArchiveList lists archived reports
// GET /api/system/archive
func (h *SystemHandlers) HandleArchiveList(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "report archive not configured"})
		return
	}

	reports, err := h.archiver.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list archived reports")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list archived reports"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": reports,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(reports),
		},
	})
}

// HandleTriggerJob runs a registered job in the background
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		h.writeJSON(w, http.StatusNotFound, JobTriggerResponse{Status: "error", Message: "job " + name + " not registered"})
		return
	}

	done, err := h.jobs.RunNow(name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.writeJSON(w, http.StatusNotFound, JobTriggerResponse{Status: "error", Message: "job " + name + " not registered"})
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		h.writeJSON(w, http.StatusConflict, JobTriggerResponse{Status: "error", Message: "job " + name + " already running"})
		return
	case err != nil:
		h.log.Error().Err(err).Str("job", name).Msg("Failed to trigger job")
		h.writeJSON(w, http.StatusInternalServerError, JobTriggerResponse{Status: "error", Message: "failed to trigger job " + name})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")
	go func() {
		if err := <-done; err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, JobTriggerResponse{Status: "success", Message: "job " + name + " triggered"})
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short interval (100ms) to avoid blocking the API call for too long
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
