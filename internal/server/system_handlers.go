package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/pastolab/herdtrack/internal/database"
	"github.com/pastolab/herdtrack/internal/scheduler"
)

// SystemHandlers serves operational status endpoints.
type SystemHandlers struct {
	log     zerolog.Logger
	db      *database.DB
	sched   *scheduler.Scheduler
	dataDir string
	started time.Time
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, db *database.DB, sched *scheduler.Scheduler, dataDir string) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("component", "system").Logger(),
		db:      db,
		sched:   sched,
		dataDir: dataDir,
		started: time.Now(),
	}
}

// RegisterRoutes registers system routes.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/database", h.HandleDatabaseStats)
		r.Post("/database/checkpoint", h.HandleWALCheckpoint)
		r.Get("/jobs", h.HandleListJobs)
		r.Post("/jobs/{jobName}/run", h.HandleRunJob)
	})
}

// HandleStatus reports process uptime and host resource usage.
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	// 100ms sample keeps the endpoint fast enough for dashboard polling
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	var diskPercent float64
	var diskFreeGB float64
	if usage, err := disk.Usage(h.dataDir); err == nil {
		diskPercent = usage.UsedPercent
		diskFreeGB = float64(usage.Free) / (1024 * 1024 * 1024)
	} else {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
	}

	h.writeJSON(w, map[string]interface{}{
		"uptime_seconds":   int(time.Since(h.started).Seconds()),
		"goroutines":       runtime.NumGoroutine(),
		"cpu_percent":      cpuAvg,
		"memory_percent":   memPercent,
		"disk_percent":     diskPercent,
		"disk_free_gb":     diskFreeGB,
		"go_version":       runtime.Version(),
		"timestamp":        time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseStats reports database file sizes, page counts and the
// result of a quick integrity check.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeError(w, http.StatusInternalServerError, "Failed to get database stats")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	integrity := "ok"
	if err := h.db.QuickCheck(ctx); err != nil {
		h.log.Error().Err(err).Msg("Database quick check failed")
		integrity = err.Error()
	}

	h.writeJSON(w, map[string]interface{}{
		"path":            h.db.Path(),
		"size_bytes":      stats.SizeBytes,
		"wal_size_bytes":  stats.WALSizeBytes,
		"page_count":      stats.PageCount,
		"page_size":       stats.PageSize,
		"freelist_count":  stats.FreelistCount,
		"integrity_check": integrity,
	})
}

// HandleWALCheckpoint forces a WAL checkpoint, reclaiming log space.
func (h *SystemHandlers) HandleWALCheckpoint(w http.ResponseWriter, r *http.Request) {
	if err := h.db.WALCheckpoint(""); err != nil {
		h.log.Error().Err(err).Msg("WAL checkpoint failed")
		h.writeError(w, http.StatusInternalServerError, "WAL checkpoint failed")
		return
	}
	h.writeJSON(w, map[string]string{"status": "checkpointed"})
}

// HandleListJobs lists registered background jobs.
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{"jobs": h.sched.JobNames()})
}

// HandleRunJob triggers a background job outside its schedule.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "jobName")
	if err := h.sched.RunByName(name); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, map[string]string{"status": "completed", "job": name})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
