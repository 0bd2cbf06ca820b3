package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/ytgrabba/internal/downloader"
	"github.com/iconidentify/ytgrabba/internal/repository"
)

var startTime = time.Now()

// RemoteChecker probes the conversion API.
type RemoteChecker interface {
	CheckRemote(ctx context.Context) (*downloader.ProbeResult, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	jobRepo repository.JobRepository
	remote  RemoteChecker
}

// NewHealthHandler creates a new health handler. remote may be nil.
func NewHealthHandler(jobRepo repository.JobRepository, remote RemoteChecker) *HealthHandler {
	return &HealthHandler{
		jobRepo: jobRepo,
		remote:  remote,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Remote    string      `json:"remote,omitempty"`
	Queue     *QueueStats `json:"queue,omitempty"`
}

// QueueStats contains job queue statistics.
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. An unreachable conversion API
// is reported but does not fail readiness, since the fallback can still serve.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.jobRepo.Stats(ctx)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Queue: &QueueStats{
			Queued:     stats.Queued,
			Processing: stats.Processing,
			Completed:  stats.Completed,
			Failed:     stats.Failed,
		},
	}
	if h.remote != nil {
		resp.Remote = "ok"
		if probe, err := h.remote.CheckRemote(ctx); err != nil || !probe.Accessible {
			resp.Remote = "unreachable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// SystemStats contains process resource statistics.
type SystemStats struct {
	Uptime        int64   `json:"uptime_seconds"`
	UptimeHuman   string  `json:"uptime_human"`
	MemAllocMB    int64   `json:"mem_alloc_mb"`
	MemSysMB      int64   `json:"mem_sys_mb"`
	MemHeapMB     int64   `json:"mem_heap_mb"`
	NumGoroutines int     `json:"num_goroutines"`
	NumCPU        int     `json:"num_cpu"`
	CPUPercent    float64 `json:"cpu_percent"`
}

// System handles GET /api/v1/system
func (h *HealthHandler) System(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		MemHeapMB:     int64(m.HeapAlloc / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPercent:    getCPUUsage(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
