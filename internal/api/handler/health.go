package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/iconidentify/tunegrab/internal/service"
	"github.com/iconidentify/tunegrab/internal/worker"
)

// Checker reports whether a dependency is usable.
type Checker interface {
	Available() error
}

// PoolStatter exposes worker pool counters.
type PoolStatter interface {
	Stats() worker.Stats
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	stats       *service.StatsService
	pool        PoolStatter
	checks      map[string]Checker
	downloadDir string
}

// NewHealthHandler creates a new health handler. checks are consulted by Ready.
func NewHealthHandler(stats *service.StatsService, pool PoolStatter, checks map[string]Checker, downloadDir string) *HealthHandler {
	return &HealthHandler{
		stats:       stats,
		pool:        pool,
		checks:      checks,
		downloadDir: downloadDir,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Workers   *worker.Stats     `json:"workers,omitempty"`
}

// Index handles GET / with the plain text banner uptime monitors expect.
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write([]byte("Bot is running!"))
	}
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK

	for name, c := range h.checks {
		if err := runCheck(ctx, c); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	if h.pool != nil {
		ps := h.pool.Stats()
		resp.Workers = &ps
	}

	writeJSON(w, status, resp)
}

func runCheck(ctx context.Context, c Checker) error {
	done := make(chan error, 1)
	go func() { done <- c.Available() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemStats contains bot and system resource statistics.
type SystemStats struct {
	Downloads      int64         `json:"downloads"`
	Uptime         int64         `json:"uptime_seconds"`
	UptimeHuman    string        `json:"uptime_human"`
	Workers        *worker.Stats `json:"workers,omitempty"`
	MemAllocMB     int64         `json:"mem_alloc_mb"`
	MemSysMB       int64         `json:"mem_sys_mb"`
	NumGoroutines  int           `json:"num_goroutines"`
	NumCPU         int           `json:"num_cpu"`
	DiskUsedBytes  int64         `json:"disk_used_bytes"`
	DiskFreeBytes  int64         `json:"disk_free_bytes"`
	DiskTotalBytes int64         `json:"disk_total_bytes"`
	DiskUsedPct    float64       `json:"disk_used_pct"`
	DownloadPath   string        `json:"download_path"`
}

// Stats handles GET /api/v1/stats.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := h.stats.Uptime()
	stats := SystemStats{
		Downloads:     h.stats.Downloads(),
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   service.FormatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		DownloadPath:  h.downloadDir,
	}
	if h.pool != nil {
		ps := h.pool.Stats()
		stats.Workers = &ps
	}
	stats.DiskTotalBytes, stats.DiskFreeBytes, stats.DiskUsedBytes, stats.DiskUsedPct = getDiskStats(h.downloadDir)

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
