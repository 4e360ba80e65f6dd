package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := s.systemStats()

	status := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
	}

	if s.tracker != nil {
		status["upstream"] = s.tracker.Status()
	}

	if s.cacheStats != nil {
		stats, err := s.cacheStats.Stats()
		if err != nil {
			s.log.Warn().Err(err).Msg("Failed to read cache stats")
		} else {
			status["cache"] = stats
		}
	}

	successResponse(w, http.StatusOK, "System status retrieved successfully", status)
}

func (s *Server) handleKeepAliveTrigger(w http.ResponseWriter, r *http.Request) {
	if s.keepAlive == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Keep-alive is not configured")
		return
	}

	if err := s.keepAlive.Trigger(); err != nil {
		upstreamErrorResponse(w, s.log, err, "Keep-alive ping failed")
		return
	}

	successResponse(w, http.StatusOK, "Keep-alive ping successful", map[string]interface{}{
		"pinged": true,
	})
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	backups, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list backups")
		errorResponse(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}

	successResponse(w, http.StatusOK, "Backups retrieved successfully",
		map[string]interface{}{"backups": backups})
}

func (s *Server) handleRunBackup(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Backups are not configured")
		return
	}

	if err := s.backups.CreateAndUploadBackup(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Manual backup failed")
		errorResponse(w, http.StatusInternalServerError, "Backup failed")
		return
	}

	successResponse(w, http.StatusOK, "Backup completed successfully", map[string]interface{}{
		"completed": true,
	})
}

// systemStats samples CPU and RAM usage. The short CPU interval keeps the
// status endpoint fast.
func (s *Server) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
