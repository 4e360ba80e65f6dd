package server

import (
	"net/http"
	"strconv"
)

func (s *Server) handleMarketCondition(w http.ResponseWriter, r *http.Request) {
	if cached := s.cache.GetMarketRegimeCache(); cached.Hit {
		successResponse(w, http.StatusOK, "Market condition retrieved from cache",
			annotateCached(cached.Entry.Payload, true, cached.ExpiresAt))
		return
	}

	data, err := s.upstream.GetMarketCondition(r.Context())
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch market condition")
		return
	}

	if _, err := s.cache.SetMarketRegimeCache(data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache market condition")
	}

	successResponse(w, http.StatusOK, "Market condition retrieved successfully",
		annotateCached(data, false, timeZero))
}

func (s *Server) handleRegimeForecast(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 60)
	simulations := queryInt(r, "simulations", 2000)
	includePaths := r.URL.Query().Get("include_paths") == "true"

	data, err := s.upstream.GetRegimeForecast(r.Context(), days, simulations, includePaths)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch forecast")
		return
	}

	successResponse(w, http.StatusOK, "Forecast retrieved successfully", data)
}

func (s *Server) handleShortTermPrediction(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 5)

	data, err := s.upstream.GetShortTermPrediction(r.Context(), days)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch short-term prediction")
		return
	}

	successResponse(w, http.StatusOK, "Short-term prediction retrieved successfully", data)
}

func (s *Server) handleAllRegimes(w http.ResponseWriter, r *http.Request) {
	data, err := s.upstream.GetAllRegimes(r.Context())
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch regimes")
		return
	}

	successResponse(w, http.StatusOK, "All regimes retrieved successfully", data)
}

func (s *Server) handleRegimeHistory(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 60)
	if days < 10 || days > 750 {
		errorResponse(w, http.StatusBadRequest, "Days must be between 10 and 750")
		return
	}

	data, err := s.upstream.GetRegimeHistory(r.Context(), days)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch regime history")
		return
	}

	successResponse(w, http.StatusOK, "Regime history retrieved successfully", data)
}

func (s *Server) handleUpstreamStatus(w http.ResponseWriter, r *http.Request) {
	status := s.tracker.Status()

	message := "API may be cold - first request may take up to 50 seconds"
	if status.IsWarm {
		message = "API is warm and ready"
	}

	successResponse(w, http.StatusOK, "API status retrieved successfully", map[string]interface{}{
		"is_warm":                  status.IsWarm,
		"consecutive_failures":     status.ConsecutiveFailures,
		"last_check":               status.LastCheck,
		"time_since_last_check_ms": status.TimeSinceLastCheck.Milliseconds(),
		"last_error":               status.LastError,
		"message":                  message,
	})
}

func (s *Server) handleClearMarketCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.cache.ClearMarketRegimeCache()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to clear market cache")
		errorResponse(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}

	successResponse(w, http.StatusOK, "Market cache cleared successfully", map[string]interface{}{
		"cleared": true,
		"deleted": deleted,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
