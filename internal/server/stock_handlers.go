package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JastejS28/AlphaSharp/internal/cache"
)

func (s *Server) handleSearchTicker(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		errorResponse(w, http.StatusBadRequest, "Search query is required")
		return
	}

	data, err := s.upstream.SearchTicker(r.Context(), query)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to search tickers")
		return
	}

	successResponse(w, http.StatusOK, "Search results retrieved successfully", data)
}

func (s *Server) handleStockAnalysis(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if cached := s.cache.GetStockCache(ticker, cache.EndpointAnalysis); cached.Hit {
		s.recordSearch(ticker, cached.Data)
		successResponse(w, http.StatusOK, "Stock analysis retrieved from cache",
			annotateCached(cached.Data, true, cached.ExpiresAt))
		return
	}

	data, err := s.upstream.GetStockAnalysis(r.Context(), ticker)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch stock analysis")
		return
	}

	if _, err := s.cache.SetStockCache(ticker, cache.EndpointAnalysis, data); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache analysis")
	}
	s.recordSearch(ticker, data)

	successResponse(w, http.StatusOK, "Stock analysis retrieved successfully",
		annotateCached(data, false, timeZero))
}

func (s *Server) handleStockNews(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if cached := s.cache.GetStockCache(ticker, cache.EndpointNews); cached.Hit {
		successResponse(w, http.StatusOK, "Stock news retrieved from cache",
			annotateCached(cached.Data, true, cached.ExpiresAt))
		return
	}

	maxNews := 5
	if raw := r.URL.Query().Get("max_news"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxNews = n
		}
	}

	data, err := s.upstream.GetStockNews(r.Context(), ticker, maxNews)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch stock news")
		return
	}

	if _, err := s.cache.SetStockCache(ticker, cache.EndpointNews, data); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache news")
	}

	successResponse(w, http.StatusOK, "Stock news retrieved successfully",
		annotateCached(data, false, timeZero))
}

func (s *Server) handleHistoricalPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if cached := s.cache.GetStockCache(ticker, cache.EndpointHistory); cached.Hit {
		successResponse(w, http.StatusOK, "Historical prices retrieved from cache",
			annotateCached(cached.Data, true, cached.ExpiresAt))
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "3mo"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}

	data, err := s.upstream.GetHistoricalPrices(r.Context(), ticker, period, interval)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to fetch historical prices")
		return
	}

	if _, err := s.cache.SetStockCache(ticker, cache.EndpointHistory, data); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache history")
	}

	successResponse(w, http.StatusOK, "Historical prices retrieved successfully",
		annotateCached(data, false, timeZero))
}

func (s *Server) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.history.Recent(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch search history")
		errorResponse(w, http.StatusInternalServerError, "Failed to fetch search history")
		return
	}

	successResponse(w, http.StatusOK, "Search history retrieved successfully",
		map[string]interface{}{"history": entries})
}

// recordSearch notes a ticker lookup, pulling the company name out of the
// analysis payload when present. Failures only get logged.
func (s *Server) recordSearch(ticker string, data []byte) {
	companyName := extractCompanyName(data)
	if err := s.history.Record(ticker, companyName); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to record search")
	}
}
