package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type watchlistAddRequest struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	Notes       string `json:"notes"`
}

type watchlistNotesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleWatchlistList(w http.ResponseWriter, r *http.Request) {
	items, err := s.watchlist.List()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list watchlist")
		errorResponse(w, http.StatusInternalServerError, "Failed to fetch watchlist")
		return
	}

	successResponse(w, http.StatusOK, "Watchlist retrieved successfully",
		map[string]interface{}{"watchlist": items})
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req watchlistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Ticker) == "" {
		errorResponse(w, http.StatusBadRequest, "Ticker is required")
		return
	}

	item, err := s.watchlist.Add(req.Ticker, req.CompanyName, req.Notes)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to add to watchlist")
		errorResponse(w, http.StatusInternalServerError, "Failed to add to watchlist")
		return
	}

	successResponse(w, http.StatusCreated, "Added to watchlist", map[string]interface{}{"item": item})
}

func (s *Server) handleWatchlistUpdateNotes(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var req watchlistNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.watchlist.UpdateNotes(ticker, req.Notes)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to update watchlist notes")
		errorResponse(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}
	if !updated {
		errorResponse(w, http.StatusNotFound, "Ticker not in watchlist")
		return
	}

	item, err := s.watchlist.Get(ticker)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to reload watchlist item")
		errorResponse(w, http.StatusInternalServerError, "Failed to update watchlist")
		return
	}

	successResponse(w, http.StatusOK, "Watchlist updated successfully", map[string]interface{}{"item": item})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	removed, err := s.watchlist.Remove(ticker)
	if err != nil {
		s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to remove from watchlist")
		errorResponse(w, http.StatusInternalServerError, "Failed to remove from watchlist")
		return
	}
	if !removed {
		errorResponse(w, http.StatusNotFound, "Ticker not in watchlist")
		return
	}

	successResponse(w, http.StatusOK, "Removed from watchlist", map[string]interface{}{"removed": true})
}
