package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type agentQueryRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
}

func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req agentQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		errorResponse(w, http.StatusBadRequest, "Query is required")
		return
	}

	// Each anonymous conversation gets its own thread
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	data, err := s.upstream.QueryAgent(r.Context(), req.Query, threadID)
	if err != nil {
		upstreamErrorResponse(w, s.log, err, "Failed to query agent")
		return
	}

	successResponse(w, http.StatusOK, "Agent response retrieved successfully", map[string]interface{}{
		"thread_id": threadID,
		"response":  data,
	})
}
