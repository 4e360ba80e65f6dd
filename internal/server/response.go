package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/JastejS28/AlphaSharp/internal/clients/analytics"
)

// apiResponse is the envelope every JSON endpoint uses.
type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func successResponse(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, apiResponse{Success: true, Message: message, Data: data})
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: message})
}

// upstreamErrorResponse maps client errors onto HTTP statuses: timeouts
// become 504, upstream 4xx pass through with their detail, everything else
// is a 502.
func upstreamErrorResponse(w http.ResponseWriter, log zerolog.Logger, err error, fallback string) {
	if errors.Is(err, analytics.ErrUpstreamTimeout) {
		log.Warn().Err(err).Msg("Upstream timeout")
		errorResponse(w, http.StatusGatewayTimeout, "Analytics service timed out - it may be cold, try again shortly")
		return
	}

	var upErr *analytics.UpstreamError
	if errors.As(err, &upErr) {
		if upErr.StatusCode >= 400 && upErr.StatusCode < 500 {
			errorResponse(w, upErr.StatusCode, upErr.Detail)
			return
		}
		log.Error().Err(err).Msg("Upstream error")
		errorResponse(w, http.StatusBadGateway, upErr.Detail)
		return
	}

	log.Error().Err(err).Msg(fallback)
	errorResponse(w, http.StatusBadGateway, fallback)
}

// timeZero marks a miss; annotateCached only writes _expiresAt on hits.
var timeZero = time.Time{}

// extractCompanyName pulls company_name (or companyName) out of a raw
// payload, returning "" when absent.
func extractCompanyName(data []byte) string {
	var fields struct {
		CompanyName    string `json:"company_name"`
		CompanyNameAlt string `json:"companyName"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	if fields.CompanyName != "" {
		return fields.CompanyName
	}
	return fields.CompanyNameAlt
}

// annotateCached injects the _cached flag (and _expiresAt for hits) into a
// raw upstream payload. Non-object payloads are wrapped instead.
func annotateCached(data json.RawMessage, cached bool, expiresAt time.Time) interface{} {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		wrapped := map[string]interface{}{"result": data, "_cached": cached}
		if cached {
			wrapped["_expiresAt"] = expiresAt
		}
		return wrapped
	}

	fields["_cached"] = cached
	if cached {
		fields["_expiresAt"] = expiresAt
	}
	return fields
}
