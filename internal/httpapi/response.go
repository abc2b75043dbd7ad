package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"marketscreener/internal/middleware"
	"marketscreener/internal/params"
)

// queryEnvelope is the "query" field of the 200 response body: an echo of
// the request's own identity, not a database record.
type queryEnvelope struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// sqlEnvelope is the "sql" field of the 200 response body. Parameters is
// params.OrderedValues rather than a plain map so its JSON object keys
// come out in insertion order (spec §6) instead of encoding/json's
// alphabetical map-key order, which would put "param_10" before "param_2".
type sqlEnvelope struct {
	Query      string               `json:"query"`
	Parameters params.OrderedValues `json:"parameters"`
}

// compileResponse is the full 200 response body (spec §6).
type compileResponse struct {
	Success bool          `json:"success"`
	Query   queryEnvelope `json:"query"`
	Graph   string        `json:"graph"`
	SQL     sqlEnvelope   `json:"sql"`
}

// errorResponse is the body for every non-2xx response.
type errorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details []validationDetail  `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, code, message string, details []validationDetail) {
	log.Warn("request failed",
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("code", code),
		slog.Int("status", status),
	)
	writeJSON(w, status, errorResponse{Code: code, Message: message, Details: details})
}
