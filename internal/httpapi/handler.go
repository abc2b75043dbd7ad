package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"marketscreener/internal/compiler"
	"marketscreener/internal/domain"
)

// maxBodyBytes bounds the request body a single /compile call will read,
// matching the teacher's own defensiveness around unbounded client input.
const maxBodyBytes = 1 << 20 // 1 MiB

// Handler serves the compiler's HTTP surface: POST /compile and
// GET /health. It holds no request-scoped state.
type Handler struct {
	compiler *compiler.Compiler
	log      *slog.Logger
}

// NewHandler returns a Handler that compiles queries with c and logs
// through log.
func NewHandler(c *compiler.Compiler, log *slog.Logger) *Handler {
	return &Handler{compiler: c, log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, r, h.log, http.StatusBadRequest, "bad_request", "could not read request body", nil)
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, r, h.log, http.StatusBadRequest, "bad_request", "request body too large", nil)
		return
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, r, h.log, http.StatusBadRequest, "bad_request", "malformed JSON body", nil)
		return
	}

	if details := validateUserQuery(raw); len(details) > 0 {
		writeError(w, r, h.log, http.StatusUnprocessableEntity, "validation_failed", "request does not match the UserQuery schema", details)
		return
	}

	uq, err := decodeUserQuery(body)
	if err != nil {
		writeError(w, r, h.log, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return
	}

	if err := uq.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeError(w, r, h.log, http.StatusUnprocessableEntity, "validation_failed", verr.Error(), nil)
			return
		}
		writeError(w, r, h.log, http.StatusInternalServerError, "internal_error", "unexpected validation error", nil)
		return
	}

	result, err := h.compiler.Compile(uq, compiler.Options{Risky: false})
	if err != nil {
		writeError(w, r, h.log, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, compileResponse{
		Success: true,
		Query:   queryEnvelope{ID: uq.ID, Name: uq.Name},
		Graph:   result.Diagram,
		SQL:     sqlEnvelope{Query: result.SQL, Parameters: result.Ordered},
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, h.log, http.StatusNotFound, "not_found", "no such route", nil)
}
