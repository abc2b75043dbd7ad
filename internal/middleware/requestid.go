package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type requestIDKey struct{}

const maxRequestIDLen = 128

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RequestID returns an HTTP middleware that assigns a unique request ID to
// each request. An incoming X-Request-ID header is reused only if it is a
// plausible id (alphanumeric, hyphen, underscore, ≤128 chars) — anything
// else is replaced with a fresh UUID, since this header value is echoed
// back and typically lands in structured logs (log-forging otherwise). The
// ID is set on the response header and stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > maxRequestIDLen || !validRequestID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
