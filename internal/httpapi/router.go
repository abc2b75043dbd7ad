package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"marketscreener/internal/compiler"
	"marketscreener/internal/middleware"
)

// NewRouter wires the compiler's HTTP surface behind chi, matching the
// teacher's cmd/server router construction (chi's Recoverer, then the
// request-id and CORS middleware, then routes).
func NewRouter(c *compiler.Compiler, log *slog.Logger) http.Handler {
	h := NewHandler(c, log)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Post("/compile", h.Compile)
	r.NotFound(h.NotFound)

	return r
}
