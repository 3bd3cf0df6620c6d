// Package api implements the HTTP front door for the gateway core. It is a
// thin transport shim: header/body parsing in, orchestrator.Chat out. No
// session cookies, no JWT — callers identify themselves with X-User-Id and
// X-User-Tier, the embedding application's own auth layer having already
// verified those values upstream.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nlanalytics/gatewaycore/internal/metrics"
	"github.com/nlanalytics/gatewaycore/internal/orchestrator"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development". The router does not
	// read it: CORS allows every origin in every environment.
	Env string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	orc    *orchestrator.Orchestrator
	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(orc *orchestrator.Orchestrator, cfg Config, logger *slog.Logger) http.Handler {
	s := &Server{orc: orc, cfg: cfg, logger: logger}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware())
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health / metrics ──────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler(metrics.Init()))

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
	})

	return r
}

// corsMiddleware builds go-chi/cors's handler. In production the allowed
// origin list should be tightened to the embedding application's actual
// frontend domain via an env var; left wide open here since this core ships
// without knowledge of its caller's deployment topology.
func (s *Server) corsMiddleware() func(http.Handler) http.Handler {
	allowed := []string{"*"}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-User-Id", "X-User-Tier", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
