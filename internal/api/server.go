package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/stackcards/revision-engine/internal/config"
	"github.com/stackcards/revision-engine/internal/revision"
	"github.com/stackcards/revision-engine/internal/storage"
)

// Server is the HTTP API server for the learning-progress engine.
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	service        revision.Service
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server.
func NewServer(cfg config.ServerConfig, service revision.Service, repo storage.Repository) *Server {
	s := &Server{
		config:         cfg,
		service:        service,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (authenticated)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		r.With(s.authMiddleware.RequirePermission("decks:read")).Get("/presets", s.handleListPresets)

		r.Route("/decks/{id}", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("decks:read")).Get("/policy", s.handleGetDeckPolicy)
			r.With(s.authMiddleware.RequirePermission("decks:write")).Patch("/policy", s.handleUpdateDeckPolicy)
			r.With(s.authMiddleware.RequirePermission("decks:write")).Post("/policy/preset", s.handleApplyPreset)
			r.With(s.authMiddleware.RequirePermission("decks:read")).Get("/statistics", s.handleGetStatistics)
		})

		r.Route("/cards/{id}", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("cards:review")).Post("/review", s.handleSubmitReview)
			r.With(s.authMiddleware.RequirePermission("cards:write")).Put("/learned", s.handleSetLearned)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
