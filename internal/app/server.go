package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/markdave123-py/docbundle/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/docbundle/internal/api/middlewares"
	"github.com/markdave123-py/docbundle/internal/config"
	"github.com/markdave123-py/docbundle/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, sessions *services.SessionManager, pool handlers.Warmer, registry *prometheus.Registry, log *zap.Logger) *Server {
	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: NewRouter(cfg, sessions, pool, registry, log),
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter builds the route tree; split out so tests can drive it with httptest.
func NewRouter(cfg *config.Config, sessions *services.SessionManager, pool handlers.Warmer, registry *prometheus.Registry, log *zap.Logger) http.Handler {
	secret := []byte(cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(sessions, secret, cfg.SessionTTL)
	docHandler := handlers.NewDocumentHandler(sessions, cfg.MaxUploadMB, log)
	poolHandler := handlers.NewPoolHandler(pool)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", poolHandler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/sessions", sessionHandler.CreateSession)
		api.Post("/warm", poolHandler.Warm)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(secret))
			protected.Delete("/sessions", sessionHandler.DeleteSession)

			protected.Post("/documents", docHandler.UploadDocuments)
			protected.Get("/documents", docHandler.GetDocuments)
			protected.Delete("/documents", docHandler.ClearDocuments)
			protected.Get("/documents/tree", docHandler.GetTree)
			protected.Post("/documents/toggle", docHandler.ToggleDocument)
			protected.Post("/documents/select-all", docHandler.SelectAll)

			protected.Post("/context", docHandler.RenderContext)
			protected.Post("/context/export", docHandler.ExportContext)
		})
	})

	return r
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
