package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/coursemate/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/coursemate/internal/api/middlewares"
	"github.com/markdave123-py/coursemate/internal/config"
	"github.com/markdave123-py/coursemate/internal/core/ingestion_engine"
	"github.com/markdave123-py/coursemate/internal/logger"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, ing ingestion_engine.Ingestor, chat handlers.Asker, store handlers.Counter, caps map[string]bool, log *slog.Logger) *Server {
	log = logger.OrDiscard(log)
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, ing, chat, store, caps, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.With("component", "http"),
	}
}

// NewRouter mounts the chatbot API under /chatbot-api.
func NewRouter(cfg *config.Config, ing ingestion_engine.Ingestor, chat handlers.Asker, store handlers.Counter, caps map[string]bool, log *slog.Logger) http.Handler {
	ingestHandler := handlers.NewIngestHandler(ing, log)
	chatHandler := handlers.NewChatHandler(chat, log)
	healthHandler := handlers.NewHealthHandler(caps, store, ing, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.ChatTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/chatbot-api", func(api chi.Router) {
		api.Post("/chat", chatHandler.Chat)
		api.Get("/healthz", healthHandler.Health)
		api.Get("/jobs/{jobID}", ingestHandler.JobStatus)

		api.Group(func(ingest chi.Router) {
			if cfg.JWTSecret != "" {
				ingest.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			}
			ingest.Post("/ingest", ingestHandler.Ingest)
		})
	})
	return r
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
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
