package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/recognize"
	"github.com/kozaktomas/face-registry/internal/web/handlers"
	"github.com/kozaktomas/face-registry/internal/web/middleware"
	"go.uber.org/zap"
)

// requestTimeout bounds every route except the event stream.
const requestTimeout = time.Minute

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	store      *database.RecordStore
	recognizer *recognize.Recognizer
	events     *handlers.EventBroadcaster
	logger     *zap.Logger
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, store *database.RecordStore, recognizer *recognize.Recognizer, logger *zap.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:     cfg,
		router:     r,
		store:      store,
		recognizer: recognizer,
		events:     handlers.NewEventBroadcaster(),
		logger:     logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestSize(cfg.Web.MaxBodyBytes))
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:         cfg.Web.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // uploads can be large
		IdleTimeout:  60 * time.Second,
	}
	// Event streams never go idle on their own.
	s.httpServer.RegisterOnShutdown(s.events.Close)

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
