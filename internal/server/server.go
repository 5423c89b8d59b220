// Package server wires the HTTP API together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pastolab/herdtrack/internal/config"
	"github.com/pastolab/herdtrack/internal/database"
	"github.com/pastolab/herdtrack/internal/modules/farms"
	"github.com/pastolab/herdtrack/internal/modules/herd"
	"github.com/pastolab/herdtrack/internal/modules/locations"
	"github.com/pastolab/herdtrack/internal/modules/lots"
	"github.com/pastolab/herdtrack/internal/modules/market"
	"github.com/pastolab/herdtrack/internal/scheduler"
)

// Config carries everything the server needs
type Config struct {
	Config    *config.Config
	DB        *database.DB
	Log       zerolog.Logger
	Scheduler *scheduler.Scheduler

	FarmHandler     *farms.Handler
	HerdHandler     *herd.Handler
	LocationHandler *locations.Handler
	LotHandler      *lots.Handler
	MarketHandler   *market.Handler
}

// Server is the HTTP server
type Server struct {
	router chi.Router
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
	db     *database.DB

	system *SystemHandlers
}

// New creates a new server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		db:     cfg.DB,
		system: NewSystemHandlers(cfg.Log, cfg.DB, cfg.Scheduler, cfg.Config.DataDir),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes. Farm-scoped modules share a single
// /farm/{farmID} group; chi panics on duplicate route patterns.
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		cfg.FarmHandler.RegisterRoutes(r)
		cfg.MarketHandler.RegisterRoutes(r)
		s.system.RegisterRoutes(r)

		r.Route("/farm/{farmID}", func(r chi.Router) {
			cfg.FarmHandler.RegisterFarmRoutes(r)
			cfg.HerdHandler.RegisterRoutes(r)
			cfg.LocationHandler.RegisterRoutes(r)
			cfg.LotHandler.RegisterRoutes(r)
		})
	})
}

// handleHealth is a liveness probe backed by a database ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
