package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/rangerd/internal/config"
	"github.com/me/rangerd/internal/directory"
	"github.com/me/rangerd/internal/importance"
	"github.com/me/rangerd/internal/scheduler"
	"github.com/me/rangerd/internal/store"
)

// Server is the rangerd REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	sched     *scheduler.Scheduler
	store     store.Store
	dir       *directory.StaticDirectory   // optional; admin directory endpoints
	cls       *importance.StaticClassifier // optional; admin importance endpoints
	metrics   http.Handler                 // optional; /metrics
	heartbeat time.Duration
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithDirectory exposes the peer-handle directory through the admin API.
func WithDirectory(dir *directory.StaticDirectory) Option {
	return func(s *Server) {
		s.dir = dir
	}
}

// WithClassifier exposes principal importance through the admin API.
func WithClassifier(cls *importance.StaticClassifier) Option {
	return func(s *Server) {
		s.cls = cls
	}
}

// WithMetricsHandler mounts the given handler at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHeartbeat overrides the SSE heartbeat interval. Tests shorten it.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.Config, sched *scheduler.Scheduler, st store.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		sched:     sched,
		store:     st,
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// API routes (JSON)
	r.Route("/api/v1", func(r chi.Router) {
		// Health
		r.Get("/health", s.handleHealth)

		// Service state
		r.Get("/availability", s.handleAvailability)
		r.Get("/capabilities", s.handleCapabilities)

		// Ranging
		r.Route("/rangings", func(r chi.Router) {
			r.Post("/", s.handleSubmitRanging)
			r.Delete("/", s.handleCancelRangings)
		})

		// Session history
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Get("/{id}", s.handleGetSession)
		})

		// Operator surface
		r.Route("/admin", func(r chi.Router) {
			r.Put("/controller", s.handleSetController)
			r.Put("/gating/{name}", s.handleSetGating)
			r.Put("/importance/{uid}", s.handleSetImportance)
			r.Put("/directory/{uid}/{handle}", s.handleSetDirectoryEntry)
			r.Delete("/directory/{uid}/{handle}", s.handleDeleteDirectoryEntry)
		})
	})
}
