// Package server exposes the review service over HTTP: project upload
// and lifecycle, report retrieval, an SSE progress stream, and the
// operational probe endpoints. All /api routes require an API key and
// are rate limited per key.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archlens/archlens/internal/blob"
	"github.com/archlens/archlens/internal/bus"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/jobs"
	"github.com/archlens/archlens/internal/progress"
	"github.com/archlens/archlens/internal/store"
)

// Readiness reports aggregate component health for the probe endpoints.
// A nil Readiness means always ready.
type Readiness interface {
	Ready() bool
	Components() map[string]string
}

// Deps are the server's collaborators.
type Deps struct {
	Store    *store.Store
	Blob     *blob.Client
	Producer *bus.Producer
	Runner   *jobs.Runner
	Progress *progress.Broker
	Ready    Readiness
}

// Server is the HTTP surface of the review service.
// It is safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	cfg    config.ServerConfig
	deps   Deps
	router *chi.Mux
	server *http.Server
	logger *slog.Logger

	version string

	limiterMu sync.Mutex
	limiters  map[string]*keyLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion reports the service version from the health endpoints.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(cfg config.ServerConfig, deps Deps, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		router:   chi.NewRouter(),
		logger:   slog.Default(),
		limiters: make(map[string]*keyLimiter),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.rateLimit)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleUpload)
			r.Get("/", s.handleListProjects)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Delete("/", s.handleDeleteProject)
				r.Post("/analyze", s.handleAnalyze)
				r.Get("/report", s.handleGetReport)
				r.Get("/preflight", s.handlePreflight)
				r.Post("/reset", s.handleReset)
				r.Get("/progress", s.handleProgress)
			})
		})
	})
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthResponse is the /healthz and /readyz body.
type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealthz is the liveness probe: the process is up.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "alive", Version: s.version})
}

// handleReadyz is the readiness probe: components are connected.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready", Version: s.version})
		return
	}

	resp := healthResponse{
		Status:     "ready",
		Version:    s.version,
		Components: s.deps.Ready.Components(),
	}
	status := http.StatusOK
	if !s.deps.Ready.Ready() {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Start runs the HTTP server and blocks until Shutdown or a listen
// error.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}
	return nil
}
