// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-repokey.
//
// go-repokey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jeremyhahn/go-repokey/pkg/health"
	"github.com/jeremyhahn/go-repokey/pkg/logging"
	"github.com/jeremyhahn/go-repokey/pkg/metrics"
	"github.com/jeremyhahn/go-repokey/pkg/ratelimit"
	"github.com/jeremyhahn/go-repokey/pkg/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxBodyBytes bounds the size of a single uploaded file.
const DefaultMaxBodyBytes = 128 << 20

// Server serves a storage.Backend over HTTP.
type Server struct {
	server   *http.Server
	backend  storage.Backend
	readOnly bool
	maxBody  int64
	health   *health.Checker
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
	metrics  bool
}

// Config holds the REST server configuration.
type Config struct {
	// Addr is the listen address (default ":8000")
	Addr string

	// Backend holds the repository files
	Backend storage.Backend

	// ReadOnly rejects POST and DELETE with 403
	ReadOnly bool

	// MaxBodyBytes bounds uploads (default DefaultMaxBodyBytes)
	MaxBodyBytes int64

	// RateLimit enables per-client request limiting when set and enabled
	RateLimit *ratelimit.Config

	// Metrics exposes /metrics and records request metrics
	Metrics bool

	// Logger defaults to a discard logger
	Logger *logging.Logger

	// TLSConfig enables HTTPS when set
	TLSConfig *tls.Config

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer creates a new REST server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}

	backend := cfg.Backend
	if cfg.ReadOnly {
		backend = storage.ReadOnly(backend)
	}

	checker := health.NewChecker()
	checker.RegisterCheck("storage", health.StorageCheck("storage", backend))

	s := &Server{
		backend:  backend,
		readOnly: cfg.ReadOnly,
		maxBody:  cfg.MaxBodyBytes,
		health:   checker,
		logger:   log,
		metrics:  cfg.Metrics,
	}
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		s.limiter = ratelimit.New(cfg.RateLimit)
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}
	return s, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(middleware.RequestID)
	r.Use(s.LoggingMiddleware())
	if s.metrics {
		r.Use(metrics.HTTPMiddleware)
	}
	if s.limiter != nil {
		r.Use(ratelimit.Middleware(s.limiter))
	}

	r.Get("/health", s.HealthHandler)
	r.Head("/health", s.HealthHandler)
	r.Get("/health/live", s.LivenessHandler)
	r.Get("/health/ready", s.ReadinessHandler)
	r.Get("/health/startup", s.StartupHandler)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/{type}", func(r chi.Router) {
		r.Use(s.fileTypeMiddleware)
		r.Get("/", s.ListHandler)
		r.Head("/{name}", s.ExistsHandler)
		r.Get("/{name}", s.GetHandler)
		r.Post("/{name}", s.SaveHandler)
		r.Delete("/{name}", s.DeleteHandler)
	})

	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.health.MarkStarted()

	if s.server.TLSConfig != nil {
		s.logger.Info("starting HTTPS server", "addr", ln.Addr().String(), "read_only", s.readOnly)
		ln = tls.NewListener(ln, s.server.TLSConfig)
	} else {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String(), "read_only", s.readOnly)
	}

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
