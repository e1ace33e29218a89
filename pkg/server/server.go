package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/engine"
	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/recorder"
	"mercator-hq/arbiter/pkg/registry"
	"mercator-hq/arbiter/pkg/simulation"
	"mercator-hq/arbiter/pkg/source"
	"mercator-hq/arbiter/pkg/telemetry/health"
	"mercator-hq/arbiter/pkg/telemetry/metrics"
	"mercator-hq/arbiter/pkg/telemetry/tracing"
)

// ErrAlreadyRunning is returned by Start and Serve on a running server.
var ErrAlreadyRunning = errors.New("server is already running")

// Options holds the collaborators of a Server. Only Engine is required;
// nil collaborators disable the features that depend on them.
type Options struct {
	Engine     *engine.DecisionEngine
	Simulation *simulation.Config

	// Catalog and Registry resolve workflowId in execute requests. The
	// registry's published version wins over the catalog.
	Catalog  *source.Catalog
	Registry *registry.Registry

	// Recorder receives every decision as an audit record.
	Recorder *recorder.Recorder

	// Evidence enables GET /v1/evidence.
	Evidence evidence.Storage

	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// Health and HealthConfig mount the probe endpoints.
	Health       *health.Checker
	HealthConfig *config.HealthConfig
	Version      health.VersionInfo

	// MetricsPath is where Prometheus scrapes. Empty means no endpoint.
	MetricsPath string

	Logger *slog.Logger
}

// Server is the Arbiter HTTP API.
type Server struct {
	config     *config.ServerConfig
	engine     *engine.DecisionEngine
	harness    *simulation.Harness
	catalog    *source.Catalog
	registry   *registry.Registry
	recorder   *recorder.Recorder
	evidence   evidence.Storage
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	health     *health.Checker
	healthCfg  *config.HealthConfig
	version    health.VersionInfo
	metricPath string
	logger     *slog.Logger

	handler      http.Handler
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. The handler is built once; Handler returns it
// for use with httptest.
func New(cfg *config.ServerConfig, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is nil")
	}
	if opts.Engine == nil {
		return nil, errors.New("decision engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	harness, err := simulation.NewHarness(opts.Engine, opts.Simulation, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation harness: %w", err)
	}

	tracer := opts.Tracer
	if tracer == nil {
		if tracer, err = tracing.New(&config.TracingConfig{}, opts.Version.Version); err != nil {
			return nil, err
		}
	}

	s := &Server{
		config:     cfg,
		engine:     opts.Engine,
		harness:    harness,
		catalog:    opts.Catalog,
		registry:   opts.Registry,
		recorder:   opts.Recorder,
		evidence:   opts.Evidence,
		metrics:    opts.Metrics,
		tracer:     tracer,
		health:     opts.Health,
		healthCfg:  opts.HealthConfig,
		version:    opts.Version,
		metricPath: opts.MetricsPath,
		logger:     logger.With("component", "server"),
	}
	s.handler = s.setupRoutes()
	return s, nil
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the server
// fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return ErrAlreadyRunning
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err, ok := <-errChan:
		s.setRunning(false)
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.setRunning(false)
		s.logger.Info("server stopped")
	})
	return shutdownErr
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.isRunning = running
	s.mu.Unlock()
}

// setupRoutes registers the API and wraps the mux in the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "POST /v1/workflows/validate", s.handleValidate)
	s.route(mux, "POST /v1/workflows/execute", s.handleExecute)
	s.route(mux, "POST /v1/rules/evaluate", s.handleEvaluate)
	s.route(mux, "POST /v1/simulate", s.handleSimulate)
	s.route(mux, "GET /v1/workflows", s.handleListWorkflows)
	s.route(mux, "GET /v1/workflows/{id}", s.handleGetWorkflow)
	if s.evidence != nil {
		s.route(mux, "GET /v1/evidence", s.handleQueryEvidence)
	}

	if s.health != nil && s.healthCfg != nil {
		s.health.Mount(mux, s.healthCfg, s.version)
	}
	if s.metricPath != "" && s.metrics.Enabled() {
		mux.Handle("GET "+s.metricPath, s.metrics.Handler())
	}

	return Chain(mux,
		RequestIDMiddleware,
		s.tracer.HTTPMiddleware,
		LoggingMiddleware(s.logger),
		RecoveryMiddleware(s.logger),
		BodyLimitMiddleware(s.config.MaxBodyBytes),
	)
}

// route registers an API handler and records request metrics under its
// pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	_, path, _ := strings.Cut(pattern, " ")
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := s.metrics.BeginRequest(path, r.Method)
		rw := newResponseWriter(w)
		defer func() { done(rw.statusCode) }()
		h(rw, r)
	}))
}
