package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshdurbin/linkregistry/internal/config"
	"github.com/joshdurbin/linkregistry/internal/logging"
	"github.com/joshdurbin/linkregistry/internal/metrics"
	"github.com/joshdurbin/linkregistry/internal/registry"
)

// ServerOptions carries the collaborators of the HTTP front-end
type ServerOptions struct {
	Logger   *slog.Logger
	Logs     *logging.Buffer
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Verbose  bool
}

// Server represents the HTTP server
type Server struct {
	handler *Handler
	server  *http.Server
	port    string
	logger  *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(reg registry.LinkRegistry, cfg config.ServerConfig, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	handler := NewHandler(reg, opts.Logs, cfg.ServerURL, logger)

	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("POST /api/links", handler.CreateLink)
	mux.HandleFunc("GET /api/links", handler.ListLinks)
	mux.HandleFunc("DELETE /api/links", handler.ClearLinks)
	mux.HandleFunc("POST /api/links/purge", handler.PurgeExpired)
	mux.HandleFunc("POST /api/links/refresh", handler.RefreshExpired)
	mux.HandleFunc("GET /api/links/{code}", handler.GetLink)
	mux.HandleFunc("DELETE /api/links/{code}", handler.DeleteLink)
	mux.HandleFunc("GET /api/stats", handler.Stats)
	mux.HandleFunc("GET /api/logs", handler.Logs)
	mux.HandleFunc("DELETE /api/logs", handler.ClearLogs)
	mux.HandleFunc("GET /healthz", handler.Health)

	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	// Redirect endpoint
	mux.HandleFunc("GET /{code}", handler.Redirect)

	// Instrument must sit directly on the mux to see the matched pattern
	finalHandler := Chain(
		Recovery(logger),
		RequestID,
		Logging(logger, opts.Verbose),
		Instrument(opts.Metrics),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      finalHandler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		handler: handler,
		server:  server,
		port:    cfg.Port,
		logger:  logger,
	}
}

// Start starts the HTTP server. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server starting", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on l, for tests and socket activation
func (s *Server) Serve(l net.Listener) error {
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// Port returns the server port
func (s *Server) Port() string {
	return s.port
}

// HTTPHandler returns the fully wrapped handler (useful for testing)
func (s *Server) HTTPHandler() http.Handler {
	return s.server.Handler
}

// Handler returns the server handler (useful for testing)
func (s *Server) Handler() *Handler {
	return s.handler
}
