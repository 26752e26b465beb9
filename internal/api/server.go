// Package api provides the HTTP API of netsweep. It serves live scan
// streams, the scan history and its CSV export, health checks and metrics.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	apihandlers "github.com/anstrom/netsweep/internal/api/handlers"
	"github.com/anstrom/netsweep/internal/api/middleware"
	"github.com/anstrom/netsweep/internal/api/web"
	"github.com/anstrom/netsweep/internal/config"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/scanning"
)

const defaultShutdownTimeout = 30 * time.Second

// Dependencies are the collaborators the server routes requests to.
type Dependencies struct {
	Scanner apihandlers.ScanStreamer
	Store   apihandlers.HistoryStore
	// Limiter is reported by the health endpoint; nil means unbounded.
	Limiter *scanning.Limiter
	// Metrics backs /metrics and the HTTP middleware; nil uses the global
	// instance.
	Metrics *metrics.PrometheusMetrics
	Logger  *logging.Logger
}

// Server represents the API server.
type Server struct {
	httpServer      *http.Server
	router          *mux.Router
	handler         http.Handler
	config          *config.Config
	deps            Dependencies
	logger          *logging.Logger
	shutdownTimeout time.Duration
	cancelBase      context.CancelFunc
}

// New creates a new API server instance.
func New(cfg *config.Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Scanner == nil || deps.Store == nil {
		return nil, fmt.Errorf("scanner and store are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.GetGlobalMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	server := &Server{
		router:          mux.NewRouter(),
		config:          cfg,
		deps:            deps,
		logger:          deps.Logger.WithComponent("api"),
		shutdownTimeout: cfg.API.ShutdownTimeout,
		cancelBase:      cancel,
	}
	if server.shutdownTimeout <= 0 {
		server.shutdownTimeout = defaultShutdownTimeout
	}

	server.setupRoutes()
	server.setupMiddleware()

	server.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port)),
		Handler:      server.handler,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	return server, nil
}

// Start starts the API server and blocks until ctx is done or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		s.cancelBase()
		return err
	}
}

// Stop waits up to the shutdown timeout for in-flight requests, then cancels
// whatever is still running. Scans cut off this way are not saved.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.cancelBase()

	if err != nil && !stderrors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err != nil {
		s.logger.Warn("Shutdown timeout reached, in-flight scans cancelled")
		_ = s.httpServer.Close()
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	scanHandler := apihandlers.NewScanHandler(s.deps.Scanner, s.deps.Store, s.deps.Logger, s.config.API.MaxRequestSize)
	historyHandler := apihandlers.NewHistoryHandler(s.deps.Store, s.deps.Logger)

	var pinger apihandlers.DatabasePinger
	if p, ok := s.deps.Store.(apihandlers.DatabasePinger); ok {
		pinger = p
	}
	healthHandler := apihandlers.NewHealthHandler(pinger, s.deps.Limiter, s.deps.Logger)

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/scan", scanHandler.Scan).Methods(http.MethodPost)
	api.HandleFunc("/scan/ws", scanHandler.ScanWebSocket).Methods(http.MethodGet)

	api.HandleFunc("/history", historyHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/history/{scanId:[0-9]+}", historyHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/history/{scanId:[0-9]+}", historyHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/export/csv/{scanId:[0-9]+}", historyHandler.ExportCSV).Methods(http.MethodGet)

	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/liveness", healthHandler.Liveness).Methods(http.MethodGet)

	s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)

	ui := web.Handler()
	s.router.Handle("/", ui).Methods(http.MethodGet, http.MethodHead)
	s.router.Handle("/{asset:[a-z]+\\.(?:js|css)}", ui).Methods(http.MethodGet, http.MethodHead)
}

// setupMiddleware configures middleware for the API server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.deps.Metrics))
	s.router.Use(middleware.ContentType())

	s.handler = s.router
	// CORS wraps the router so preflight requests never reach route
	// method matching.
	if s.config.API.EnableCORS {
		s.handler = handlers.CORS(
			handlers.AllowedOrigins(s.config.API.CORSOrigins),
			handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.ExposedHeaders([]string{"Content-Disposition", middleware.RequestIDHeader}),
		)(s.router)
	}
}

// Handler returns the root handler, including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}
