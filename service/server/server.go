package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/nftmint/service/config"
	"github.com/brojonat/nftmint/service/metrics"
	"github.com/brojonat/nftmint/service/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Controller is the wallet-session surface the HTTP API drives.
// *wallet.Controller satisfies it.
type Controller interface {
	Session() wallet.Session
	Operation() wallet.MintOperation
	Counter() uint64
	Snapshot() wallet.Snapshot
	RestoreSession(ctx context.Context) (wallet.Session, error)
	Connect(ctx context.Context) (wallet.Session, error)
	CheckNetwork(ctx context.Context) (bool, error)
	StartMint(ctx context.Context) (wallet.MintOperation, <-chan wallet.MintOperation, error)
}

// Server represents the HTTP server for the minting service.
type Server struct {
	addr         string
	cfg          *config.Config
	controller   Controller
	ssePublisher *SSEPublisher
	renderer     *TemplateRenderer
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The ssePublisher is optional - if nil, SSE endpoints won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, cfg *config.Config, controller Controller, ssePublisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		cfg:          cfg,
		controller:   controller,
		ssePublisher: ssePublisher,
		metrics:      m,
		logger:       logger,
	}
}

// WithTemplates adds template rendering support to the server using embedded files
func (s *Server) WithTemplates() error {
	renderer, err := NewTemplateRenderer(s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize templates: %w", err)
	}
	s.renderer = renderer
	s.logger.Info("HTML templates loaded from embedded files")
	return nil
}

// Handler builds the routed handler. Start serves it; tests call it directly.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	timeout := s.cfg.RPCTimeout

	// Session routes
	s.route(mux, "GET /api/v1/session", handleGetSession(s.controller))
	s.route(mux, "POST /api/v1/session/restore", handleRestoreSession(s.controller, timeout, s.logger))
	s.route(mux, "POST /api/v1/session/connect", handleConnect(s.controller, timeout, s.logger))
	s.route(mux, "POST /api/v1/session/network", handleCheckNetwork(s.controller, s.cfg.RequiredChainID, timeout, s.logger))

	// Mint routes
	s.route(mux, "POST /api/v1/mint", handleStartMint(s.controller, s.logger))
	s.route(mux, "GET /api/v1/mint", handleGetOperation(s.controller))
	s.route(mux, "GET /api/v1/counter", handleGetCounter(s.controller))

	// SSE streaming endpoints (if SSE publisher is configured)
	if s.ssePublisher != nil {
		s.route(mux, "GET /api/v1/stream/mints", handleStreamMints(s.ssePublisher, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoints enabled")
	} else {
		s.logger.Warn("SSE publisher not configured, streaming endpoints disabled")
	}

	// HTML page (if template renderer is configured)
	if s.renderer != nil {
		mux.HandleFunc("GET /{$}", handleIndexPage(s.renderer, s.controller, s.cfg))
		s.logger.Info("HTML page endpoints enabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.RPCTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close SSE publisher first (disconnects all clients)
	if s.ssePublisher != nil {
		s.ssePublisher.Close()
	}

	// Then shutdown HTTP server
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// route registers h on pattern, recording HTTP metrics under the pattern's path.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	if s.metrics != nil {
		h = metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h)
	}
	mux.Handle(pattern, h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Pass through to next handler
		next.ServeHTTP(w, r)
	})
}
