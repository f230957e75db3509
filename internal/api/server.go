package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"crimewatch/internal/api/health"
	"crimewatch/internal/metrics"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port           int
	ServiceName    string
	Version        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, h *Handlers, healthHandler *health.Handler, log *logger.Logger) *Server {
	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      NewHandler(cfg, h, healthHandler, log),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// NewHandler builds the routed, middleware-wrapped handler
func NewHandler(cfg ServerConfig, h *Handlers, healthHandler *health.Handler, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (Kubernetes)
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/options", h.analyticsRoute("options", h.options))
	mux.HandleFunc("POST /api/prediction", h.predict)
	mux.HandleFunc("POST /api/reporting/submit", h.submitReport)
	mux.HandleFunc("GET /api/reporting/reports/{id}", h.getReport)
	mux.HandleFunc("POST /api/alerts/subscribe", h.subscribe)

	mux.HandleFunc("GET /api/visualization/summary", h.analyticsRoute("summary", h.summary))
	mux.HandleFunc("GET /api/visualization/heatmap", h.analyticsRoute("heatmap", h.heatmap))
	mux.HandleFunc("GET /api/visualization/radar", h.analyticsRoute("radar", h.radar))
	mux.HandleFunc("GET /api/visualization/treemap", h.analyticsRoute("treemap", h.treemap))
	mux.HandleFunc("GET /api/visualization/trends", h.analyticsRoute("trends", h.trends))
	mux.HandleFunc("GET /api/visualization/top-cities", h.topCities)
	mux.HandleFunc("POST /api/analyze", h.analyticsRoute("analyze", h.analyze))
	mux.HandleFunc("GET /api/map_data/crime_incidents", h.analyticsRoute("map_data", h.mapIncidents))

	// Root endpoint (service info)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	rps := rate.Limit(cfg.RateLimitRPS)
	if cfg.RateLimitRPS <= 0 {
		rps = rate.Inf
	}
	limiter := rate.NewLimiter(rps, max(cfg.RateLimitBurst, 1))

	return chain(mux,
		requestID(),
		recovery(log),
		logging(log),
		cors(),
		rateLimit(limiter, log),
	)
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
