package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/registry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the admin HTTP server.
//
// The server exposes the following endpoints:
//   - GET /metrics: Prometheus metrics in text format
//   - GET /sessions: JSON list of registered sessions
//   - GET /stats: JSON snapshot of the in-memory statistics
//   - GET /healthz: liveness probe
type Server struct {
	server       *http.Server
	router       chi.Router
	port         int
	shutdownOnce sync.Once
}

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	// Port to listen on for HTTP requests.
	// Default: 9090
	Port int

	// Sessions lists the registered sessions. Nil serves an empty list.
	Sessions func() []registry.Info

	// Stats returns the server statistics. Nil disables /stats.
	Stats func() StatsSnapshot
}

func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 9090
	}
}

// NewServer creates the admin server in a stopped state. Call Start to
// begin serving requests.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		logger.Debug("Metrics endpoint registered at /metrics")
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
		logger.Debug("Metrics collection disabled")
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/sessions", func(w http.ResponseWriter, r *http.Request) {
		infos := []registry.Info{}
		if config.Sessions != nil {
			if list := config.Sessions(); list != nil {
				infos = list
			}
		}
		writeJSON(w, infos)
	})

	if config.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, config.Stats())
		})
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		router: r,
		port:   config.Port,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Admin server: failed to encode response: %v", err)
	}
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails. Cancellation
// triggers a graceful shutdown bounded to 5 seconds.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Admin server listening on port %d", s.port)
		logger.Debug("Metrics endpoint available at http://localhost:%d/metrics", s.port)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Admin server shutdown signal received")
		// ctx is already cancelled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("admin server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Admin server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("admin server shutdown error: %w", err)
			logger.Error("Admin server shutdown error: %v", err)
		} else {
			logger.Info("Admin server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
