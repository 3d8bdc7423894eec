// Package server implements the status HTTP server exposing health probes
// and run history.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/gridrun/internal/errors"
	"github.com/3leaps/gridrun/internal/observability"
	"github.com/3leaps/gridrun/internal/server/handlers"
	"github.com/3leaps/gridrun/internal/server/middleware"
	"github.com/3leaps/gridrun/pkg/runstore"
)

// Server is the status HTTP server.
type Server struct {
	host   string
	port   int
	router chi.Router
	http   *http.Server
}

// Option customizes a Server during New.
type Option func(*Server)

// WithRunStore mounts the run history endpoints backed by the given store.
func WithRunStore(store *runstore.Store) Option {
	return func(s *Server) {
		h := handlers.NewRunsHandler(store)
		s.router.Get("/v1/runs", h.List)
		s.router.Get("/v1/runs/{runID}", h.Get)
	}
}

// New builds a server listening on host:port. Port 0 lets the OS choose.
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.NewHTTPErrorResponse("NOT_FOUND", "resource not found").
			WithRequestID(middleware.GetRequestID(req.Context())).
			Write(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.NewHTTPErrorResponse("METHOD_NOT_ALLOWED", "method not allowed").
			WithRequestID(middleware.GetRequestID(req.Context())).
			Write(w, http.StatusMethodNotAllowed)
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler)

	s := &Server{host: host, port: port, router: r}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port, not the bound one.
func (s *Server) Port() int {
	return s.port
}

// Timeouts configures the underlying http.Server limits. Must be called
// before Start.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// shutdownTimeout. It blocks.
func (s *Server) Start(ctx context.Context, timeouts Timeouts, shutdownTimeout time.Duration) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  timeouts.Read,
		WriteTimeout: timeouts.Write,
		IdleTimeout:  timeouts.Idle,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("status server listening", zap.String("addr", addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
