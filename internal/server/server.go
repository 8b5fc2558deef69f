// Package server assembles the HTTP surface of the execution service: the
// chi router, middleware chain and listener lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/tracelab/opexec/internal/errors"
	"github.com/tracelab/opexec/internal/observability"
	"github.com/tracelab/opexec/internal/server/handlers"
	"github.com/tracelab/opexec/internal/server/middleware"
)

// Server wraps an http.Server with the service routes mounted.
type Server struct {
	host     string
	port     int
	router   chi.Router
	httpSrv  *http.Server
	handlers *handlers.Handlers
}

// New builds a server listening on host:port serving the given handlers.
func New(host string, port int, h *handlers.Handlers) *Server {
	s := &Server{
		host:     host,
		port:     port,
		handlers: h,
	}
	s.router = s.buildRouter()
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	observability.Logger.Info("http server listening",
		zap.String("host", s.host),
		zap.Int("port", s.port),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	r.NotFound(apperrors.NotFoundHandler())
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler())

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/operations/execute", s.handlers.ExecuteSync)
		r.Post("/operations/execute-async", s.handlers.ExecuteAsync)
		r.Get("/executions", s.handlers.ListExecutions)
		r.Get("/executions/{id}", s.handlers.GetExecution)
	})

	return r
}
