// internal/server/server.go
// Package server exposes the host events over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/avivl/editwarning/internal/host"
	"github.com/avivl/editwarning/internal/notice"
	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

var tracer = otel.Tracer("github.com/avivl/editwarning/internal/server")

// Events is the host event surface served over HTTP. *host.Events implements it.
type Events interface {
	EditAttempt(ctx context.Context, page host.PageIdentity, user host.UserIdentity) (host.Outcome, error)
	Save(ctx context.Context, page host.PageIdentity, user host.UserIdentity) error
	Cancel(ctx context.Context, page host.PageIdentity, user host.UserIdentity) (notice.Notice, error)
	Logout(ctx context.Context, user host.UserIdentity) error
	Locks(ctx context.Context, page host.PageIdentity) (store.LockSet, error)
}

// Server serves the edit-lock API.
type Server struct {
	address  string
	events   Events
	logger   *observability.SLogger
	metrics  observability.MetricsClient
	validate *validator.Validate

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a server listening on address once started.
func NewServer(address string, events Events, logger *observability.SLogger, metrics observability.MetricsClient) (*Server, error) {
	if events == nil {
		return nil, errors.New("events are nil")
	}
	if logger == nil {
		return nil, errors.New("logger is nil")
	}
	if metrics == nil {
		return nil, errors.New("metrics client is nil")
	}
	return &Server{
		address:  address,
		events:   events,
		logger:   logger,
		metrics:  metrics,
		validate: validator.New(),
	}, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/documents/{documentID}", func(r chi.Router) {
			r.Post("/edit", s.edit)
			r.Post("/save", s.save)
			r.Post("/cancel", s.cancel)
			r.Get("/locks", s.locks)
		})
		r.Post("/users/{userID}/logout", s.logout)
	})
	return r
}

// Start listens on the configured address and serves until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.ErrorCtx(ctx, err)
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.InfoCtx(ctx, "server listening at "+listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("stopping server")
	return srv.Shutdown(ctx)
}
