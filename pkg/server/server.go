// Package server hosts the HTTP surface: registered handlers behind request
// id, recovery, rate limiting and instrumentation, plus health, readiness
// and Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/time/rate"
)

// Option configures a Server.
type Option func(*Server)

// WithName sets the name reported by the index route.
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the version reported by the index route.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg *Config) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithHandler registers rate limited handlers by ServeMux pattern.
func WithHandler(handlers map[string]http.HandlerFunc) Option {
	return func(s *Server) {
		for p, h := range handlers {
			s.handlers[p] = h
		}
	}
}

// WithStreamHandler registers long-lived handlers (e.g. websockets) that
// bypass the rate limiter.
func WithStreamHandler(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.streams[pattern] = h
	}
}

// WithReadinessCheck adds a check consulted by /ready.
func WithReadinessCheck(fn func() error) Option {
	return func(s *Server) {
		s.readiness = fn
	}
}

// Server is the HTTP server.
type Server struct {
	cfg     *Config
	name    string
	version string

	handlers  map[string]http.HandlerFunc
	streams   map[string]http.Handler
	readiness func() error
	limiter   *rate.Limiter

	mu    sync.RWMutex
	ready bool
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{
		cfg:      DefaultConfig(),
		name:     "fluxstats",
		version:  "dev",
		handlers: make(map[string]http.HandlerFunc),
		streams:  make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.RateLimit > 0 {
		burst := s.cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
	}
	return s
}

// Handler returns the fully wired handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// SetReady marks the server ready or not ready.
func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "address", ln.Addr().String(), "name", s.name, "version", s.version)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.SetReady(true)
	notify(daemon.SdNotifyReady)

	select {
	case err := <-errCh:
		s.SetReady(false)
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.SetReady(false)
	notify(daemon.SdNotifyStopping)
	slog.Info("shutting down server", "timeout", s.cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// notify tells systemd about state changes when running as a notify unit.
func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		slog.Warn("failed to notify systemd", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("notified systemd", "state", state)
	}
}
