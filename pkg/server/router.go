package server

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxstats/fluxstats/pkg/serializer"
)

const indexPattern = "GET /v1/{$}"

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// system endpoints, not rate limited
	mux.Handle("GET /health", instrument("/health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /ready", instrument("/ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", instrument("/metrics", promhttp.Handler()))
	mux.Handle(indexPattern, instrument("/v1/", http.HandlerFunc(s.handleIndex)))

	for pattern, h := range s.streams {
		mux.Handle(pattern, instrument(pattern, h))
	}
	for pattern, h := range s.handlers {
		mux.Handle(pattern, instrument(pattern, s.withRateLimit(h)))
	}

	return withRequestID(withRecover(mux))
}

// Routes returns the registered route patterns, sorted.
func (s *Server) Routes() []string {
	routes := []string{"GET /health", "GET /ready", "GET /metrics", indexPattern}
	for p := range s.handlers {
		routes = append(routes, p)
	}
	for p := range s.streams {
		routes = append(routes, p)
	}
	sort.Strings(routes)
	return routes
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	slog.Debug("handling index route",
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
	)

	resp := struct {
		Name      string   `json:"name" yaml:"name"`
		Version   string   `json:"version" yaml:"version"`
		Ready     bool     `json:"ready" yaml:"ready"`
		Timestamp string   `json:"timestamp" yaml:"timestamp"`
		Routes    []string `json:"routes" yaml:"routes"`
	}{
		Name:      s.name,
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Routes:    s.Routes(),
	}

	s.mu.RLock()
	resp.Ready = s.ready
	s.mu.RUnlock()

	serializer.Respond(w, r, http.StatusOK, resp)
}
