package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request-id"

	// HeaderRequestID carries the request id in both directions.
	HeaderRequestID = "X-Request-Id"
)

// RequestID returns the id assigned to r, or a fresh one.
func RequestID(r *http.Request) string {
	if id, ok := r.Context().Value(contextKeyRequestID).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// withRequestID accepts a client supplied UUID or assigns one, and echoes it
// in the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKeyRequestID, id)))
	})
}

// withRecover turns a handler panic into a 500.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.Error("handler panic",
					"path", r.URL.Path,
					"panic", v,
					"stack", string(debug.Stack()))
				WriteError(w, r, http.StatusInternalServerError, fserrors.ErrCodeInternal,
					"internal server error", true, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects requests beyond the server-wide limiter.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			WriteError(w, r, http.StatusTooManyRequests, fserrors.ErrCodeRateLimitExceeded,
				"rate limit exceeded", true, map[string]any{"limit": float64(s.limiter.Limit())})
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the status code written by a handler. It forwards
// Hijack so websocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument logs and measures every request served under pattern.
func instrument(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			// hijacked or nothing written
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(pattern, r.Method, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())

		slog.Debug("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", RequestID(r),
			"remote_addr", r.RemoteAddr,
		)
	})
}
