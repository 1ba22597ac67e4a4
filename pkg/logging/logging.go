// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnvLogLevel overrides the console level.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel converts a level name (debug, info, warn, error) to a slog.Level.
// Unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Options configures Setup.
type Options struct {
	// Name and Version are attached to every record.
	Name    string
	Version string

	// File is an append-only log file. Empty disables file logging.
	File      string
	FileLevel slog.Level

	// Console receives human-readable records. Defaults to os.Stderr.
	Console      io.Writer
	ConsoleLevel slog.Level

	// ConsoleJSON switches the console to JSON records.
	ConsoleJSON bool
}

// Setup installs the default logger: a text handler on the log file fanned
// out with a console handler. The returned closer closes the log file.
func Setup(opts Options) (io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := opts.ConsoleLevel
	if v := os.Getenv(EnvLogLevel); v != "" {
		consoleLevel = ParseLevel(v)
	}

	var consoleHandler slog.Handler = slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel})
	if opts.ConsoleJSON {
		consoleHandler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: consoleLevel})
	}
	handlers := []slog.Handler{consoleHandler}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %q: %w", opts.File, err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{
			Level:     opts.FileLevel,
			AddSource: opts.FileLevel <= slog.LevelDebug,
		}))
		closer = f
	}

	logger := slog.New(NewFanoutHandler(handlers...))
	if opts.Name != "" {
		logger = logger.With(slog.String("name", opts.Name))
	}
	if opts.Version != "" {
		logger = logger.With(slog.String("version", opts.Version))
	}
	slog.SetDefault(logger)

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FanoutHandler sends each record to every handler that accepts its level.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler creates a FanoutHandler.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

// Enabled implements slog.Handler.
func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler.
func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: out}
}

// WithGroup implements slog.Handler.
func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &FanoutHandler{handlers: out}
}
