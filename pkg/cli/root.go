package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/fluxstats/fluxstats/pkg/config"
	"github.com/fluxstats/fluxstats/pkg/logging"
)

const (
	name           = "fluxstats"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/fluxstats/fluxstats/pkg/cli.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

type configKey struct{}

type loggerKey struct{}

// Execute runs the command line until it completes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Collect and chart Flux network statistics",
		Version:               fmt.Sprintf("%s (commit: %s, date: %s)", version, commit, date),
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars(config.EnvPrefix + "CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "environment file loaded before configuration, ignored when missing",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   fmt.Sprintf("snapshot directory (default: %s)", config.DefaultDataDir),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: fmt.Sprintf("append-only debug log, empty disables (default: %s)", config.DefaultLogFile),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "console log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "console log format (text, json)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug console logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return ctx, err
			}

			closer, err := logging.Setup(logging.Options{
				Name:         name,
				Version:      version,
				File:         cfg.Log.File,
				FileLevel:    logging.ParseLevel(cfg.Log.FileLevel),
				Console:      cmd.Root().ErrWriter,
				ConsoleLevel: logging.ParseLevel(cfg.Log.ConsoleLevel),
				ConsoleJSON:  cfg.Log.Format == "json",
			})
			if err != nil {
				return ctx, err
			}

			ctx = context.WithValue(ctx, configKey{}, cfg)
			return context.WithValue(ctx, loggerKey{}, closer), nil
		},
		After: func(ctx context.Context, _ *cli.Command) error {
			if c, ok := ctx.Value(loggerKey{}).(io.Closer); ok {
				return c.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			collectCmd(),
			checkCmd(),
			seriesCmd(),
			exportCmd(),
		},
	}
}

// loadConfig resolves the configuration and applies the global flags.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("data-dir") {
		cfg.DataDir = cmd.String("data-dir")
	}
	if cmd.IsSet("log-file") {
		cfg.Log.File = cmd.String("log-file")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.ConsoleLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.Bool("debug") {
		cfg.Log.ConsoleLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configFrom returns the configuration loaded by the root command.
func configFrom(ctx context.Context, cmd *cli.Command) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg, nil
	}
	return loadConfig(cmd)
}
