package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/fluxstats/fluxstats/pkg/archive"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:                  "export",
		EnableShellCompletion: true,
		Usage:                 "Push the snapshot files to an OCI registry",
		Description: `Packs every snapshot file of the data directory as one layer of an OCI
artifact and pushes it to the registry.

  fluxstats export --registry localhost:5000 --repository fluxstats/snapshots --plain-http`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "registry",
				Usage: "OCI registry host (e.g., ghcr.io, localhost:5000)",
			},
			&cli.StringFlag{
				Name:  "repository",
				Usage: "OCI repository path (e.g., org/fluxstats)",
			},
			&cli.StringFlag{
				Name:  "tag",
				Usage: "OCI image tag (default: latest)",
			},
			&cli.BoolFlag{
				Name:  "insecure-tls",
				Usage: "Skip TLS certificate verification for OCI registry",
			},
			&cli.BoolFlag{
				Name:  "plain-http",
				Usage: "Use HTTP instead of HTTPS for OCI registry (for local development)",
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "registry user name",
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "registry password",
				Sources: cli.EnvVars("FLUXSTATS_REGISTRY_PASSWORD"),
			},
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			cfg, err := configFrom(ctx, cmd)
			if err != nil {
				return err
			}

			opts := cfg.Archive
			if cmd.IsSet("registry") {
				opts.Registry = cmd.String("registry")
			}
			if cmd.IsSet("repository") {
				opts.Repository = cmd.String("repository")
			}
			if cmd.IsSet("tag") {
				opts.Tag = cmd.String("tag")
			}
			if cmd.IsSet("insecure-tls") {
				opts.InsecureTLS = cmd.Bool("insecure-tls")
			}
			if cmd.IsSet("plain-http") {
				opts.PlainHTTP = cmd.Bool("plain-http")
			}
			if cmd.IsSet("username") {
				opts.Username = cmd.String("username")
			}
			if cmd.IsSet("password") {
				opts.Password = cmd.String("password")
			}

			ref, err := opts.Reference()
			if err != nil {
				return err
			}
			slog.Info("pushing snapshots to OCI registry", "reference", ref.String())

			res, err := archive.NewExporter(snapshot.NewStore(cfg.DataDir)).Export(ctx, opts)
			if err != nil {
				return err
			}
			return writeOutput(ctx, cmd, res)
		},
	}
}
