package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fluxstats/fluxstats/pkg/api"
	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/server"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "serve",
		EnableShellCompletion: true,
		Usage:                 "Run the staleness scheduler and the dashboard",
		Description: `Runs until interrupted. Every check inspects the newest utilization and
container count snapshot and collects a new one when it is older than the
staleness threshold. The dashboard is served on the configured address:

  /                      filter form and charts
  /charts/<name>         containers, totals or utilization chart
  /v1/series/<name>      chart data as JSON (?format=yaml for YAML)
  /v1/status             dataset summary and last check decisions
  /ws                    dataset reload notifications
  /health, /ready        probes
  /metrics               Prometheus metrics`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Usage: "listen address (default: 0.0.0.0)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("listen port (default: %d)", server.DefaultPort),
			},
			&cli.DurationFlag{
				Name:  "stale-after",
				Usage: fmt.Sprintf("age after which a snapshot is recollected (default: %s)", scheduler.DefaultThreshold),
			},
			&cli.StringFlag{
				Name:  "schedule",
				Usage: fmt.Sprintf("cron spec of staleness checks (default: %q)", scheduler.DefaultSchedule),
			},
			&cli.DurationFlag{
				Name:  "http-timeout",
				Usage: "upstream request timeout (default: 60s)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := configFrom(ctx, cmd)
			if err != nil {
				return err
			}

			if cmd.IsSet("address") {
				cfg.Server.Address = cmd.String("address")
			}
			if cmd.IsSet("port") {
				cfg.Server.Port = int(cmd.Int("port"))
			}
			if cmd.IsSet("stale-after") {
				cfg.StaleAfter = cmd.Duration("stale-after")
			}
			if cmd.IsSet("schedule") {
				cfg.Schedule = cmd.String("schedule")
			}
			if cmd.IsSet("http-timeout") {
				cfg.HTTPTimeout = cmd.Duration("http-timeout")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return api.Serve(ctx, cfg)
		},
	}
}
