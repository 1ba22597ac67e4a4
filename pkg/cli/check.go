package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/fluxstats/fluxstats/pkg/api"
	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
	"github.com/fluxstats/fluxstats/pkg/snapshotter"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:                  "check",
		EnableShellCompletion: true,
		Usage:                 "Run one staleness check",
		Description: `Inspects the newest snapshot of each track and collects a new one when it is
older than the staleness threshold. With --dry-run the decisions are printed
and nothing is collected. An empty data directory triggers no collection.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "stale-after",
				Usage: "age after which a snapshot is recollected (default: 12h)",
			},
			outputFlag,
			formatFlag,
			dryRunFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			cfg, err := configFrom(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("stale-after") {
				cfg.StaleAfter = cmd.Duration("stale-after")
			}

			store := snapshot.NewStore(cfg.DataDir)
			snap := &snapshotter.FluxSnapshotter{
				Factory: api.NewFactory(cfg),
				Store:   store,
			}
			s := scheduler.New(store, snap,
				scheduler.WithThreshold(cfg.StaleAfter),
				scheduler.WithDryRun(cmd.Bool("dry-run")),
			)

			return writeOutput(ctx, cmd, s.Check(ctx))
		},
	}
}
