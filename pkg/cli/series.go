package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/fluxstats/fluxstats/pkg/series"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

const (
	seriesContainers  = "containers"
	seriesTotals      = "totals"
	seriesUtilization = "utilization"
)

func seriesCmd() *cli.Command {
	return &cli.Command{
		Name:                  "series",
		EnableShellCompletion: true,
		Usage:                 "Print series reconstructed from the data directory",
		ArgsUsage:             "<containers|totals|utilization>",
		Description: `Loads every snapshot file and prints the requested series ordered by
snapshot time.

  containers    one series per image (--image, repeatable, default: all)
  totals        total container count
  utilization   one metric (--metric, default: the first metric)`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "image to include (can be repeated)",
			},
			&cli.StringFlag{
				Name:    "metric",
				Aliases: []string{"m"},
				Usage:   "utilization metric",
			},
			outputFlag,
			formatFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one series name: %s, %s or %s",
					seriesContainers, seriesTotals, seriesUtilization)
			}
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			cfg, err := configFrom(ctx, cmd)
			if err != nil {
				return err
			}

			ds, err := series.Load(snapshot.NewStore(cfg.DataDir))
			if err != nil {
				return fmt.Errorf("failed to load snapshots: %w", err)
			}

			var out []series.Series
			switch name := cmd.Args().First(); name {
			case seriesContainers:
				images := cmd.StringSlice("image")
				if len(images) == 0 {
					images = ds.Images()
				}
				out, err = ds.ContainerSeries(images)
			case seriesTotals:
				out = []series.Series{ds.TotalSeries()}
			case seriesUtilization:
				metric := cmd.String("metric")
				if metric == "" {
					metric = ds.DefaultMetric()
				}
				var s series.Series
				s, err = ds.UtilizationSeries(metric)
				out = []series.Series{s}
			default:
				if hint := series.Suggest(name, []string{seriesContainers, seriesTotals, seriesUtilization}); hint != "" {
					return fmt.Errorf("unknown series %q, did you mean %q?", name, hint)
				}
				return fmt.Errorf("unknown series %q", name)
			}
			if err != nil {
				return err
			}

			return writeOutput(ctx, cmd, out)
		},
	}
}
