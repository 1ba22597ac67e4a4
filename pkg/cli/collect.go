package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fluxstats/fluxstats/pkg/api"
	"github.com/fluxstats/fluxstats/pkg/collector/census"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
	"github.com/fluxstats/fluxstats/pkg/snapshotter"
)

func collectCmd() *cli.Command {
	return &cli.Command{
		Name:                  "collect",
		EnableShellCompletion: true,
		Usage:                 "Collect one snapshot now",
		ArgsUsage:             "<utilization|containers>",
		Description: `Fetches the upstream endpoints once and writes the snapshot into the data
directory. A failed fetch or an incomplete payload writes nothing.

  utilization   benchmark, resources, node count and node list endpoints
  containers    running apps endpoint, tallied per image

With --format table the container census is listed by count, highest first.`,
		Flags: []cli.Flag{
			outputFlag,
			formatFlag,
			dryRunFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one snapshot kind, supported kinds: %v", snapshot.Kinds())
			}
			kind, err := snapshot.ParseKind(cmd.Args().First())
			if err != nil {
				return err
			}
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}

			cfg, err := configFrom(ctx, cmd)
			if err != nil {
				return err
			}

			snap := &snapshotter.FluxSnapshotter{
				Factory: api.NewFactory(cfg),
				Store:   snapshot.NewStore(cfg.DataDir),
				DryRun:  cmd.Bool("dry-run"),
			}
			res, err := snap.Measure(ctx, kind)
			if err != nil {
				return err
			}

			slog.Debug("snapshot collected",
				slog.String("kind", kind.String()),
				slog.String("path", res.Path),
				slog.Duration("duration", res.Duration))

			return writeOutput(ctx, cmd, newCollectOutput(res, cmd.Bool("dry-run")))
		},
	}
}

// collectOutput is printed by the collect command.
type collectOutput struct {
	Kind     snapshot.Kind       `json:"kind" yaml:"kind"`
	Path     string              `json:"path,omitempty" yaml:"path,omitempty"`
	DryRun   bool                `json:"dryRun" yaml:"dryRun"`
	Duration time.Duration       `json:"duration" yaml:"duration"`
	Snapshot snapshot.Record     `json:"snapshot" yaml:"snapshot"`
	Ranked   []census.ImageCount `json:"ranked,omitempty" yaml:"ranked,omitempty"`
}

func newCollectOutput(res *snapshotter.Result, dryRun bool) *collectOutput {
	out := &collectOutput{
		Kind:     res.Kind,
		Path:     res.Path,
		DryRun:   dryRun,
		Duration: res.Duration,
		Snapshot: res.Record,
	}
	if c, ok := res.Record.(*snapshot.Containers); ok {
		out.Ranked = census.Ranked(c)
	}
	return out
}

func (o *collectOutput) renderTable(w io.Writer) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "Snapshot: %s\n", o.Snapshot.Taken()); err != nil {
		return err
	}

	switch rec := o.Snapshot.(type) {
	case *snapshot.Containers:
		for _, ic := range o.Ranked {
			if _, err := p.Fprintf(w, "%s: %d\n", ic.Image, ic.Count); err != nil {
				return err
			}
		}
		if _, err := p.Fprintf(w, "Total Docker Count: %d\n", rec.Total); err != nil {
			return err
		}
	case *snapshot.Utilization:
		for _, m := range rec.Metrics() {
			if _, err := p.Fprintf(w, "%-30s %.2f\n", m.Name, m.Value); err != nil {
				return err
			}
		}
	}

	if o.Path != "" {
		if _, err := p.Fprintf(w, "Written: %s\n", o.Path); err != nil {
			return err
		}
	}
	return nil
}
