package snapshotter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxstats/fluxstats/pkg/collector"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// FluxSnapshotter runs one collector and writes its snapshot into the
// store. A failed collection writes nothing.
type FluxSnapshotter struct {
	// Factory is the collector factory to use. If nil, the default factory is used.
	Factory collector.Factory

	// Store receives the snapshot files. Required unless DryRun is set.
	Store *snapshot.Store

	// DryRun collects without writing a file.
	DryRun bool
}

// Measure collects one snapshot of kind and persists it.
func (n *FluxSnapshotter) Measure(ctx context.Context, kind snapshot.Kind) (*Result, error) {
	if n.Factory == nil {
		n.Factory = collector.NewDefaultFactory()
	}
	if n.Store == nil && !n.DryRun {
		return nil, fmt.Errorf("snapshotter has no store")
	}

	col, err := collector.ForKind(n.Factory, kind)
	if err != nil {
		return nil, err
	}

	slog.Debug("starting snapshot", slog.String("kind", kind.String()))

	start := time.Now()
	defer func() {
		snapshotCollectionDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	}()

	rec, err := col.Collect(ctx)
	if err != nil {
		snapshotCollectionTotal.WithLabelValues(kind.String(), "error").Inc()
		slog.Error("failed to collect snapshot",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to collect %s snapshot: %w", kind, err)
	}
	if rec.Kind() != kind {
		snapshotCollectionTotal.WithLabelValues(kind.String(), "error").Inc()
		return nil, fmt.Errorf("collector for %s returned a %s snapshot", kind, rec.Kind())
	}

	res := &Result{Kind: kind, Record: rec}

	if !n.DryRun {
		path, err := n.Store.Write(rec)
		if err != nil {
			snapshotCollectionTotal.WithLabelValues(kind.String(), "error").Inc()
			slog.Error("failed to write snapshot", slog.String("error", err.Error()))
			return nil, fmt.Errorf("failed to write %s snapshot: %w", kind, err)
		}
		res.Path = path
		slog.Info("snapshot written", slog.String("kind", kind.String()), slog.String("path", path))
	}

	res.Duration = time.Since(start)
	snapshotCollectionTotal.WithLabelValues(kind.String(), "success").Inc()
	snapshotLastSuccess.WithLabelValues(kind.String()).Set(float64(rec.Taken().Unix()))

	return res, nil
}
