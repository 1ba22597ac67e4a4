// Package api assembles the long-running fluxstats service: the staleness
// scheduler and the dashboard server sharing one snapshot store.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/fluxstats/fluxstats/pkg/collector"
	"github.com/fluxstats/fluxstats/pkg/config"
	"github.com/fluxstats/fluxstats/pkg/dashboard"
	"github.com/fluxstats/fluxstats/pkg/flux"
	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/series"
	"github.com/fluxstats/fluxstats/pkg/server"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
	"github.com/fluxstats/fluxstats/pkg/snapshotter"
)

const (
	name           = "fluxstats"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags to reflect actual version info
	// e.g., -X "github.com/fluxstats/fluxstats/pkg/api.version=1.0.0"
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Service holds the wired components of a running instance.
type Service struct {
	Store     *snapshot.Store
	Holder    *series.Holder
	Scheduler *scheduler.Scheduler
	Dashboard *dashboard.Dashboard
	Server    *server.Server
}

// NewFactory returns the collector factory configured by cfg.
func NewFactory(cfg *config.Config) *collector.DefaultFactory {
	f := collector.NewDefaultFactory()
	f.Client = flux.NewClient(
		flux.WithTimeout(cfg.HTTPTimeout),
		flux.WithUserAgent(fmt.Sprintf("%s/%s", name, version)),
	)
	f.Endpoints = cfg.Endpoints
	f.Denylist = cfg.Denylist
	return f
}

// New wires a Service from cfg without starting it.
func New(cfg *config.Config, opts ...scheduler.Option) *Service {
	store := snapshot.NewStore(cfg.DataDir)
	holder := series.NewHolder(store)

	snap := &snapshotter.FluxSnapshotter{
		Factory: NewFactory(cfg),
		Store:   store,
	}

	schedOpts := []scheduler.Option{
		scheduler.WithThreshold(cfg.StaleAfter),
		scheduler.WithSchedule(cfg.Schedule),
		scheduler.WithAfterCheck(func(ctx context.Context, _ []scheduler.Decision) {
			if _, err := holder.Reload(ctx); err != nil {
				slog.Error("failed to reload dataset", "error", err)
			}
		}),
	}
	sched := scheduler.New(store, snap, append(schedOpts, opts...)...)

	dashOpts := cfg.Dashboard
	dashOpts.CacheMaxAge = cfg.Server.CacheMaxAge
	dash := dashboard.New(holder,
		dashboard.WithOptions(dashOpts),
		dashboard.WithDecisions(sched.Last),
	)

	srvCfg := cfg.Server
	srv := server.New(
		server.WithName(name),
		server.WithVersion(version),
		server.WithConfig(&srvCfg),
		server.WithHandler(dash.Routes()),
		server.WithStreamHandler("GET /ws", http.HandlerFunc(dash.HandleWS)),
		server.WithReadinessCheck(dash.Ready),
	)

	return &Service{
		Store:     store,
		Holder:    holder,
		Scheduler: sched,
		Dashboard: dash,
		Server:    srv,
	}
}

// Run loads the dataset, then runs the scheduler and the server until ctx
// is done or either fails.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.Holder.Reload(ctx); err != nil {
		// serve an empty dataset until the first check reloads
		slog.Warn("initial dataset load failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Scheduler.Run(ctx)
	})
	g.Go(func() error {
		return s.Server.Run(ctx)
	})
	return g.Wait()
}

// Serve runs the service configured by cfg and blocks until ctx is done.
func Serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
		"dataDir", cfg.DataDir,
		"address", cfg.Server.Addr(),
	)

	if err := New(cfg).Run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		return err
	}
	return nil
}
