// Package scheduler keeps the snapshot directory fresh. Each check inspects
// the newest snapshot of every track and triggers one collection for a track
// whose newest snapshot is older than the staleness threshold.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/utils/clock"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
	"github.com/fluxstats/fluxstats/pkg/snapshotter"
)

const (
	// DefaultThreshold is the age after which a snapshot is stale.
	DefaultThreshold = 12 * time.Hour

	// DefaultSchedule is the cron spec of the periodic check.
	DefaultSchedule = "@every 1h"
)

// State classifies the newest snapshot of one track.
type State string

const (
	StateAbsent State = "absent"
	StateFresh  State = "fresh"
	StateStale  State = "stale"
	StateError  State = "error"
)

// Decision is the outcome of one check for one track.
type Decision struct {
	Kind      snapshot.Kind `json:"kind" yaml:"kind"`
	State     State         `json:"state" yaml:"state"`
	Latest    string        `json:"latest,omitempty" yaml:"latest,omitempty"`
	Snapshot  string        `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	Age       time.Duration `json:"age,omitempty" yaml:"age,omitempty"`
	Collected bool          `json:"collected" yaml:"collected"`
	Written   string        `json:"written,omitempty" yaml:"written,omitempty"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	CheckedAt time.Time     `json:"checkedAt" yaml:"checkedAt"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to age snapshots.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithThreshold sets the staleness threshold.
func WithThreshold(d time.Duration) Option {
	return func(s *Scheduler) {
		s.threshold = d
	}
}

// WithSchedule sets the cron spec used by Run.
func WithSchedule(spec string) Option {
	return func(s *Scheduler) {
		s.schedule = spec
	}
}

// WithDryRun reports decisions without collecting.
func WithDryRun(dryRun bool) Option {
	return func(s *Scheduler) {
		s.dryRun = dryRun
	}
}

// WithKinds restricts the tracks that are checked.
func WithKinds(kinds ...snapshot.Kind) Option {
	return func(s *Scheduler) {
		s.kinds = kinds
	}
}

// WithAfterCheck registers fn to run after every check, e.g. to reload the
// presentation dataset.
func WithAfterCheck(fn func(ctx context.Context, decisions []Decision)) Option {
	return func(s *Scheduler) {
		s.afterCheck = append(s.afterCheck, fn)
	}
}

// Scheduler runs staleness checks.
type Scheduler struct {
	store       *snapshot.Store
	snapshotter snapshotter.Snapshotter

	clock      clock.PassiveClock
	threshold  time.Duration
	schedule   string
	dryRun     bool
	kinds      []snapshot.Kind
	afterCheck []func(context.Context, []Decision)

	// serializes checks
	checkMu sync.Mutex

	lastMu sync.RWMutex
	last   []Decision
}

// New creates a Scheduler.
func New(store *snapshot.Store, snap snapshotter.Snapshotter, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:       store,
		snapshotter: snap,
		clock:       clock.RealClock{},
		threshold:   DefaultThreshold,
		schedule:    DefaultSchedule,
		kinds:       snapshot.Kinds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the staleness threshold.
func (s *Scheduler) Threshold() time.Duration {
	return s.threshold
}

// Last returns the decisions of the most recent check.
func (s *Scheduler) Last() []Decision {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return append([]Decision(nil), s.last...)
}

// Check inspects every track once and collects stale ones. Concurrent calls
// are serialized.
func (s *Scheduler) Check(ctx context.Context) []Decision {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	start := time.Now()
	decisions := make([]Decision, 0, len(s.kinds))
	for _, kind := range s.kinds {
		if ctx.Err() != nil {
			break
		}
		d := s.checkTrack(ctx, kind)
		checksTotal.WithLabelValues(kind.String(), string(d.State)).Inc()
		decisions = append(decisions, d)
	}
	checkDuration.Observe(time.Since(start).Seconds())

	s.lastMu.Lock()
	s.last = decisions
	s.lastMu.Unlock()

	for _, fn := range s.afterCheck {
		fn(ctx, decisions)
	}
	return decisions
}

func (s *Scheduler) checkTrack(ctx context.Context, kind snapshot.Kind) Decision {
	now := s.clock.Now()
	d := Decision{Kind: kind, CheckedAt: now}

	latest, err := s.store.Latest(kind)
	switch {
	case errors.Is(err, snapshot.ErrNoSnapshot):
		d.State = StateAbsent
		slog.Info("no snapshot found", slog.String("kind", kind.String()), slog.String("dir", s.store.Dir()))
		return d
	case err != nil:
		d.State = StateError
		d.Error = err.Error()
		slog.Error("failed to inspect snapshots", slog.String("kind", kind.String()), slog.String("error", err.Error()))
		return d
	}

	d.Latest = latest.Path
	d.Snapshot = latest.Snapshot.String()
	d.Age = now.Sub(latest.Snapshot.Time)

	if d.Age <= s.threshold {
		d.State = StateFresh
		slog.Debug("snapshot is fresh",
			slog.String("kind", kind.String()),
			slog.String("file", latest.Name),
			slog.Duration("age", d.Age))
		return d
	}

	d.State = StateStale
	slog.Info("snapshot is stale",
		slog.String("kind", kind.String()),
		slog.String("file", latest.Name),
		slog.Duration("age", d.Age),
		slog.Duration("threshold", s.threshold))

	if s.dryRun {
		return d
	}

	d.Collected = true
	res, err := s.snapshotter.Measure(ctx, kind)
	if err != nil {
		collectionsTotal.WithLabelValues(kind.String(), "error").Inc()
		d.Error = err.Error()
		slog.Error("collection failed", slog.String("kind", kind.String()), slog.String("error", err.Error()))
		return d
	}
	collectionsTotal.WithLabelValues(kind.String(), "success").Inc()
	d.Written = res.Path
	return d
}

// Run checks once, then on the configured schedule until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.Check(ctx) }); err != nil {
		return fmt.Errorf("invalid check schedule %q: %w", s.schedule, err)
	}

	slog.Info("starting scheduler",
		slog.String("schedule", s.schedule),
		slog.Duration("threshold", s.threshold),
		slog.Bool("dryRun", s.dryRun))

	s.Check(ctx)

	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	slog.Info("scheduler stopped")
	return nil
}
