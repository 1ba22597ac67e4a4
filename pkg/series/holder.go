package series

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// Holder owns the current Dataset. Reload builds a new dataset off to the
// side and swaps it in atomically; Current never blocks.
type Holder struct {
	store *snapshot.Store

	current atomic.Pointer[Dataset]

	// serializes reloads so versions increase monotonically
	reloadMu sync.Mutex
	version  uint64

	subsMu sync.Mutex
	subs   map[chan uint64]struct{}
}

// NewHolder creates a Holder with an empty dataset.
func NewHolder(store *snapshot.Store) *Holder {
	h := &Holder{
		store: store,
		subs:  make(map[chan uint64]struct{}),
	}
	h.current.Store(Build(nil, nil))
	return h
}

// Current returns the dataset in use. The returned value must not be modified.
func (h *Holder) Current() *Dataset {
	return h.current.Load()
}

// Reload rebuilds the dataset from the store and notifies subscribers. On
// failure the current dataset is kept.
func (h *Holder) Reload(ctx context.Context) (*Dataset, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	d, err := Load(h.store)
	if err != nil {
		reloadTotal.WithLabelValues("error").Inc()
		slog.Error("failed to reload dataset", slog.String("error", err.Error()))
		return nil, err
	}

	h.version++
	d.Version = h.version
	d.LoadedAt = start
	h.current.Store(d)

	reloadTotal.WithLabelValues("success").Inc()
	datasetRows.WithLabelValues("containers").Set(float64(len(d.Containers)))
	datasetRows.WithLabelValues("totals").Set(float64(len(d.Totals)))
	datasetRows.WithLabelValues("utilization").Set(float64(len(d.Utilization)))

	slog.Debug("dataset reloaded",
		slog.Uint64("version", d.Version),
		slog.Int("snapshots", len(d.Totals)),
		slog.Duration("duration", time.Since(start)))

	h.notify(d.Version)
	return d, nil
}

// Subscribe returns a channel receiving the version of every new dataset.
// Slow subscribers only see the latest version. Call cancel to unsubscribe.
func (h *Holder) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	h.subsMu.Lock()
	h.subs[ch] = struct{}{}
	h.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.subsMu.Lock()
			delete(h.subs, ch)
			h.subsMu.Unlock()
		})
	}
}

func (h *Holder) notify(version uint64) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	for ch := range h.subs {
		// drop a pending older version
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- version:
		default:
		}
	}
}
