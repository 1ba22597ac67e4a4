package collector

import (
	"context"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// Collector defines the interface for collecting one snapshot from the
// Flux network APIs. Implementations must honor context cancellation and
// return an error instead of a partial record.
type Collector interface {
	Collect(ctx context.Context) (snapshot.Record, error)
}

// Func adapts an ordinary function to the Collector interface.
type Func func(ctx context.Context) (snapshot.Record, error)

// Collect calls f.
func (f Func) Collect(ctx context.Context) (snapshot.Record, error) {
	return f(ctx)
}
