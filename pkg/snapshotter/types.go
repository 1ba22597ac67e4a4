package snapshotter

import (
	"context"
	"time"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// Snapshotter is the interface that wraps the Measure method.
// Measure runs the collector for kind and persists its snapshot.
type Snapshotter interface {
	Measure(ctx context.Context, kind snapshot.Kind) (*Result, error)
}

// Result describes one completed collection run.
type Result struct {
	Kind     snapshot.Kind   `json:"kind" yaml:"kind"`
	Record   snapshot.Record `json:"record" yaml:"record"`
	Path     string          `json:"path,omitempty" yaml:"path,omitempty"`
	Duration time.Duration   `json:"duration" yaml:"duration"`
}
