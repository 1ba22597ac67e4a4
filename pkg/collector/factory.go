package collector

import (
	"fmt"

	"k8s.io/utils/clock"

	"github.com/fluxstats/fluxstats/pkg/collector/census"
	"github.com/fluxstats/fluxstats/pkg/collector/utilization"
	"github.com/fluxstats/fluxstats/pkg/flux"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// Factory creates collectors with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateUtilizationCollector() Collector
	CreateCensusCollector() Collector
}

// DefaultFactory creates collectors with production dependencies.
type DefaultFactory struct {
	Client    *flux.Client
	Endpoints flux.Endpoints
	Denylist  []string
	Clock     clock.PassiveClock
}

// NewDefaultFactory creates a factory with default settings.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{
		Client:    flux.NewClient(),
		Endpoints: flux.DefaultEndpoints(),
		Denylist:  append([]string(nil), census.DefaultDenylist...),
		Clock:     clock.RealClock{},
	}
}

// CreateUtilizationCollector creates the network utilization collector.
func (f *DefaultFactory) CreateUtilizationCollector() Collector {
	return &utilization.Collector{
		Client:    f.Client,
		Endpoints: f.Endpoints,
		Clock:     f.Clock,
	}
}

// CreateCensusCollector creates the running container census.
func (f *DefaultFactory) CreateCensusCollector() Collector {
	return &census.Collector{
		Client:   f.Client,
		URL:      f.Endpoints.RunningApps,
		Denylist: census.NewDenylist(f.Denylist),
		Clock:    f.Clock,
	}
}

// ForKind returns the collector producing snapshots of kind.
func ForKind(f Factory, kind snapshot.Kind) (Collector, error) {
	switch kind {
	case snapshot.KindUtilization:
		return f.CreateUtilizationCollector(), nil
	case snapshot.KindContainers:
		return f.CreateCensusCollector(), nil
	default:
		return nil, fmt.Errorf("no collector for snapshot kind %q", kind)
	}
}
