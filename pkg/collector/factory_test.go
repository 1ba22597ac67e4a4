package collector_test

import (
	"context"
	"testing"

	"github.com/fluxstats/fluxstats/pkg/collector"
	"github.com/fluxstats/fluxstats/pkg/collector/census"
	"github.com/fluxstats/fluxstats/pkg/collector/utilization"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

func TestDefaultCollectorFactory_CreateUtilizationCollector(t *testing.T) {
	factory := collector.NewDefaultFactory()
	factory.Endpoints.Benchmark = "http://example.invalid/bench"

	col := factory.CreateUtilizationCollector()
	if col == nil {
		t.Fatal("Expected non-nil collector")
	}

	uc, ok := col.(*utilization.Collector)
	if !ok {
		t.Fatalf("Expected *utilization.Collector, got %T", col)
	}
	if uc.Endpoints.Benchmark != "http://example.invalid/bench" {
		t.Errorf("Expected configured benchmark endpoint, got %q", uc.Endpoints.Benchmark)
	}
}

func TestDefaultCollectorFactory_CreateCensusCollector(t *testing.T) {
	factory := collector.NewDefaultFactory()
	factory.Denylist = []string{"test/*"}

	col := factory.CreateCensusCollector()
	cc, ok := col.(*census.Collector)
	if !ok {
		t.Fatalf("Expected *census.Collector, got %T", col)
	}

	if cc.URL != factory.Endpoints.RunningApps {
		t.Errorf("Expected URL %q, got %q", factory.Endpoints.RunningApps, cc.URL)
	}
	if !cc.Denylist.Denied("test/image") {
		t.Error("Expected configured denylist to be applied")
	}
}

func TestForKind(t *testing.T) {
	factory := collector.NewDefaultFactory()

	tests := []struct {
		kind    snapshot.Kind
		wantErr bool
	}{
		{snapshot.KindUtilization, false},
		{snapshot.KindContainers, false},
		{snapshot.Kind("bogus"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			col, err := collector.ForKind(factory, tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForKind(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
			if !tt.wantErr && col == nil {
				t.Fatal("Expected non-nil collector")
			}
		})
	}
}

func TestFunc_Collect(t *testing.T) {
	want := &snapshot.Containers{Total: 3}
	f := collector.Func(func(context.Context) (snapshot.Record, error) {
		return want, nil
	})

	got, err := f.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("Collect() = %v, want %v", got, want)
	}
}
