// Package utilization aggregates network-wide capacity and locked resources
// of the Flux node network into a snapshot.Utilization.
package utilization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
	"github.com/fluxstats/fluxstats/pkg/flux"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// Fetcher retrieves one upstream document.
type Fetcher interface {
	Get(ctx context.Context, name, url string) (gjson.Result, error)
}

// Endpoint names used in logs, metrics and errors.
const (
	EndpointBenchmark = "benchmark"
	EndpointResources = "resources"
	EndpointNodeCount = "nodecount"
	EndpointNodeList  = "nodelist"
)

// Collector fetches the four upstream documents concurrently and
// aggregates them.
type Collector struct {
	Client    Fetcher
	Endpoints flux.Endpoints
	Clock     clock.PassiveClock
}

// Collect implements collector.Collector. A failed fetch is logged and the
// response treated as absent, which then fails aggregation. The resources
// endpoint reporting an internal error aborts the run immediately.
func (c *Collector) Collect(ctx context.Context) (snapshot.Record, error) {
	if c.Client == nil {
		return nil, fserrors.New(fserrors.ErrCodeInternal, "utilization collector has no client")
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	var (
		resp    Responses
		fetched = make(map[string]error, 4)
		results = [...]struct {
			name string
			url  string
			dst  *gjson.Result
		}{
			{EndpointBenchmark, c.Endpoints.Benchmark, &resp.Benchmark},
			{EndpointResources, c.Endpoints.Resources, &resp.Resources},
			{EndpointNodeCount, c.Endpoints.NodeCount, &resp.NodeCount},
			{EndpointNodeList, c.Endpoints.NodeList, &resp.NodeList},
		}
		errs = make([]error, len(results))
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		r := results[i]
		g.Go(func() error {
			doc, err := c.Client.Get(gctx, r.name, r.url)
			if err != nil {
				slog.Warn("failed to fetch endpoint",
					slog.String("endpoint", r.name),
					slog.String("error", err.Error()))
				errs[i] = err
				return nil
			}
			if r.name == EndpointResources {
				if err := flux.CheckUpstreamError(doc); err != nil {
					return fserrors.WrapWithContext(fserrors.ErrCodeUnavailable,
						"resources endpoint reported an internal error", err,
						map[string]any{"endpoint": r.name})
				}
			}
			*r.dst = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, r := range results {
		if errs[i] != nil {
			fetched[r.name] = errs[i]
		}
	}

	return Aggregate(snapshot.NewTimestamp(clk.Now()), resp, fetched)
}

// Responses holds the parsed upstream documents. A zero gjson.Result marks
// an absent response.
type Responses struct {
	Benchmark gjson.Result
	Resources gjson.Result
	NodeCount gjson.Result
	NodeList  gjson.Result
}

// ErrZeroCapacity is returned when a percentage would divide by zero.
var ErrZeroCapacity = errors.New("zero capacity")

// Aggregate computes a utilization snapshot from the upstream documents.
// fetchErrs optionally maps endpoint names to the error that made the
// response absent; it only enriches the returned error.
func Aggregate(ts snapshot.Timestamp, r Responses, fetchErrs map[string]error) (*snapshot.Utilization, error) {
	for _, d := range []struct {
		name string
		doc  gjson.Result
	}{
		{EndpointBenchmark, r.Benchmark},
		{EndpointResources, r.Resources},
		{EndpointNodeCount, r.NodeCount},
		{EndpointNodeList, r.NodeList},
	} {
		if !d.doc.Exists() {
			return nil, fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
				fmt.Sprintf("%s response absent", d.name), fetchErrs[d.name],
				map[string]any{"endpoint": d.name})
		}
	}

	u := &snapshot.Utilization{Snapshot: ts}

	benchmarks, err := array(EndpointBenchmark, r.Benchmark, "data")
	if err != nil {
		return nil, err
	}
	for i, rec := range benchmarks {
		cores, err := number(EndpointBenchmark, rec, i, "benchmark.bench.cores")
		if err != nil {
			return nil, err
		}
		ram, err := number(EndpointBenchmark, rec, i, "benchmark.bench.ram")
		if err != nil {
			return nil, err
		}
		ssd, err := number(EndpointBenchmark, rec, i, "benchmark.bench.ssd")
		if err != nil {
			return nil, err
		}
		u.TotalBenchmarkCores += cores
		u.TotalBenchmarkRAM += ram
		u.TotalBenchmarkSSD += ssd
	}

	resources, err := array(EndpointResources, r.Resources, "data")
	if err != nil {
		return nil, err
	}
	var ramLockedMB float64
	for i, rec := range resources {
		cpus, err := number(EndpointResources, rec, i, "apps.resources.appsCpusLocked")
		if err != nil {
			return nil, err
		}
		ram, err := number(EndpointResources, rec, i, "apps.resources.appsRamLocked")
		if err != nil {
			return nil, err
		}
		hdd, err := number(EndpointResources, rec, i, "apps.resources.appsHddLocked")
		if err != nil {
			return nil, err
		}
		u.TotalUtilCores += cpus
		ramLockedMB += ram
		u.TotalUtilSSD += hdd
		if ram == 0 {
			u.NotUtilizedNodes++
		}
	}
	// locked RAM is reported in MB, benchmarked RAM in GB
	u.TotalUtilRAM = ramLockedMB / 1000

	for _, f := range []struct {
		path string
		dst  *int
	}{
		{"data.total", &u.TotalNodes},
		{"data.cumulus-enabled", &u.TotalCumulus},
		{"data.nimbus-enabled", &u.TotalNimbus},
		{"data.stratus-enabled", &u.TotalStratus},
	} {
		v := r.NodeCount.Get(f.path)
		if v.Type != gjson.Number {
			return nil, missingField(EndpointNodeCount, f.path)
		}
		*f.dst = int(v.Int())
	}

	nodes, err := array(EndpointNodeList, r.NodeList, "data")
	if err != nil {
		return nil, err
	}
	u.UniqueWalletCount, err = uniqueWallets(nodes)
	if err != nil {
		return nil, err
	}

	if u.UtilizationPercentageCores, err = percent("cores", u.TotalUtilCores, u.TotalBenchmarkCores); err != nil {
		return nil, err
	}
	if u.UtilizationPercentageRAM, err = percent("ram", u.TotalUtilRAM, u.TotalBenchmarkRAM); err != nil {
		return nil, err
	}
	if u.UtilizationPercentageSSD, err = percent("ssd", u.TotalUtilSSD, u.TotalBenchmarkSSD); err != nil {
		return nil, err
	}
	if u.UtilizationNodes, err = percent("nodes", float64(u.TotalNodes-u.NotUtilizedNodes), float64(u.TotalNodes)); err != nil {
		return nil, err
	}

	slog.Debug("aggregated utilization",
		slog.String("snapshot", ts.String()),
		slog.Int("benchmarks", len(benchmarks)),
		slog.Int("resources", len(resources)),
		slog.Int("wallets", u.UniqueWalletCount),
	)

	return u, nil
}

func percent(name string, part, whole float64) (float64, error) {
	if whole == 0 {
		return 0, fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
			fmt.Sprintf("cannot compute %s utilization", name), ErrZeroCapacity,
			map[string]any{"metric": name})
	}
	return part / whole * 100, nil
}
