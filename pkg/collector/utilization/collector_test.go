package utilization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	testingclock "k8s.io/utils/clock/testing"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
	"github.com/fluxstats/fluxstats/pkg/flux"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

const (
	benchmarkBody = `{"status":"success","data":[
		{"benchmark":{"bench":{"cores":4,"ram":8,"ssd":220}}},
		{"benchmark":{"bench":{"cores":8,"ram":32,"ssd":440}}}
	]}`
	resourcesBody = `{"status":"success","data":[
		{"apps":{"resources":{"appsCpusLocked":2,"appsRamLocked":4000,"appsHddLocked":110}}},
		{"apps":{"resources":{"appsCpusLocked":0,"appsRamLocked":0,"appsHddLocked":0}}}
	]}`
	nodeCountBody = `{"status":"success","data":{"total":2,"cumulus-enabled":1,"nimbus-enabled":1,"stratus-enabled":0}}`
	nodeListBody  = `{"status":"success","data":[
		{"payment_address":"t1aaa"},
		{"payment_address":"t1bbb"},
		{"payment_address":"t1aaa"}
	]}`
)

func fixtures() map[string]string {
	return map[string]string{
		"/benchmark": benchmarkBody,
		"/resources": resourcesBody,
		"/count":     nodeCountBody,
		"/list":      nodeListBody,
	}
}

func newUpstream(t *testing.T, bodies map[string]string) (*httptest.Server, flux.Endpoints) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, flux.Endpoints{
		Benchmark: srv.URL + "/benchmark",
		Resources: srv.URL + "/resources",
		NodeCount: srv.URL + "/count",
		NodeList:  srv.URL + "/list",
	}
}

func parsed(bodies map[string]string) Responses {
	return Responses{
		Benchmark: gjson.Parse(bodies["/benchmark"]),
		Resources: gjson.Parse(bodies["/resources"]),
		NodeCount: gjson.Parse(bodies["/count"]),
		NodeList:  gjson.Parse(bodies["/list"]),
	}
}

func TestCollector_Collect(t *testing.T) {
	_, endpoints := newUpstream(t, fixtures())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)

	c := &Collector{
		Client:    flux.NewClient(),
		Endpoints: endpoints,
		Clock:     testingclock.NewFakePassiveClock(now),
	}

	rec, err := c.Collect(context.Background())
	require.NoError(t, err)

	u, ok := rec.(*snapshot.Utilization)
	require.True(t, ok)

	assert.Equal(t, "2024-03-01_12-00-00", u.Snapshot.String())
	assert.Equal(t, 12.0, u.TotalBenchmarkCores)
	assert.Equal(t, 40.0, u.TotalBenchmarkRAM)
	assert.Equal(t, 660.0, u.TotalBenchmarkSSD)
	assert.Equal(t, 2.0, u.TotalUtilCores)
	assert.Equal(t, 4.0, u.TotalUtilRAM)
	assert.Equal(t, 110.0, u.TotalUtilSSD)
	assert.Equal(t, 1, u.NotUtilizedNodes)
	assert.Equal(t, 2, u.TotalNodes)
	assert.Equal(t, 1, u.TotalCumulus)
	assert.Equal(t, 1, u.TotalNimbus)
	assert.Equal(t, 0, u.TotalStratus)
	assert.InDelta(t, 2.0/12.0*100, u.UtilizationPercentageCores, 1e-9)
	assert.InDelta(t, 10.0, u.UtilizationPercentageRAM, 1e-9)
	assert.InDelta(t, 110.0/660.0*100, u.UtilizationPercentageSSD, 1e-9)
	assert.InDelta(t, 50.0, u.UtilizationNodes, 1e-9)
	assert.Equal(t, 2, u.UniqueWalletCount)
}

func TestCollector_UpstreamInternalErrorAborts(t *testing.T) {
	bodies := fixtures()
	bodies["/resources"] = `{"status":"error","data":{"message":"Internal error. Try again later"}}`
	_, endpoints := newUpstream(t, bodies)

	c := &Collector{Client: flux.NewClient(), Endpoints: endpoints}
	_, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, flux.ErrUpstreamInternal)

	var se *fserrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fserrors.ErrCodeUnavailable, se.Code)
}

func TestCollector_FailedFetchIsAbsent(t *testing.T) {
	bodies := fixtures()
	delete(bodies, "/list")
	_, endpoints := newUpstream(t, bodies)

	c := &Collector{Client: flux.NewClient(), Endpoints: endpoints}
	_, err := c.Collect(context.Background())
	require.Error(t, err)

	var se *fserrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fserrors.ErrCodeInvalidPayload, se.Code)
	assert.Equal(t, EndpointNodeList, se.Context["endpoint"])
	assert.Contains(t, err.Error(), "nodelist response absent")
	assert.Contains(t, err.Error(), "status code: 503")
}

func TestCollector_NoClient(t *testing.T) {
	_, err := (&Collector{}).Collect(context.Background())
	require.Error(t, err)
}

func TestAggregate_MissingField(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]string)
		wantPath string
	}{
		{
			name: "benchmark ram missing",
			mutate: func(b map[string]string) {
				b["/benchmark"] = `{"data":[{"benchmark":{"bench":{"cores":4,"ssd":1}}}]}`
			},
			wantPath: "data.0.benchmark.bench.ram",
		},
		{
			name: "benchmark data not an array",
			mutate: func(b map[string]string) {
				b["/benchmark"] = `{"data":{}}`
			},
			wantPath: "data",
		},
		{
			name: "resources item without apps",
			mutate: func(b map[string]string) {
				b["/resources"] = `{"data":[{"apps":{"resources":{"appsCpusLocked":1,"appsRamLocked":1,"appsHddLocked":1}}},{}]}`
			},
			wantPath: "data.1.apps.resources.appsCpusLocked",
		},
		{
			name: "node count tier missing",
			mutate: func(b map[string]string) {
				b["/count"] = `{"data":{"total":2,"cumulus-enabled":1,"nimbus-enabled":1}}`
			},
			wantPath: "data.stratus-enabled",
		},
		{
			name: "wallet address not a string",
			mutate: func(b map[string]string) {
				b["/list"] = `{"data":[{"payment_address":"t1"},{"payment_address":7}]}`
			},
			wantPath: "data.1.payment_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies := fixtures()
			tt.mutate(bodies)

			u, err := Aggregate(snapshot.NewTimestamp(time.Now()), parsed(bodies), nil)
			require.Error(t, err)
			assert.Nil(t, u)

			var se *fserrors.StructuredError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, fserrors.ErrCodeInvalidPayload, se.Code)
			assert.Equal(t, tt.wantPath, se.Context["path"])
		})
	}
}

func TestAggregate_ZeroCapacity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{
			name: "no benchmarks",
			mutate: func(b map[string]string) {
				b["/benchmark"] = `{"data":[]}`
			},
		},
		{
			name: "zero ssd",
			mutate: func(b map[string]string) {
				b["/benchmark"] = `{"data":[{"benchmark":{"bench":{"cores":4,"ram":8,"ssd":0}}}]}`
			},
		},
		{
			name: "zero nodes",
			mutate: func(b map[string]string) {
				b["/count"] = `{"data":{"total":0,"cumulus-enabled":0,"nimbus-enabled":0,"stratus-enabled":0}}`
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies := fixtures()
			tt.mutate(bodies)

			_, err := Aggregate(snapshot.NewTimestamp(time.Now()), parsed(bodies), nil)
			assert.ErrorIs(t, err, ErrZeroCapacity)
		})
	}
}

func TestAggregate_AbsentResponse(t *testing.T) {
	r := parsed(fixtures())
	r.NodeCount = gjson.Result{}
	cause := errors.New("boom")

	_, err := Aggregate(snapshot.NewTimestamp(time.Now()), r, map[string]error{EndpointNodeCount: cause})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestAggregate_BenchmarkCoresSumAndMonotone(t *testing.T) {
	body := func(cores []int) string {
		parts := make([]string, len(cores))
		for i, c := range cores {
			parts[i] = fmt.Sprintf(`{"benchmark":{"bench":{"cores":%d,"ram":1,"ssd":1}}}`, c)
		}
		return `{"data":[` + strings.Join(parts, ",") + `]}`
	}

	cores := []int{2, 4, 8, 16, 0, 6}
	prev := -1.0
	for n := 1; n <= len(cores); n++ {
		bodies := fixtures()
		bodies["/benchmark"] = body(cores[:n])

		u, err := Aggregate(snapshot.NewTimestamp(time.Now()), parsed(bodies), nil)
		require.NoError(t, err)

		want := 0
		for _, c := range cores[:n] {
			want += c
		}
		assert.Equal(t, float64(want), u.TotalBenchmarkCores)
		assert.GreaterOrEqual(t, u.TotalBenchmarkCores, prev)
		prev = u.TotalBenchmarkCores
	}
}
