package series

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

func ts(t *testing.T, s string) snapshot.Timestamp {
	t.Helper()
	v, err := snapshot.ParseTimestamp(s)
	require.NoError(t, err)
	return v
}

func TestBuild_SortsByTimestamp(t *testing.T) {
	t1 := ts(t, "2024-01-01_00-00-00")
	t2 := ts(t, "2024-01-02_00-00-00")
	t3 := ts(t, "2024-01-03_00-00-00")

	// given out of order
	conts := []*snapshot.Containers{
		{Snapshot: t3, Total: 30, ImageCounts: map[string]int{"a": 30}},
		{Snapshot: t1, Total: 10, ImageCounts: map[string]int{"a": 10}},
		{Snapshot: t2, Total: 20, ImageCounts: map[string]int{"a": 20}},
	}
	utils := []*snapshot.Utilization{
		{Snapshot: t2, TotalBenchmarkCores: 2},
		{Snapshot: t3, TotalBenchmarkCores: 3},
		{Snapshot: t1, TotalBenchmarkCores: 1},
	}

	d := Build(utils, conts)

	total := d.TotalSeries()
	require.Len(t, total.Points, 3)
	assert.Equal(t, []float64{10, 20, 30}, values(total))

	s, err := d.UtilizationSeries("totalbenchmarkcores")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, values(s))

	axis := Axis(total)
	assert.Equal(t, []snapshot.Timestamp{t1, t2, t3}, axis)
}

func TestLoad_OrderIndependentOfCreationOrder(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.NewStore(dir)

	for _, s := range []string{"2024-01-03_00-00-00", "2024-01-01_00-00-00", "2024-01-02_00-00-00"} {
		_, err := store.Write(&snapshot.Containers{Snapshot: ts(t, s), Total: 1, ImageCounts: map[string]int{}})
		require.NoError(t, err)
	}

	d, err := Load(store)
	require.NoError(t, err)

	var got []string
	for _, r := range d.Totals {
		got = append(got, r.Snapshot.String())
	}
	assert.Equal(t, []string{"2024-01-01_00-00-00", "2024-01-02_00-00-00", "2024-01-03_00-00-00"}, got)
}

func TestLoad_RoundTripReproducesValues(t *testing.T) {
	store := snapshot.NewStore(t.TempDir())
	u := &snapshot.Utilization{
		Snapshot:                   ts(t, "2024-02-02_10-20-30"),
		TotalBenchmarkCores:        123456,
		TotalBenchmarkRAM:          654321.5,
		TotalBenchmarkSSD:          9876543,
		TotalUtilCores:             4321.25,
		TotalUtilRAM:               12345.678,
		TotalUtilSSD:               54321,
		NotUtilizedNodes:           321,
		TotalNodes:                 13000,
		UtilizationPercentageCores: 3.4998734,
		UtilizationPercentageRAM:   1.88679245283,
		UtilizationPercentageSSD:   0.549981,
		UtilizationNodes:           97.530769230769,
		TotalCumulus:               7000,
		TotalNimbus:                4000,
		TotalStratus:               2000,
		UniqueWalletCount:          4567,
	}
	_, err := store.Write(u)
	require.NoError(t, err)

	d, err := Load(store)
	require.NoError(t, err)

	want := u.Metrics()
	require.Len(t, d.Utilization, len(want))
	for i, m := range want {
		assert.Equal(t, m.Name, d.Utilization[i].Metric)
		assert.Equal(t, m.Value, d.Utilization[i].Value, m.Name)
		assert.True(t, u.Snapshot.Equal(d.Utilization[i].Snapshot.Time))
	}
}

func TestLoad_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	store := snapshot.NewStore(dir)
	_, err := store.Write(&snapshot.Containers{Snapshot: ts(t, "2024-01-01_00-00-00"), Total: 4, ImageCounts: map[string]int{"x": 4}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker_count_broken.json"), []byte("{"), 0o600))

	d, err := Load(store)
	require.NoError(t, err)
	assert.Len(t, d.Totals, 1)
}

func TestLoad_OnlyBadFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "utilization_broken.json"), []byte("nope"), 0o600))

	_, err := Load(snapshot.NewStore(dir))
	require.Error(t, err)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	d, err := Load(snapshot.NewStore(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)
	assert.True(t, d.Empty())
	assert.Equal(t, "totalbenchmarkcores", d.DefaultMetric())
}

func TestDataset_ContainerSeries(t *testing.T) {
	t1 := ts(t, "2024-01-01_00-00-00")
	t2 := ts(t, "2024-01-02_00-00-00")
	d := Build(nil, []*snapshot.Containers{
		{Snapshot: t1, Total: 3, ImageCounts: map[string]int{"nginx:latest": 1, "redis:7": 2}},
		{Snapshot: t2, Total: 5, ImageCounts: map[string]int{"nginx:latest": 5}},
	})

	assert.Equal(t, []string{"nginx:latest", "redis:7"}, d.Images())

	got, err := d.ContainerSeries([]string{"redis:7", "nginx:latest", "redis:7"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "nginx:latest", got[0].Name)
	assert.Equal(t, []float64{1, 5}, values(got[0]))
	assert.Equal(t, "redis:7", got[1].Name)
	assert.Equal(t, []float64{2}, values(got[1]))
}

func TestDataset_SelectionErrors(t *testing.T) {
	d := Build(
		[]*snapshot.Utilization{{Snapshot: snapshot.NewTimestamp(time.Now())}},
		[]*snapshot.Containers{{Snapshot: snapshot.NewTimestamp(time.Now()), ImageCounts: map[string]int{"nginx:latest": 1}}},
	)

	_, err := d.ContainerSeries(nil)
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = d.UtilizationSeries("")
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = d.ContainerSeries([]string{"nginx:latest", "postgres"})
	assert.ErrorIs(t, err, ErrUnknownImage)

	_, err = d.UtilizationSeries("totalutilcore")
	assert.ErrorIs(t, err, ErrUnknownMetric)

	var ue *UnknownError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "totalutilcores", ue.Suggestion)
	assert.Contains(t, err.Error(), `did you mean "totalutilcores"`)
}

func TestSuggest(t *testing.T) {
	candidates := []string{"totalnodes", "total_cumulus", "utilization_nodes"}

	tests := []struct {
		name string
		want string
	}{
		{"totalnode", "totalnodes"},
		{"total_cumulos", "total_cumulus"},
		{"zzz", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Suggest(tt.name, candidates))
		})
	}
}

func values(s Series) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
