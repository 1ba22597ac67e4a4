package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/series"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

const runningAppsBody = `{"status":"success","data":[
	{"apps":{"runningapps":[{"Image":"runonflux/website:latest"},{"Image":"containrrr/watchtower:latest"}]}},
	{"apps":{"runningapps":[{"Image":"runonflux/website:latest"},{"Image":"kadena/chainweb:2.19"}]}}
]}`

type env struct {
	dataDir string
	config  string
	logFile string
}

func newEnv(t *testing.T) env {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(runningAppsBody))
	}))
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "fluxstats.yaml")
	content := "endpoints:\n" +
		"  benchmark: " + upstream.URL + "/benchmark\n" +
		"  resources: " + upstream.URL + "/resources\n" +
		"  nodecount: " + upstream.URL + "/count\n" +
		"  nodelist: " + upstream.URL + "/list\n" +
		"  runningapps: " + upstream.URL + "/apps\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))

	return env{
		dataDir: filepath.Join(dir, "data"),
		config:  cfg,
		logFile: filepath.Join(dir, "app.log"),
	}
}

func (e env) run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.ErrWriter = &bytes.Buffer{}
	base := []string{name,
		"--config", e.config,
		"--env-file", filepath.Join(filepath.Dir(e.config), "missing.env"),
		"--data-dir", e.dataDir,
		"--log-file", e.logFile,
	}
	return root.Run(context.Background(), append(base, args...))
}

func TestCollect_Containers(t *testing.T) {
	e := newEnv(t)
	out := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, e.run(t, "collect", "containers", "--format", "json", "--output", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)

	var got struct {
		Kind     string `json:"kind"`
		Path     string `json:"path"`
		Snapshot struct {
			Total       int            `json:"Total Docker Count"`
			ImageCounts map[string]int `json:"ImageCounts"`
		} `json:"snapshot"`
		Ranked []struct {
			Image string `json:"image"`
			Count int    `json:"count"`
		} `json:"ranked"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "containers", got.Kind)
	assert.Equal(t, 3, got.Snapshot.Total)
	assert.NotContains(t, got.Snapshot.ImageCounts, "containrrr/watchtower:latest")
	require.Len(t, got.Ranked, 2)
	assert.Equal(t, "runonflux/website:latest", got.Ranked[0].Image)
	assert.FileExists(t, got.Path)

	files, err := snapshot.NewStore(e.dataDir).List(snapshot.KindContainers)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.FileExists(t, e.logFile)
}

func TestCollect_DryRunTable(t *testing.T) {
	e := newEnv(t)
	out := filepath.Join(t.TempDir(), "out.txt")

	require.NoError(t, e.run(t, "collect", "docker", "--dry-run", "--format", "table", "--output", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Snapshot: "))
	assert.Equal(t, "runonflux/website:latest: 2", lines[1])
	assert.Equal(t, "kadena/chainweb:2.19: 1", lines[2])
	assert.Equal(t, "Total Docker Count: 3", lines[3])

	files, err := snapshot.NewStore(e.dataDir).List(snapshot.KindContainers)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollect_UpstreamFailureWritesNothing(t *testing.T) {
	e := newEnv(t)

	err := e.run(t, "collect", "utilization", "--output", filepath.Join(t.TempDir(), "out.json"))
	require.Error(t, err)

	files, err := snapshot.NewStore(e.dataDir).List(snapshot.KindUtilization)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestCollect_BadArgs(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no kind", []string{"collect"}, "expected exactly one snapshot kind"},
		{"unknown kind", []string{"collect", "gpus"}, "unknown snapshot kind"},
		{"unknown format", []string{"collect", "containers", "--format", "xml"}, "unknown output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheck_EmptyDirCollectsNothing(t *testing.T) {
	e := newEnv(t)
	out := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, e.run(t, "check", "--output", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var decisions []scheduler.Decision
	require.NoError(t, json.Unmarshal(raw, &decisions))
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, scheduler.StateAbsent, d.State)
		assert.False(t, d.Collected)
	}
}

func TestSeries(t *testing.T) {
	e := newEnv(t)
	store := snapshot.NewStore(e.dataDir)
	for _, s := range []string{"2024-01-02_00-00-00", "2024-01-01_00-00-00"} {
		ts, err := snapshot.ParseTimestamp(s)
		require.NoError(t, err)
		_, err = store.Write(&snapshot.Containers{Snapshot: ts, Total: 5, ImageCounts: map[string]int{"a/b:1": 5}})
		require.NoError(t, err)
	}

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, e.run(t, "series", "totals", "--output", out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var got []series.Series
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Total Docker Count", got[0].Name)
	require.Len(t, got[0].Points, 2)
	assert.Equal(t, "2024-01-01_00-00-00", got[0].Points[0].Snapshot.String())

	err = e.run(t, "series", "containers", "--image", "nope/nope", "--output", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, series.ErrUnknownImage)

	err = e.run(t, "series", "total")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "totals"`)
}

func TestExport_RequiresRegistry(t *testing.T) {
	e := newEnv(t)
	err := e.run(t, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry and repository are required")
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	t.Setenv("FLUXSTATS_ENDPOINTS__BENCHMARK", "not a url")
	err := e.run(t, "check", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Endpoints.Benchmark")
}
