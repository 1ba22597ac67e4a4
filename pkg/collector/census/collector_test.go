package census

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
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

const runningAppsBody = `{"status":"success","data":[
	{"apps":{"runningapps":[{"Image":"runonflux/website:latest"},{"Image":"containrrr/watchtower"}]}},
	{"apps":{"runningapps":[{"Image":"runonflux/website:latest"},{"Image":"kadena/chainweb:2.19"}]}},
	{"apps":{}},
	{},
	{"apps":{"runningapps":[{"Image":"containrrr/watchtower:latest"}]}}
]}`

func TestCollector_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(runningAppsBody))
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 2, 8, 30, 0, 0, time.Local)
	c := &Collector{
		Client:   flux.NewClient(),
		URL:      srv.URL,
		Denylist: NewDenylist(DefaultDenylist),
		Clock:    testingclock.NewFakePassiveClock(now),
	}

	rec, err := c.Collect(context.Background())
	require.NoError(t, err)

	got, ok := rec.(*snapshot.Containers)
	require.True(t, ok)
	assert.Equal(t, "2024-05-02_08-30-00", got.Snapshot.String())
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, map[string]int{
		"runonflux/website:latest": 2,
		"kadena/chainweb:2.19":     1,
	}, got.ImageCounts)
}

func TestCollector_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Collector{Client: flux.NewClient(), URL: srv.URL}
	rec, err := c.Collect(context.Background())
	require.Error(t, err)
	assert.Nil(t, rec)

	var se *fserrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fserrors.ErrCodeUnavailable, se.Code)
}

func TestTally_DeniedExcludedFromTotal(t *testing.T) {
	doc := gjson.Parse(`{"data":[{"apps":{"runningapps":[
		{"Image":"containrrr/watchtower"},
		{"Image":"containrrr/watchtower"},
		{"Image":"a/b"}
	]}}]}`)

	withDeny, err := Tally(snapshot.NewTimestamp(time.Now()), doc, NewDenylist(DefaultDenylist))
	require.NoError(t, err)
	assert.Equal(t, 1, withDeny.Total)
	assert.NotContains(t, withDeny.ImageCounts, "containrrr/watchtower")

	without, err := Tally(snapshot.NewTimestamp(time.Now()), doc, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, without.Total)
	assert.Equal(t, 2, without.ImageCounts["containrrr/watchtower"])
}

func TestTally_DenylistIsExact(t *testing.T) {
	doc := gjson.Parse(`{"data":[{"apps":{"runningapps":[
		{"Image":"containrrr/watchtower"},
		{"Image":"docker.io/containrrr/watchtower"},
		{"Image":"index.docker.io/containrrr/watchtower:latest"},
		{"Image":"runonflux/website"}
	]}}]}`)

	c, err := Tally(snapshot.NewTimestamp(time.Now()), doc, NewDenylist(DefaultDenylist))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Total)
	assert.Equal(t, map[string]int{
		"docker.io/containrrr/watchtower":              1,
		"index.docker.io/containrrr/watchtower:latest": 1,
		"runonflux/website":                            1,
	}, c.ImageCounts)
}

func TestTally_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantPath string
	}{
		{"no data", `{"status":"success"}`, "data"},
		{"app without image", `{"data":[{"apps":{"runningapps":[{"Image":"a"},{"Name":"x"}]}}]}`, "data.0.apps.runningapps.1.Image"},
		{"runningapps not a list", `{"data":[{"apps":{"runningapps":"oops"}}]}`, "data.0.apps.runningapps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tally(snapshot.NewTimestamp(time.Now()), gjson.Parse(tt.body), nil)
			require.Error(t, err)

			var se *fserrors.StructuredError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, fserrors.ErrCodeInvalidPayload, se.Code)
			assert.Equal(t, tt.wantPath, se.Context["path"])
		})
	}
}

func TestTally_Empty(t *testing.T) {
	c, err := Tally(snapshot.NewTimestamp(time.Now()), gjson.Parse(`{"data":[]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Total)
	assert.NotNil(t, c.ImageCounts)
}

func TestRanked(t *testing.T) {
	c := &snapshot.Containers{ImageCounts: map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}}

	got := Ranked(c)
	want := []ImageCount{{"c", 5}, {"a", 2}, {"b", 2}, {"d", 1}}
	assert.Equal(t, want, got)
}
