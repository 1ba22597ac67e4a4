package flux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
)

func TestClient_GetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"total":12}}`))
	}))
	defer srv.Close()

	before := testutil.ToFloat64(fetchTotal.WithLabelValues("count", "success"))

	c := NewClient(WithUserAgent("test-agent"))
	doc, err := c.Get(context.Background(), "count", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(12), doc.Get("data.total").Int())

	after := testutil.ToFloat64(fetchTotal.WithLabelValues("count", "success"))
	assert.Equal(t, before+1, after)
}

func TestClient_GetNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient().Get(context.Background(), "bench", srv.URL)
	require.Error(t, err)

	var se *fserrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fserrors.ErrCodeUnavailable, se.Code)
	assert.Equal(t, http.StatusBadGateway, se.Context["status"])
	assert.Contains(t, err.Error(), "status code: 502")
}

func TestClient_GetInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := NewClient().Get(context.Background(), "bench", srv.URL)

	var se *fserrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fserrors.ErrCodeInvalidPayload, se.Code)
}

func TestClient_GetTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithTimeout(time.Second)).Get(context.Background(), "bench", url)

	var se *fserrors.StructuredError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fserrors.ErrCodeUnavailable, se.Code)
	assert.Equal(t, "bench", se.Context["endpoint"])
}

func TestClient_GetCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient().Get(ctx, "bench", srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckUpstreamError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"internal error", `{"status":"error","data":{"message":"Internal error. Try again later"}}`, ErrUpstreamInternal},
		{"other error", `{"status":"error","data":{"message":"Not found"}}`, nil},
		{"success", `{"status":"success","data":[]}`, nil},
		{"no status", `{"data":[]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckUpstreamError(gjson.Parse(tt.body)))
		})
	}
}

func TestDefaultEndpoints(t *testing.T) {
	e := DefaultEndpoints()
	assert.Contains(t, e.Benchmark, "projection=benchmark")
	assert.Contains(t, e.Resources, "projection=apps.resources")
	assert.Contains(t, e.NodeCount, "getzelnodecount")
	assert.Contains(t, e.NodeList, "viewdeterministiczelnodelist")
	assert.Contains(t, e.RunningApps, "apps.runningapps.Image")
}
