// Package flux fetches JSON documents from the public Flux network APIs.
// Responses are returned as gjson results so callers can address nested
// fields by path and detect missing keys without declaring full schemas.
package flux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
)

const (
	// DefaultTimeout bounds one request including reading the body.
	DefaultTimeout = 60 * time.Second

	// upstreamInternalMessage is what the stats API answers while its
	// backend is rebuilding.
	upstreamInternalMessage = "Internal error. Try again later"
)

// ErrUpstreamInternal is returned when an endpoint explicitly reports an
// internal error instead of data.
var ErrUpstreamInternal = errors.New("upstream reported internal error")

// Endpoints are the URLs polled by the collectors.
type Endpoints struct {
	Benchmark   string `json:"benchmark" yaml:"benchmark" koanf:"benchmark" validate:"required,url"`
	Resources   string `json:"resources" yaml:"resources" koanf:"resources" validate:"required,url"`
	NodeCount   string `json:"nodeCount" yaml:"nodeCount" koanf:"nodecount" validate:"required,url"`
	NodeList    string `json:"nodeList" yaml:"nodeList" koanf:"nodelist" validate:"required,url"`
	RunningApps string `json:"runningApps" yaml:"runningApps" koanf:"runningapps" validate:"required,url"`
}

// DefaultEndpoints returns the public Flux endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Benchmark:   "https://stats.runonflux.io/fluxinfo?projection=benchmark",
		Resources:   "https://stats.runonflux.io/fluxinfo?projection=apps.resources",
		NodeCount:   "https://api.runonflux.io/daemon/getzelnodecount",
		NodeList:    "https://api.runonflux.io/daemon/viewdeterministiczelnodelist",
		RunningApps: "https://stats.runonflux.io/fluxinfo?projection=apps.runningapps.Image",
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Client issues GET requests and parses JSON responses. It performs no
// retries.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:   DefaultTimeout,
		userAgent: "fluxstats",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Get fetches url and returns the parsed document. name labels logs and
// metrics. Transport failures and non-200 responses are UNAVAILABLE
// structured errors; a body that is not JSON is INVALID_PAYLOAD.
func (c *Client) Get(ctx context.Context, name, url string) (gjson.Result, error) {
	start := time.Now()
	status := "error"
	defer func() {
		fetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		fetchTotal.WithLabelValues(name, status).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, fserrors.Wrap(fserrors.ErrCodeInternal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	slog.Debug("fetching endpoint", slog.String("endpoint", name), slog.String("url", url))

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fserrors.WrapWithContext(fserrors.ErrCodeUnavailable,
			fmt.Sprintf("request to %s failed", name), err, map[string]any{"endpoint": name})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fserrors.WrapWithContext(fserrors.ErrCodeUnavailable,
			fmt.Sprintf("failed to read %s response", name), err, map[string]any{"endpoint": name})
	}

	if resp.StatusCode != http.StatusOK {
		status = "http_" + fmt.Sprint(resp.StatusCode)
		return gjson.Result{}, fserrors.WrapWithContext(fserrors.ErrCodeUnavailable,
			fmt.Sprintf("request to %s failed with status code: %d", name, resp.StatusCode), nil,
			map[string]any{"endpoint": name, "status": resp.StatusCode})
	}

	if !gjson.ValidBytes(body) {
		status = "invalid"
		return gjson.Result{}, fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
			fmt.Sprintf("%s returned invalid JSON", name), nil, map[string]any{"endpoint": name})
	}

	status = "success"
	slog.Debug("fetched endpoint",
		slog.String("endpoint", name),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)
	return gjson.ParseBytes(body), nil
}

// CheckUpstreamError returns ErrUpstreamInternal when doc is the API's
// "internal error, try again later" answer.
func CheckUpstreamError(doc gjson.Result) error {
	if doc.Get("status").String() == "error" && doc.Get("data.message").String() == upstreamInternalMessage {
		return ErrUpstreamInternal
	}
	return nil
}
