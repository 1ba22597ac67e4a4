// Package dashboard serves the browser dashboard: a filter page embedding
// three line charts, the charts themselves, a JSON API over the same series
// and a websocket that tells open pages when new data is loaded.
package dashboard

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/patrickmn/go-cache"

	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/series"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Options tune presentation.
type Options struct {
	Title string `json:"title" yaml:"title" koanf:"title"`

	// RefreshInterval is how often open pages reload without a push.
	RefreshInterval time.Duration `json:"refreshInterval" yaml:"refreshInterval" koanf:"refreshinterval"`

	// CacheTTL bounds how long a rendered chart is reused.
	CacheTTL time.Duration `json:"cacheTTL" yaml:"cacheTTL" koanf:"cachettl"`

	// CacheMaxAge is sent as Cache-Control max-age on chart responses, in seconds.
	CacheMaxAge int `json:"-" yaml:"-" koanf:"-"`

	ChartHeight string `json:"chartHeight" yaml:"chartHeight" koanf:"chartheight"`

	// AssetsHost overrides where chart pages load echarts from.
	AssetsHost string `json:"assetsHost" yaml:"assetsHost" koanf:"assetshost"`
}

// DefaultOptions returns the presentation defaults.
func DefaultOptions() Options {
	return Options{
		Title:           "Flux Network Stats",
		RefreshInterval: time.Hour,
		CacheTTL:        10 * time.Minute,
		ChartHeight:     "420px",
	}
}

// Dashboard holds the presentation state.
type Dashboard struct {
	holder    *series.Holder
	decisions func() []scheduler.Decision
	opts      Options
	cache     *cache.Cache
	upgrader  websocket.Upgrader
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithOptions replaces the presentation options.
func WithOptions(o Options) Option {
	return func(d *Dashboard) {
		d.opts = o
	}
}

// WithDecisions supplies the scheduler's latest decisions for /v1/status.
func WithDecisions(fn func() []scheduler.Decision) Option {
	return func(d *Dashboard) {
		d.decisions = fn
	}
}

// New creates a Dashboard reading from holder.
func New(holder *series.Holder, opts ...Option) *Dashboard {
	d := &Dashboard{
		holder: holder,
		opts:   DefaultOptions(),
	}
	for _, opt := range opts {
		opt(d)
	}
	ttl := d.opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	d.cache = cache.New(ttl, 2*ttl)
	d.upgrader = websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	return d
}

// Routes returns the handlers to register on the server, keyed by pattern.
func (d *Dashboard) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /{$}":                   d.HandlePage,
		"GET /charts/containers":     d.chartHandler(ChartContainers),
		"GET /charts/totals":         d.chartHandler(ChartTotals),
		"GET /charts/utilization":    d.chartHandler(ChartUtilization),
		"GET /v1/series/containers":  d.HandleContainerSeries,
		"GET /v1/series/totals":      d.HandleTotalSeries,
		"GET /v1/series/utilization": d.HandleUtilizationSeries,
		"GET /v1/status":             d.HandleStatus,
	}
}

// Ready reports an error until the first dataset has been loaded.
func (d *Dashboard) Ready() error {
	if d.holder.Current().Version == 0 {
		return errNotLoaded
	}
	return nil
}
