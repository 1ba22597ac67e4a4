// Package census counts the container images running across the Flux
// network.
package census

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

// EndpointRunningApps names the running apps projection in logs and errors.
const EndpointRunningApps = "runningapps"

// Fetcher retrieves one upstream document.
type Fetcher interface {
	Get(ctx context.Context, name, url string) (gjson.Result, error)
}

// Collector tallies running container images.
type Collector struct {
	Client   Fetcher
	URL      string
	Denylist *Denylist
	Clock    clock.PassiveClock
}

// Collect implements collector.Collector. Any fetch failure is returned so
// no snapshot is written for the run.
func (c *Collector) Collect(ctx context.Context) (snapshot.Record, error) {
	if c.Client == nil {
		return nil, fserrors.New(fserrors.ErrCodeInternal, "census collector has no client")
	}
	clk := c.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	doc, err := c.Client.Get(ctx, EndpointRunningApps, c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch running apps: %w", err)
	}

	return Tally(snapshot.NewTimestamp(clk.Now()), doc, c.Denylist)
}

// Tally counts data[].apps.runningapps[].Image occurrences. Items without
// running apps are skipped; denied images are left out of both the counts
// and the total.
func Tally(ts snapshot.Timestamp, doc gjson.Result, deny *Denylist) (*snapshot.Containers, error) {
	data := doc.Get("data")
	if !data.IsArray() {
		return nil, fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
			"running apps response is missing data", nil,
			map[string]any{"endpoint": EndpointRunningApps, "path": "data"})
	}

	c := &snapshot.Containers{Snapshot: ts, ImageCounts: make(map[string]int)}
	denied := 0

	for i, item := range data.Array() {
		apps := item.Get("apps.runningapps")
		if !apps.Exists() {
			continue
		}
		if !apps.IsArray() {
			return nil, fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
				"runningapps is not a list", nil,
				map[string]any{"endpoint": EndpointRunningApps, "path": fmt.Sprintf("data.%d.apps.runningapps", i)})
		}
		for j, app := range apps.Array() {
			image := app.Get("Image")
			if image.Type != gjson.String {
				return nil, fserrors.WrapWithContext(fserrors.ErrCodeInvalidPayload,
					"running app is missing Image", nil,
					map[string]any{"endpoint": EndpointRunningApps, "path": fmt.Sprintf("data.%d.apps.runningapps.%d.Image", i, j)})
			}
			name := image.String()
			if deny.Denied(name) {
				denied++
				continue
			}
			c.ImageCounts[name]++
			c.Total++
		}
	}

	slog.Debug("tallied running apps",
		slog.Int("total", c.Total),
		slog.Int("images", len(c.ImageCounts)),
		slog.Int("denied", denied),
	)

	return c, nil
}

// ImageCount is one row of a census summary.
type ImageCount struct {
	Image string `json:"image" yaml:"image"`
	Count int    `json:"count" yaml:"count"`
}

// Ranked returns the image counts sorted by count descending, then by name.
func Ranked(c *snapshot.Containers) []ImageCount {
	out := make([]ImageCount, 0, len(c.ImageCounts))
	for image, n := range c.ImageCounts {
		out = append(out, ImageCount{Image: image, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Image < out[j].Image
	})
	return out
}
