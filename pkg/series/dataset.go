// Package series turns the snapshot file set into chartable time series.
// A Dataset is immutable once built; Holder swaps whole datasets so readers
// never observe a partial reload.
package series

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

var (
	// ErrNoSelection is returned when a chart is requested with nothing selected.
	ErrNoSelection = errors.New("no items selected")

	// ErrUnknownMetric is returned for a metric name not present in the data.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrUnknownImage is returned for an image name not present in the data.
	ErrUnknownImage = errors.New("unknown image")
)

// ContainerRow is one image count at one snapshot.
type ContainerRow struct {
	Snapshot snapshot.Timestamp `json:"snapshot" yaml:"snapshot"`
	Image    string             `json:"image" yaml:"image"`
	Quantity int                `json:"quantity" yaml:"quantity"`
}

// TotalRow is the total container count at one snapshot.
type TotalRow struct {
	Snapshot snapshot.Timestamp `json:"snapshot" yaml:"snapshot"`
	Total    int                `json:"total" yaml:"total"`
}

// UtilizationRow is one utilization metric at one snapshot.
type UtilizationRow struct {
	Snapshot snapshot.Timestamp `json:"snapshot" yaml:"snapshot"`
	Metric   string             `json:"metric" yaml:"metric"`
	Value    float64            `json:"value" yaml:"value"`
}

// Point is one value of a Series.
type Point struct {
	Snapshot snapshot.Timestamp `json:"snapshot" yaml:"snapshot"`
	Value    float64            `json:"value" yaml:"value"`
}

// Series is a named, time-ordered sequence of points.
type Series struct {
	Name   string  `json:"name" yaml:"name"`
	Points []Point `json:"points" yaml:"points"`
}

// Dataset holds every row reconstructed from the snapshot files, each slice
// sorted ascending by snapshot timestamp.
type Dataset struct {
	Version  uint64    `json:"version" yaml:"version"`
	LoadedAt time.Time `json:"loadedAt" yaml:"loadedAt"`

	Containers  []ContainerRow   `json:"containers" yaml:"containers"`
	Totals      []TotalRow       `json:"totals" yaml:"totals"`
	Utilization []UtilizationRow `json:"utilization" yaml:"utilization"`

	images  []string
	metrics []string
}

// Build flattens snapshots into a Dataset. Input order does not matter.
func Build(utilization []*snapshot.Utilization, containers []*snapshot.Containers) *Dataset {
	d := &Dataset{}

	cs := append([]*snapshot.Containers(nil), containers...)
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Snapshot.Before(cs[j].Snapshot.Time) })

	images := sets.New[string]()
	for _, c := range cs {
		d.Totals = append(d.Totals, TotalRow{Snapshot: c.Snapshot, Total: c.Total})

		names := make([]string, 0, len(c.ImageCounts))
		for image := range c.ImageCounts {
			names = append(names, image)
		}
		sort.Strings(names)
		for _, image := range names {
			d.Containers = append(d.Containers, ContainerRow{
				Snapshot: c.Snapshot,
				Image:    image,
				Quantity: c.ImageCounts[image],
			})
			images.Insert(image)
		}
	}
	d.images = sets.List(images)

	us := append([]*snapshot.Utilization(nil), utilization...)
	sort.SliceStable(us, func(i, j int) bool { return us[i].Snapshot.Before(us[j].Snapshot.Time) })

	for _, u := range us {
		for _, m := range u.Metrics() {
			d.Utilization = append(d.Utilization, UtilizationRow{Snapshot: u.Snapshot, Metric: m.Name, Value: m.Value})
		}
	}
	for _, m := range (&snapshot.Utilization{}).Metrics() {
		d.metrics = append(d.metrics, m.Name)
	}

	return d
}

// Load reads every snapshot file in store. Files that cannot be decoded are
// logged and skipped.
func Load(store *snapshot.Store) (*Dataset, error) {
	utilRecs, errs := store.LoadAll(snapshot.KindUtilization)
	contRecs, cerrs := store.LoadAll(snapshot.KindContainers)
	errs = append(errs, cerrs...)

	for _, err := range errs {
		slog.Warn("skipping snapshot", slog.String("error", err.Error()))
	}
	if len(utilRecs) == 0 && len(contRecs) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("failed to load any snapshot: %w", errors.Join(errs...))
	}

	utils := make([]*snapshot.Utilization, 0, len(utilRecs))
	for _, r := range utilRecs {
		if u, ok := r.(*snapshot.Utilization); ok {
			utils = append(utils, u)
		}
	}
	conts := make([]*snapshot.Containers, 0, len(contRecs))
	for _, r := range contRecs {
		if c, ok := r.(*snapshot.Containers); ok {
			conts = append(conts, c)
		}
	}

	return Build(utils, conts), nil
}

// Images returns the distinct image names, sorted.
func (d *Dataset) Images() []string {
	return append([]string(nil), d.images...)
}

// Metrics returns the utilization metric names in file order.
func (d *Dataset) Metrics() []string {
	return append([]string(nil), d.metrics...)
}

// DefaultMetric is the metric charted when none is selected.
func (d *Dataset) DefaultMetric() string {
	if len(d.metrics) == 0 {
		return ""
	}
	return d.metrics[0]
}

// Empty reports whether no snapshot was loaded.
func (d *Dataset) Empty() bool {
	return len(d.Totals) == 0 && len(d.Utilization) == 0
}

// ContainerSeries returns one series per selected image.
func (d *Dataset) ContainerSeries(images []string) ([]Series, error) {
	if len(images) == 0 {
		return nil, ErrNoSelection
	}
	known := sets.New(d.images...)
	selected := sets.New[string]()
	for _, image := range images {
		if !known.Has(image) {
			return nil, unknown(ErrUnknownImage, image, d.images)
		}
		selected.Insert(image)
	}

	byImage := make(map[string][]Point, selected.Len())
	for _, r := range d.Containers {
		if selected.Has(r.Image) {
			byImage[r.Image] = append(byImage[r.Image], Point{Snapshot: r.Snapshot, Value: float64(r.Quantity)})
		}
	}

	out := make([]Series, 0, selected.Len())
	for _, image := range sets.List(selected) {
		out = append(out, Series{Name: image, Points: byImage[image]})
	}
	return out, nil
}

// TotalSeries returns the total container count over time.
func (d *Dataset) TotalSeries() Series {
	s := Series{Name: "Total Docker Count", Points: make([]Point, 0, len(d.Totals))}
	for _, r := range d.Totals {
		s.Points = append(s.Points, Point{Snapshot: r.Snapshot, Value: float64(r.Total)})
	}
	return s
}

// UtilizationSeries returns one utilization metric over time.
func (d *Dataset) UtilizationSeries(metric string) (Series, error) {
	if metric == "" {
		return Series{}, ErrNoSelection
	}
	if !sets.New(d.metrics...).Has(metric) {
		return Series{}, unknown(ErrUnknownMetric, metric, d.metrics)
	}

	s := Series{Name: metric}
	for _, r := range d.Utilization {
		if r.Metric == metric {
			s.Points = append(s.Points, Point{Snapshot: r.Snapshot, Value: r.Value})
		}
	}
	return s, nil
}

// Axis returns the sorted union of snapshot timestamps across series.
func Axis(series ...Series) []snapshot.Timestamp {
	seen := make(map[string]snapshot.Timestamp)
	for _, s := range series {
		for _, p := range s.Points {
			seen[p.Snapshot.String()] = p.Snapshot
		}
	}
	out := make([]snapshot.Timestamp, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out
}

// UnknownError reports a selection that is not present in the data, with
// the closest known name when one is near enough.
type UnknownError struct {
	Kind       error
	Name       string
	Suggestion string
}

func (e *UnknownError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v %q, did you mean %q?", e.Kind, e.Name, e.Suggestion)
	}
	return fmt.Sprintf("%v %q", e.Kind, e.Name)
}

func (e *UnknownError) Unwrap() error {
	return e.Kind
}

func unknown(kind error, name string, candidates []string) error {
	return &UnknownError{Kind: kind, Name: name, Suggestion: Suggest(name, candidates)}
}

// Suggest returns the candidate closest to name by edit distance, or "" when
// none is within half of name's length.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", len(name)/2+1
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
