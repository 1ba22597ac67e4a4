package dashboard

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/fluxstats/fluxstats/pkg/series"
)

// Chart names, also used in routes and cache keys.
const (
	ChartContainers  = "containers"
	ChartTotals      = "totals"
	ChartUtilization = "utilization"
)

// missing marks a point absent at an axis position.
const missing = "-"

func (d *Dashboard) newLine(title, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  title,
			Theme:      types.ThemeWesteros,
			Width:      "100%",
			Height:     d.opts.ChartHeight,
			AssetsHost: d.opts.AssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Snapshot"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	return line
}

// plot lays every series out on the shared snapshot axis.
func plot(line *charts.Line, ss ...series.Series) {
	axis := series.Axis(ss...)
	labels := make([]string, len(axis))
	index := make(map[string]int, len(axis))
	for i, ts := range axis {
		labels[i] = ts.String()
		index[ts.String()] = i
	}
	line.SetXAxis(labels)

	for _, s := range ss {
		data := make([]opts.LineData, len(axis))
		for i := range data {
			data[i] = opts.LineData{Value: missing}
		}
		for _, p := range s.Points {
			data[index[p.Snapshot.String()]] = opts.LineData{Value: p.Value}
		}
		line.AddSeries(s.Name, data)
	}
}

func (d *Dashboard) containersChart(ds *series.Dataset, sel Selection) (*charts.Line, error) {
	ss, err := ds.ContainerSeries(sel.Images)
	if err != nil {
		return nil, err
	}
	line := d.newLine("Docker Image Counts", "Quantity")
	plot(line, ss...)
	return line, nil
}

func (d *Dashboard) totalsChart(ds *series.Dataset) *charts.Line {
	line := d.newLine("Total Docker Count", "Total")
	plot(line, ds.TotalSeries())
	return line
}

func (d *Dashboard) utilizationChart(ds *series.Dataset, sel Selection) (*charts.Line, error) {
	s, err := ds.UtilizationSeries(sel.Metric)
	if err != nil {
		return nil, err
	}
	line := d.newLine(fmt.Sprintf("Utilization: %s", s.Name), "Value")
	plot(line, s)
	return line, nil
}

// renderChart renders the named chart to HTML, reusing a cached rendering of
// the same dataset version and selection.
func (d *Dashboard) renderChart(name string, ds *series.Dataset, sel Selection) ([]byte, error) {
	key := fmt.Sprintf("%s|%d|%s", name, ds.Version, sel.cacheKey())
	if v, ok := d.cache.Get(key); ok {
		chartCacheTotal.WithLabelValues(name, "hit").Inc()
		return v.([]byte), nil
	}
	chartCacheTotal.WithLabelValues(name, "miss").Inc()

	var (
		line *charts.Line
		err  error
	)
	switch name {
	case ChartContainers:
		line, err = d.containersChart(ds, sel)
	case ChartTotals:
		line = d.totalsChart(ds)
	case ChartUtilization:
		line, err = d.utilizationChart(ds, sel)
	default:
		err = fmt.Errorf("unknown chart %q", name)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render %s chart: %w", name, err)
	}
	b := buf.Bytes()
	d.cache.SetDefault(key, b)
	return b, nil
}
