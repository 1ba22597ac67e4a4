package dashboard

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/fluxstats/fluxstats/pkg/scheduler"
	"github.com/fluxstats/fluxstats/pkg/serializer"
	"github.com/fluxstats/fluxstats/pkg/series"
	"github.com/fluxstats/fluxstats/pkg/server"
)

var errNotLoaded = errors.New("dataset not loaded yet")

type pageData struct {
	Title           string
	Images          []string
	Metrics         []string
	Selected        map[string]bool
	Metric          string
	Query           template.URL
	RefreshMillis   int64
	Version         uint64
	LoadedAt        time.Time
	Error           string
	Suggestion      string
	SuggestionQuery template.URL
	NoData          bool

	HasContainers  bool
	HasUtilization bool
}

// HandlePage handles GET /. An empty selection is answered with 400 and the
// form, never with empty charts.
func (d *Dashboard) HandlePage(w http.ResponseWriter, r *http.Request) {
	ds := d.holder.Current()
	sel := parseSelection(r.URL.Query(), ds)

	data := pageData{
		Title:         d.opts.Title,
		Images:        ds.Images(),
		Metrics:       ds.Metrics(),
		Selected:      make(map[string]bool, len(sel.Images)),
		Metric:        sel.Metric,
		Query:         template.URL(sel.query()),
		RefreshMillis: d.opts.RefreshInterval.Milliseconds(),
		Version:       ds.Version,
		LoadedAt:      ds.LoadedAt,
		NoData:        ds.Empty(),

		HasContainers:  len(ds.Images()) > 0,
		HasUtilization: len(ds.Utilization) > 0,
	}
	for _, image := range sel.Images {
		data.Selected[image] = true
	}

	status := http.StatusOK
	if err := validate(ds, sel, data.HasContainers, data.HasUtilization); err != nil {
		status = http.StatusBadRequest
		data.Error = err.Error()
		var ue *series.UnknownError
		if errors.As(err, &ue) && ue.Suggestion != "" {
			data.Suggestion = ue.Suggestion
			data.SuggestionQuery = template.URL(sel.withSuggestion(ue, ds).query())
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("failed to render page", "error", err)
	}
}

// validate runs the selection through the series filters of the charts that
// have data, without rendering.
func validate(ds *series.Dataset, sel Selection, containers, utilization bool) error {
	if containers {
		if _, err := ds.ContainerSeries(sel.Images); err != nil {
			return err
		}
	}
	if utilization {
		if _, err := ds.UtilizationSeries(sel.Metric); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dashboard) chartHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := d.holder.Current()
		sel := parseSelection(r.URL.Query(), ds)

		b, err := d.renderChart(name, ds, sel)
		if err != nil {
			server.WriteErrorFromErr(w, r, selectionError(err), fmt.Sprintf("failed to render %s chart", name), nil)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if d.opts.CacheMaxAge > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d", d.opts.CacheMaxAge))
		}
		w.Header().Set("X-Dataset-Version", fmt.Sprint(ds.Version))
		if _, err := w.Write(b); err != nil {
			slog.Warn("chart write failed", "error", err)
		}
	}
}

// SeriesResponse is the body of the /v1/series endpoints.
type SeriesResponse struct {
	Version uint64          `json:"version" yaml:"version"`
	Series  []series.Series `json:"series" yaml:"series"`
}

// HandleContainerSeries handles GET /v1/series/containers.
func (d *Dashboard) HandleContainerSeries(w http.ResponseWriter, r *http.Request) {
	ds := d.holder.Current()
	sel := parseSelection(r.URL.Query(), ds)

	ss, err := ds.ContainerSeries(sel.Images)
	if err != nil {
		server.WriteErrorFromErr(w, r, selectionError(err), "failed to build container series", nil)
		return
	}
	serializer.Respond(w, r, http.StatusOK, SeriesResponse{Version: ds.Version, Series: ss})
}

// HandleTotalSeries handles GET /v1/series/totals.
func (d *Dashboard) HandleTotalSeries(w http.ResponseWriter, r *http.Request) {
	ds := d.holder.Current()
	serializer.Respond(w, r, http.StatusOK, SeriesResponse{Version: ds.Version, Series: []series.Series{ds.TotalSeries()}})
}

// HandleUtilizationSeries handles GET /v1/series/utilization.
func (d *Dashboard) HandleUtilizationSeries(w http.ResponseWriter, r *http.Request) {
	ds := d.holder.Current()
	sel := parseSelection(r.URL.Query(), ds)

	s, err := ds.UtilizationSeries(sel.Metric)
	if err != nil {
		server.WriteErrorFromErr(w, r, selectionError(err), "failed to build utilization series", nil)
		return
	}
	serializer.Respond(w, r, http.StatusOK, SeriesResponse{Version: ds.Version, Series: []series.Series{s}})
}

// StatusResponse is the body of /v1/status.
type StatusResponse struct {
	Dataset   DatasetStatus        `json:"dataset" yaml:"dataset"`
	Decisions []scheduler.Decision `json:"decisions" yaml:"decisions"`
}

// DatasetStatus summarizes the loaded dataset.
type DatasetStatus struct {
	Version            uint64    `json:"version" yaml:"version"`
	LoadedAt           time.Time `json:"loadedAt" yaml:"loadedAt"`
	ContainerSnapshots int       `json:"containerSnapshots" yaml:"containerSnapshots"`
	UtilizationRows    int       `json:"utilizationRows" yaml:"utilizationRows"`
	Images             int       `json:"images" yaml:"images"`
	Metrics            []string  `json:"metrics" yaml:"metrics"`
}

// HandleStatus handles GET /v1/status.
func (d *Dashboard) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ds := d.holder.Current()
	resp := StatusResponse{
		Dataset: DatasetStatus{
			Version:            ds.Version,
			LoadedAt:           ds.LoadedAt,
			ContainerSnapshots: len(ds.Totals),
			UtilizationRows:    len(ds.Utilization),
			Images:             len(ds.Images()),
			Metrics:            ds.Metrics(),
		},
		Decisions: []scheduler.Decision{},
	}
	if d.decisions != nil {
		if last := d.decisions(); last != nil {
			resp.Decisions = last
		}
	}
	serializer.Respond(w, r, http.StatusOK, resp)
}
