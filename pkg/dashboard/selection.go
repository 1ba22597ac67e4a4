package dashboard

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
	"github.com/fluxstats/fluxstats/pkg/series"
)

const (
	paramImage  = "image"
	paramMetric = "metric"

	// paramApply marks a submitted filter form, so that an explicitly empty
	// selection is told apart from a first visit.
	paramApply = "apply"
)

// Selection is the filter state of the dashboard.
type Selection struct {
	Images []string
	Metric string
}

// parseSelection reads the filters from q. Without a submitted form the
// defaults apply: every image and the first metric.
func parseSelection(q url.Values, d *series.Dataset) Selection {
	submitted := q.Has(paramApply)

	var images []string
	for _, v := range q[paramImage] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				images = append(images, p)
			}
		}
	}
	if len(images) == 0 && !submitted {
		images = d.Images()
	}

	metric := strings.TrimSpace(q.Get(paramMetric))
	if metric == "" && !submitted {
		metric = d.DefaultMetric()
	}

	return Selection{Images: images, Metric: metric}
}

// query encodes s so chart frames receive the same filters as the page.
func (s Selection) query() string {
	q := url.Values{}
	q.Set(paramApply, "1")
	for _, image := range s.Images {
		q.Add(paramImage, image)
	}
	if s.Metric != "" {
		q.Set(paramMetric, s.Metric)
	}
	return q.Encode()
}

// withSuggestion returns s with the name reported by ue replaced by its
// suggestion. Empty fields take the dataset defaults.
func (s Selection) withSuggestion(ue *series.UnknownError, d *series.Dataset) Selection {
	out := Selection{Images: append([]string(nil), s.Images...), Metric: s.Metric}
	switch {
	case errors.Is(ue.Kind, series.ErrUnknownImage):
		for i, image := range out.Images {
			if image == ue.Name {
				out.Images[i] = ue.Suggestion
			}
		}
	case errors.Is(ue.Kind, series.ErrUnknownMetric):
		out.Metric = ue.Suggestion
	}
	if len(out.Images) == 0 {
		out.Images = d.Images()
	}
	if out.Metric == "" {
		out.Metric = d.DefaultMetric()
	}
	return out
}

// cacheKey canonicalizes s for the chart cache.
func (s Selection) cacheKey() string {
	images := append([]string(nil), s.Images...)
	sort.Strings(images)
	return strings.Join(images, "\x00") + "\x01" + s.Metric
}

// selectionError converts series selection errors into request errors.
func selectionError(err error) error {
	var ue *series.UnknownError
	switch {
	case errors.Is(err, series.ErrNoSelection):
		return fserrors.Wrap(fserrors.ErrCodeInvalidRequest, "at least one item must be selected", err)
	case errors.As(err, &ue):
		ctx := map[string]any{"name": ue.Name}
		if ue.Suggestion != "" {
			ctx["suggestion"] = ue.Suggestion
		}
		return fserrors.WrapWithContext(fserrors.ErrCodeInvalidRequest, ue.Error(), ue.Kind, ctx)
	default:
		return err
	}
}
