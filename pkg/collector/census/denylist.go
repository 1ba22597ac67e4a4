package census

import "strings"

// DefaultDenylist lists images that run on every node and say nothing about
// application demand.
var DefaultDenylist = []string{
	"containrrr/watchtower:latest",
	"containrrr/watchtower",
}

// Denylist decides which images are excluded from the census.
// Supported patterns:
//   - "prefix*" matches images starting with "prefix"
//   - "*suffix" matches images ending with "suffix"
//   - "*contains*" matches images containing "contains"
//   - "exact" matches the image string exactly
type Denylist struct {
	exact    map[string]struct{}
	patterns []string
}

// NewDenylist compiles patterns.
func NewDenylist(patterns []string) *Denylist {
	d := &Denylist{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		if strings.Contains(p, "*") {
			d.patterns = append(d.patterns, p)
			continue
		}
		d.exact[p] = struct{}{}
	}
	return d
}

// Denied reports whether image is excluded.
func (d *Denylist) Denied(image string) bool {
	if d == nil {
		return false
	}
	if _, ok := d.exact[image]; ok {
		return true
	}
	for _, p := range d.patterns {
		if matchesPattern(image, p) {
			return true
		}
	}
	return false
}

func matchesPattern(image, pattern string) bool {
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		return strings.Contains(image, strings.Trim(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(image, strings.TrimPrefix(pattern, "*"))
	}

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(image, strings.TrimSuffix(pattern, "*"))
	}

	return false
}
