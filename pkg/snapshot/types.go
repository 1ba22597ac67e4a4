package snapshot

import (
	"fmt"
	"strconv"
	"time"
)

// TimestampLayout is the layout of snapshot timestamps, both inside the
// files and in their names (YYYY-MM-DD_HH-MM-SS).
const TimestampLayout = "2006-01-02_15-04-05"

// Kind identifies a snapshot track.
type Kind string

const (
	// KindUtilization is the network resource utilization snapshot.
	KindUtilization Kind = "utilization"

	// KindContainers is the running container census snapshot.
	KindContainers Kind = "containers"
)

// Kinds lists all snapshot kinds in display order.
func Kinds() []Kind {
	return []Kind{KindUtilization, KindContainers}
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// FilePrefix returns the file name prefix used for snapshots of this kind.
func (k Kind) FilePrefix() string {
	switch k {
	case KindUtilization:
		return "utilization_"
	case KindContainers:
		return "docker_count_"
	default:
		return string(k) + "_"
	}
}

// FileName returns the file name for a snapshot of this kind taken at ts.
func (k Kind) FileName(ts Timestamp) string {
	return k.FilePrefix() + ts.String() + ".json"
}

// ParseKind parses a kind name. "docker" and "census" are accepted as
// aliases of KindContainers.
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindUtilization), "util":
		return KindUtilization, nil
	case string(KindContainers), "docker", "census":
		return KindContainers, nil
	default:
		return "", fmt.Errorf("unknown snapshot kind %q, supported kinds: %v", s, Kinds())
	}
}

// Timestamp is a snapshot time with second precision, encoded with
// TimestampLayout in local time.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second)}
}

// ParseTimestamp parses s in local time.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid snapshot timestamp %q: %w", s, err)
	}
	return Timestamp{Time: t}, nil
}

// String formats the timestamp with TimestampLayout.
func (t Timestamp) String() string {
	return t.Time.Format(TimestampLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MarshalJSON encodes the timestamp as a JSON string. It shadows the
// RFC 3339 encoding promoted from time.Time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes a JSON string in TimestampLayout.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("invalid snapshot timestamp %s: %w", b, err)
	}
	return t.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Timestamp) UnmarshalText(b []byte) error {
	parsed, err := ParseTimestamp(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Record is implemented by every snapshot payload.
type Record interface {
	Kind() Kind
	Taken() Timestamp
}

// Metric is one named numeric value of a utilization snapshot.
type Metric struct {
	Name  string
	Value float64
}

// Utilization is one utilization snapshot. JSON keys match the files written
// by earlier versions of the collector so existing data directories load.
type Utilization struct {
	Snapshot Timestamp `json:"Snapshot" yaml:"snapshot"`

	TotalBenchmarkCores float64 `json:"totalbenchmarkcores" yaml:"totalBenchmarkCores"`
	TotalBenchmarkRAM   float64 `json:"totalbenchmarkram" yaml:"totalBenchmarkRam"`
	TotalBenchmarkSSD   float64 `json:"totalbenchmarkssd" yaml:"totalBenchmarkSsd"`

	TotalUtilCores float64 `json:"totalutilcores" yaml:"totalUtilCores"`
	TotalUtilRAM   float64 `json:"totalutilram" yaml:"totalUtilRam"`
	TotalUtilSSD   float64 `json:"totalutilssd" yaml:"totalUtilSsd"`

	NotUtilizedNodes int `json:"notutilizednodes" yaml:"notUtilizedNodes"`
	TotalNodes       int `json:"totalnodes" yaml:"totalNodes"`

	UtilizationPercentageCores float64 `json:"utilization_percentage_cores" yaml:"utilizationPercentageCores"`
	UtilizationPercentageRAM   float64 `json:"utilization_percentage_ram" yaml:"utilizationPercentageRam"`
	UtilizationPercentageSSD   float64 `json:"utilization_percentage_ssd" yaml:"utilizationPercentageSsd"`
	UtilizationNodes           float64 `json:"utilization_nodes" yaml:"utilizationNodes"`

	TotalCumulus int `json:"total_cumulus" yaml:"totalCumulus"`
	TotalNimbus  int `json:"total_nimbus" yaml:"totalNimbus"`
	TotalStratus int `json:"total_stratus" yaml:"totalStratus"`

	UniqueWalletCount int `json:"unique_wallet_count" yaml:"uniqueWalletCount"`
}

// Kind implements Record.
func (u *Utilization) Kind() Kind { return KindUtilization }

// Taken implements Record.
func (u *Utilization) Taken() Timestamp { return u.Snapshot }

// Metrics flattens the snapshot into named values, keyed by JSON field name,
// in file order.
func (u *Utilization) Metrics() []Metric {
	return []Metric{
		{"totalbenchmarkcores", u.TotalBenchmarkCores},
		{"totalbenchmarkram", u.TotalBenchmarkRAM},
		{"totalbenchmarkssd", u.TotalBenchmarkSSD},
		{"totalutilcores", u.TotalUtilCores},
		{"totalutilram", u.TotalUtilRAM},
		{"totalutilssd", u.TotalUtilSSD},
		{"notutilizednodes", float64(u.NotUtilizedNodes)},
		{"totalnodes", float64(u.TotalNodes)},
		{"utilization_percentage_cores", u.UtilizationPercentageCores},
		{"utilization_percentage_ram", u.UtilizationPercentageRAM},
		{"utilization_percentage_ssd", u.UtilizationPercentageSSD},
		{"utilization_nodes", u.UtilizationNodes},
		{"total_cumulus", float64(u.TotalCumulus)},
		{"total_nimbus", float64(u.TotalNimbus)},
		{"total_stratus", float64(u.TotalStratus)},
		{"unique_wallet_count", float64(u.UniqueWalletCount)},
	}
}

// Containers is one running container census snapshot.
type Containers struct {
	Snapshot    Timestamp      `json:"Snapshot" yaml:"snapshot"`
	Total       int            `json:"Total Docker Count" yaml:"total"`
	ImageCounts map[string]int `json:"ImageCounts" yaml:"imageCounts"`
}

// Kind implements Record.
func (c *Containers) Kind() Kind { return KindContainers }

// Taken implements Record.
func (c *Containers) Taken() Timestamp { return c.Snapshot }
