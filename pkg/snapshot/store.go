package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNoSnapshot is returned when a kind has no snapshot file.
	ErrNoSnapshot = errors.New("no snapshot found")

	// ErrSnapshotExists is returned by Write when a snapshot with the same
	// kind and timestamp is already on disk.
	ErrSnapshotExists = errors.New("snapshot already exists")
)

// FileInfo describes one snapshot file on disk.
type FileInfo struct {
	Kind    Kind
	Name    string
	Path    string
	ModTime time.Time

	// NameTimestamp is the timestamp encoded in the file name. Zero when the
	// name does not carry a parsable timestamp.
	NameTimestamp Timestamp
}

// Entry is a snapshot file together with the timestamp recorded inside it.
type Entry struct {
	FileInfo
	Snapshot Timestamp
}

// Store reads and writes snapshot files in a single directory. Files are
// written once and never modified or removed.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Write persists rec as <prefix><timestamp>.json and returns the file path.
// The content is written to a temporary file in the same directory first and
// hard linked into place, so an existing snapshot is never replaced.
func (s *Store) Write(rec Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("snapshot cannot be nil")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory %q: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s snapshot: %w", rec.Kind(), err)
	}

	name := rec.Kind().FileName(rec.Taken())
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %q: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close %q: %w", tmpPath, err)
	}
	err = os.Link(tmpPath, path)
	_ = os.Remove(tmpPath)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotExists, path)
		}
		return "", fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	slog.Debug("snapshot written",
		slog.String("kind", rec.Kind().String()),
		slog.String("path", path),
	)
	return path, nil
}

// List returns the snapshot files of kind, sorted by file name. A missing
// data directory yields an empty list.
func (s *Store) List(kind Kind) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory %q: %w", s.dir, err)
	}

	prefix := kind.FilePrefix()
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			slog.Warn("failed to stat snapshot file", "name", name, "error", err)
			continue
		}

		fi := FileInfo{
			Kind:    kind,
			Name:    name,
			Path:    filepath.Join(s.dir, name),
			ModTime: info.ModTime(),
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		if ts, err := ParseTimestamp(raw); err == nil {
			fi.NameTimestamp = ts
		}
		files = append(files, fi)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Latest returns the newest snapshot of kind. The timestamp recorded inside
// each file decides; modification time only breaks ties. Files whose content
// timestamp cannot be read are skipped. Returns ErrNoSnapshot when no usable
// file exists.
func (s *Store) Latest(kind Kind) (*Entry, error) {
	files, err := s.List(kind)
	if err != nil {
		return nil, err
	}

	var latest *Entry
	for _, f := range files {
		ts, err := readTimestamp(f.Path)
		if err != nil {
			slog.Warn("skipping unreadable snapshot", "path", f.Path, "error", err)
			continue
		}
		checkNameAgreement(f, ts)

		e := &Entry{FileInfo: f, Snapshot: ts}
		if latest == nil || newer(e, latest) {
			latest = e
		}
	}

	if latest == nil {
		return nil, ErrNoSnapshot
	}
	return latest, nil
}

func newer(a, b *Entry) bool {
	if !a.Snapshot.Equal(b.Snapshot.Time) {
		return a.Snapshot.After(b.Snapshot.Time)
	}
	return a.ModTime.After(b.ModTime)
}

func checkNameAgreement(f FileInfo, content Timestamp) {
	if f.NameTimestamp.IsZero() || f.NameTimestamp.Equal(content.Time) {
		return
	}
	slog.Warn("snapshot file name and content timestamps disagree",
		slog.String("path", f.Path),
		slog.String("name_timestamp", f.NameTimestamp.String()),
		slog.String("content_timestamp", content.String()),
	)
}

func readTimestamp(path string) (Timestamp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timestamp{}, fmt.Errorf("failed to read %q: %w", path, err)
	}

	var head struct {
		Snapshot *Timestamp `json:"Snapshot"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Timestamp{}, fmt.Errorf("failed to decode %q: %w", path, err)
	}
	if head.Snapshot == nil {
		return Timestamp{}, fmt.Errorf("%q has no Snapshot field", path)
	}
	return *head.Snapshot, nil
}

// Load decodes the snapshot file at path as kind.
func (s *Store) Load(kind Kind, path string) (Record, error) {
	switch kind {
	case KindUtilization:
		return s.LoadUtilization(path)
	case KindContainers:
		return s.LoadContainers(path)
	default:
		return nil, fmt.Errorf("unknown snapshot kind %q", kind)
	}
}

// LoadUtilization decodes a utilization snapshot file.
func (s *Store) LoadUtilization(path string) (*Utilization, error) {
	var u Utilization
	if err := decodeFile(path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// LoadContainers decodes a container census snapshot file.
func (s *Store) LoadContainers(path string) (*Containers, error) {
	var c Containers
	if err := decodeFile(path, &c); err != nil {
		return nil, err
	}
	if c.ImageCounts == nil {
		c.ImageCounts = map[string]int{}
	}
	return &c, nil
}

// LoadAll decodes every snapshot file of kind. Files that fail to decode are
// skipped and reported in the returned error slice.
func (s *Store) LoadAll(kind Kind) ([]Record, []error) {
	files, err := s.List(kind)
	if err != nil {
		return nil, []error{err}
	}

	records := make([]Record, 0, len(files))
	var errs []error
	for _, f := range files {
		rec, err := s.Load(kind, f.Path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		checkNameAgreement(f, rec.Taken())
		records = append(records, rec)
	}
	return records, errs
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %q: %w", path, err)
	}
	return nil
}
