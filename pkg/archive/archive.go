// Package archive exports the snapshot data directory as an OCI artifact.
//
// Every snapshot file becomes one layer, titled with its file name, under a
// manifest of type ArtifactType. The artifact is packed in a file store over
// the data directory and copied to the destination target, which is a remote
// repository for Export and any oras.Target in tests.
package archive

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/distribution/reference"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"k8s.io/utils/clock"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/fluxstats/fluxstats/pkg/snapshot"
)

const (
	// ArtifactType identifies a fluxstats snapshot bundle.
	ArtifactType = "application/vnd.fluxstats.snapshots.v1"

	// MediaTypeUtilization is the layer media type of utilization files.
	MediaTypeUtilization = "application/vnd.fluxstats.snapshot.utilization.v1+json"

	// MediaTypeContainers is the layer media type of container count files.
	MediaTypeContainers = "application/vnd.fluxstats.snapshot.containers.v1+json"

	// DefaultTag is pushed when no tag is configured.
	DefaultTag = "latest"

	// AnnotationKinds lists the snapshot kinds present in the bundle.
	AnnotationKinds = "io.fluxstats.snapshot.kinds"
)

// ErrNothingToExport is returned when the data directory holds no snapshot.
var ErrNothingToExport = errors.New("no snapshot files to export")

// Options configures Export.
type Options struct {
	Registry   string `json:"registry" yaml:"registry" koanf:"registry"`
	Repository string `json:"repository" yaml:"repository" koanf:"repository"`
	Tag        string `json:"tag" yaml:"tag" koanf:"tag"`

	// PlainHTTP talks to the registry without TLS.
	PlainHTTP bool `json:"plainHTTP" yaml:"plainHTTP" koanf:"plainhttp"`

	// InsecureTLS skips certificate verification.
	InsecureTLS bool `json:"insecureTLS" yaml:"insecureTLS" koanf:"insecuretls"`

	Username string `json:"username,omitempty" yaml:"username,omitempty" koanf:"username"`
	Password string `json:"-" yaml:"-" koanf:"password"`
}

// Reference validates the options and returns the tagged destination.
func (o Options) Reference() (reference.NamedTagged, error) {
	if o.Registry == "" || o.Repository == "" {
		return nil, fmt.Errorf("registry and repository are required")
	}
	named, err := reference.ParseNormalizedNamed(o.Registry + "/" + o.Repository)
	if err != nil {
		return nil, fmt.Errorf("invalid repository %s/%s: %w", o.Registry, o.Repository, err)
	}
	tag := o.Tag
	if tag == "" {
		tag = DefaultTag
	}
	tagged, err := reference.WithTag(named, tag)
	if err != nil {
		return nil, fmt.Errorf("invalid tag %q: %w", tag, err)
	}
	return tagged, nil
}

// Result describes a pushed artifact.
type Result struct {
	Reference string    `json:"reference" yaml:"reference"`
	Digest    string    `json:"digest" yaml:"digest"`
	Size      int64     `json:"size" yaml:"size"`
	Files     []string  `json:"files" yaml:"files"`
	Created   time.Time `json:"created" yaml:"created"`
}

// Exporter packs snapshot files into an artifact.
type Exporter struct {
	Store *snapshot.Store
	Clock clock.PassiveClock
}

// NewExporter returns an Exporter over store using the real clock.
func NewExporter(store *snapshot.Store) *Exporter {
	return &Exporter{Store: store, Clock: clock.RealClock{}}
}

// Export pushes every snapshot file to the registry named by o.
func (e *Exporter) Export(ctx context.Context, o Options) (*Result, error) {
	ref, err := o.Reference()
	if err != nil {
		return nil, err
	}
	repo, err := NewRepository(o)
	if err != nil {
		return nil, err
	}
	res, err := e.Push(ctx, repo, ref.Tag())
	if err != nil {
		return nil, err
	}
	res.Reference = ref.String()
	return res, nil
}

// Push packs the snapshot files and copies the manifest tagged tag to dst.
func (e *Exporter) Push(ctx context.Context, dst oras.Target, tag string) (*Result, error) {
	fs, err := file.New(e.Store.Dir())
	if err != nil {
		return nil, fmt.Errorf("failed to open file store: %w", err)
	}
	defer func() {
		if cerr := fs.Close(); cerr != nil {
			slog.Warn("failed to close file store", "error", cerr)
		}
	}()

	var (
		layers []ocispec.Descriptor
		files  []string
		kinds  []string
	)
	for _, kind := range snapshot.Kinds() {
		infos, err := e.Store.List(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s snapshots: %w", kind, err)
		}
		if len(infos) > 0 {
			kinds = append(kinds, kind.String())
		}
		for _, fi := range infos {
			desc, err := fs.Add(ctx, fi.Name, mediaType(kind), fi.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to add %s: %w", fi.Name, err)
			}
			layers = append(layers, desc)
			files = append(files, fi.Name)
		}
	}
	if len(layers) == 0 {
		return nil, ErrNothingToExport
	}

	created := e.Clock.Now().UTC().Truncate(time.Second)
	manifest, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: layers,
		ManifestAnnotations: map[string]string{
			ocispec.AnnotationCreated: created.Format(time.RFC3339),
			AnnotationKinds:           strings.Join(kinds, ","),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to pack manifest: %w", err)
	}
	if err := fs.Tag(ctx, manifest, tag); err != nil {
		return nil, fmt.Errorf("failed to tag manifest: %w", err)
	}

	start := time.Now()
	desc, err := oras.Copy(ctx, fs, tag, dst, tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to push artifact: %w", err)
	}

	slog.Info("snapshots exported",
		slog.String("tag", tag),
		slog.String("digest", desc.Digest.String()),
		slog.Int("files", len(files)),
		slog.Duration("duration", time.Since(start)))

	return &Result{
		Reference: tag,
		Digest:    desc.Digest.String(),
		Size:      desc.Size,
		Files:     files,
		Created:   created,
	}, nil
}

// NewRepository returns the remote repository named by o with its transport
// and credentials configured.
func NewRepository(o Options) (*remote.Repository, error) {
	ref, err := o.Reference()
	if err != nil {
		return nil, err
	}
	repo, err := remote.NewRepository(ref.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to create repository client: %w", err)
	}
	repo.PlainHTTP = o.PlainHTTP

	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if o.InsecureTLS {
		client.Client = &http.Client{
			Transport: retry.NewTransport(&http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in
			}),
		}
	}
	if o.Username != "" || o.Password != "" {
		client.Credential = auth.StaticCredential(repo.Reference.Registry, auth.Credential{
			Username: o.Username,
			Password: o.Password,
		})
	}
	repo.Client = client
	return repo, nil
}

func mediaType(kind snapshot.Kind) string {
	if kind == snapshot.KindContainers {
		return MediaTypeContainers
	}
	return MediaTypeUtilization
}
