package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/fluxstats/fluxstats/pkg/serializer"
)

var (
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatJSON),
		Usage:   "output format (json, yaml, table)",
	}

	dryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "report without writing snapshot files",
	}
)

// parseOutputFormat extracts and validates the output format from CLI flags.
// Returns the validated format or an error if the format is unknown.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	outFormat := serializer.Format(cmd.String("format"))
	if outFormat.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, valid formats are: yaml, json, table", outFormat)
	}
	return outFormat, nil
}

// tableRenderer is implemented by results with their own table layout.
type tableRenderer interface {
	renderTable(w io.Writer) error
}

// writeOutput serializes data to the --output destination.
func writeOutput(ctx context.Context, cmd *cli.Command, data any) error {
	outFormat, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}

	if r, ok := data.(tableRenderer); ok && outFormat == serializer.FormatTable {
		out, closeFn, err := openOutput(cmd.String("output"))
		if err != nil {
			return err
		}
		defer closeFn()
		return r.renderTable(out)
	}

	w, err := serializer.NewFileWriterOrStdout(outFormat, cmd.String("output"))
	if err != nil {
		return err
	}
	defer closeQuietly(w)
	return w.Serialize(ctx, data)
}

func closeQuietly(s serializer.Serializer) {
	if c, ok := s.(serializer.Closer); ok {
		_ = c.Close()
	}
}

func openOutput(path string) (io.Writer, func(), error) {
	path = strings.TrimSpace(path)
	if path == "" || path == serializer.StdoutURI {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
