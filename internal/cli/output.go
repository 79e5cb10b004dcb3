package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/techmap/pkg/pipeline"
)

// stdoutPath selects standard output as the output file.
const stdoutPath = "-"

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing; "-" is standard output.
func openOutput(path string) (io.WriteCloser, error) {
	if path == stdoutPath {
		return nopCloser{os.Stdout}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

// basePath derives the output path without extension. An explicit output
// wins (minus a known format extension); otherwise the dataset file name
// and the year are used, e.g. usage.json -> usage-2021.
func basePath(output, input string, year int) string {
	if output != "" {
		ext := filepath.Ext(output)
		if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
			return strings.TrimSuffix(output, ext)
		}
		return output
	}
	name := appName
	if input != "" && !strings.Contains(input, "://") {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	return fmt.Sprintf("%s-%d", name, year)
}

// writeArtifacts writes one file per format and returns the paths in
// format order. With output "-" a single format goes to standard output.
func writeArtifacts(artifacts map[string][]byte, formats []string, output, input string, year int) ([]string, error) {
	if output == stdoutPath {
		if len(formats) != 1 {
			return nil, fmt.Errorf("-o - needs exactly one format, got %d", len(formats))
		}
		_, err := os.Stdout.Write(artifacts[formats[0]])
		return nil, err
	}

	base := basePath(output, input, year)
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := base + "." + format
		out, err := openOutput(path)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", path, err)
		}
		_, err = out.Write(artifacts[format])
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
