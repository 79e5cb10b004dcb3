package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		def  string
		want []string
	}{
		{"", "svg", []string{"svg"}},
		{"", "json", []string{"json"}},
		{"png", "svg", []string{"png"}},
		{"svg, PDF,png", "svg", []string{"svg", "pdf", "png"}},
	}
	for _, tt := range tests {
		if got := parseFormats(tt.in, tt.def); !slices.Equal(got, tt.want) {
			t.Errorf("parseFormats(%q, %q) = %v, want %v", tt.in, tt.def, got, tt.want)
		}
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		input  string
		want   string
	}{
		{"from dataset file", "", "data/usage.json", "usage-2021"},
		{"from url", "", "https://example.com/usage.json", "techmap-2021"},
		{"no input", "", "", "techmap-2021"},
		{"output with format ext", "out/chart.svg", "usage.json", "out/chart"},
		{"output without ext", "out/chart", "usage.json", "out/chart"},
		{"output with other ext", "out/chart.v2", "usage.json", "out/chart.v2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := basePath(tt.output, tt.input, 2021); got != tt.want {
				t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
			}
		})
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts := map[string][]byte{
		"svg": []byte("<svg/>"),
		"csv": []byte("year,plane\n"),
	}

	paths, err := writeArtifacts(artifacts, []string{"svg", "csv"}, filepath.Join(dir, "nested", "chart.svg"), "", 2021)
	if err != nil {
		t.Fatalf("writeArtifacts: %v", err)
	}
	want := []string{
		filepath.Join(dir, "nested", "chart.svg"),
		filepath.Join(dir, "nested", "chart.csv"),
	}
	if !slices.Equal(paths, want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if format := []string{"svg", "csv"}[i]; string(data) != string(artifacts[format]) {
			t.Errorf("%s = %q, want %q", p, data, artifacts[format])
		}
	}
}

func TestWriteArtifactsStdoutSingleFormat(t *testing.T) {
	_, err := writeArtifacts(map[string][]byte{}, []string{"svg", "png"}, stdoutPath, "", 2021)
	if err == nil {
		t.Error("stdout output with two formats should fail")
	}
}
