package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/techmap/pkg/errors"
)

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.yaml")
	if err := os.WriteFile(path, []byte("years: [2020]\ntech:\n  - name: Go\n    series: {\"2020\": 5}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := (&FileSource{Path: path}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ds.Tech) != 1 || ds.Tech[0].Usage(2020) != 5 {
		t.Errorf("Load() = %+v", ds)
	}

	_, err = (&FileSource{Path: filepath.Join(dir, "missing.json")}).Load(context.Background())
	if !errors.Is(err, errors.ErrCodeDatasetNotFound) {
		t.Errorf("missing file error = %v, want DATASET_NOT_FOUND", err)
	}
}

func TestHTTPSourceRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cache-Control") != "no-store" {
			t.Errorf("Cache-Control = %q, want no-store", r.Header.Get("Cache-Control"))
		}
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"years": [2020], "tech": [{"name": "Go", "series": {"2020": 2}}]}`))
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL, Attempts: 3, Delay: time.Millisecond}
	ds, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(ds.Tech) != 1 {
		t.Errorf("len(Tech) = %d, want 1", len(ds.Tech))
	}
}

func TestHTTPSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   errors.Code
		calls  int32
	}{
		{"not found", http.StatusNotFound, errors.ErrCodeDatasetNotFound, 1},
		{"forbidden", http.StatusForbidden, errors.ErrCodeNetwork, 1},
		{"server error", http.StatusInternalServerError, errors.ErrCodeNetwork, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := (&HTTPSource{URL: srv.URL, Attempts: 2, Delay: time.Millisecond}).Load(context.Background())
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %v", err, tt.code)
			}
			if calls.Load() != tt.calls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.calls)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	src, err := Open("https://example.com/data.json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*HTTPSource); !ok {
		t.Errorf("Open(https) = %T, want *HTTPSource", src)
	}
	src, err = Open("data/tech.yaml", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*FileSource); !ok {
		t.Errorf("Open(path) = %T, want *FileSource", src)
	}
	if _, err := Open("../../etc/passwd", nil); err == nil {
		t.Error("Open(traversal) error = nil, want error")
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte(`{"years": [2020], "tech": []}`), 0o644); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(path, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Dataset, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, func(ds *Dataset) { got <- ds }) }()

	if err := os.WriteFile(path, []byte(`{"years": [2020, 2021], "tech": [{"name": "Go", "series": {}}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case ds := <-got:
		if len(ds.Years) != 2 || len(ds.Tech) != 1 {
			t.Errorf("reloaded = %+v", ds)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
