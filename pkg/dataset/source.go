package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/httputil"
	"github.com/matzehuels/techmap/pkg/observability"
)

// maxPayload bounds the size of a fetched dataset.
const maxPayload = 16 << 20

// Source loads a dataset. Implementations return normalized datasets.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Open returns a FileSource or HTTPSource for ref depending on its scheme.
func Open(ref string, logger *log.Logger) (Source, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if err := errors.ValidateURL(ref); err != nil {
			return nil, err
		}
		return &HTTPSource{URL: ref, Logger: logger}, nil
	}
	if err := errors.ValidatePath(ref); err != nil {
		return nil, err
	}
	return &FileSource{Path: ref, Logger: logger}, nil
}

// FileSource reads a JSON or YAML file; the extension selects the format.
type FileSource struct {
	Path   string
	Logger *log.Logger
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeDatasetNotFound, "dataset %s does not exist", s.Path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Decode(f, FormatFromPath(s.Path))
	if err != nil {
		return nil, err
	}
	finalize(ds, s.Path, s.Logger)
	return ds, nil
}

// HTTPSource fetches a dataset over HTTP, bypassing intermediary caches.
// Network failures and 5xx responses are retried with exponential backoff.
type HTTPSource struct {
	URL      string
	Client   *http.Client
	Attempts int           // default 3
	Delay    time.Duration // initial backoff, default 500ms
	Logger   *log.Logger
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) (*Dataset, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	attempts := s.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := s.Delay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var (
		body        []byte
		contentType string
	)
	err := httputil.Retry(ctx, attempts, delay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
		}
		req.Header.Set("Cache-Control", "no-store")
		req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

		hooks := observability.HTTP()
		hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger(s.Logger).Debug("dataset fetch failed", "url", s.URL, "err", err)
			return httputil.Retryable(err)
		}
		defer resp.Body.Close()
		hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 500:
			return httputil.Retryable(errors.New(errors.ErrCodeNetwork, "GET %s: %s", s.URL, resp.Status))
		case resp.StatusCode == http.StatusNotFound:
			return errors.New(errors.ErrCodeDatasetNotFound, "GET %s: %s", s.URL, resp.Status)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return errors.New(errors.ErrCodeNetwork, "GET %s: %s", s.URL, resp.Status)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxPayload))
		if err != nil {
			return httputil.Retryable(err)
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		switch {
		case ctx.Err() == context.DeadlineExceeded:
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "fetch dataset")
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.GetCode(err) != "":
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch dataset")
	}

	format := JSON
	if strings.Contains(contentType, "yaml") || FormatFromPath(path.Base(s.URL)) == YAML {
		format = YAML
	}
	ds, err := Decode(bytes.NewReader(body), format)
	if err != nil {
		return nil, err
	}
	finalize(ds, s.URL, s.Logger)
	return ds, nil
}

func finalize(ds *Dataset, origin string, l *log.Logger) {
	for _, w := range ds.Normalize() {
		logger(l).Warn("dataset", "source", origin, "issue", w)
	}
	logger(l).Debug("dataset loaded", "source", origin, "years", len(ds.Years), "tech", len(ds.Tech))
}

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
