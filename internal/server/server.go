// Package server exposes scenes over HTTP.
//
// Routes:
//
//	GET  /healthz                           liveness and dataset summary
//	GET  /metrics                           Prometheus metrics (when enabled)
//	GET  /api/v1/years                      years and slider ticks (?width, ?light)
//	GET  /api/v1/dataset                    the normalized dataset
//	GET  /api/v1/scene/{year}               scene as JSON (?format=yaml|csv|svg|png|pdf)
//	GET  /api/v1/scene/{year}.{format}      same, format from the extension
//	GET  /api/v1/scene/{year}/frames        force simulation frames as server-sent events
//	GET  /api/v1/theme                      stored theme
//	PUT  /api/v1/theme                      store a theme, body {"theme": "light"}
//	POST /api/v1/theme/toggle               flip the stored theme
//
// Scene requests accept layout overrides as query parameters: active and
// inactive (algorithm names), width, theme, ticks and random.
package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/techmap/pkg/buildinfo"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/theme"
)

// Options configures a Server.
type Options struct {
	Runner *pipeline.Runner

	// Base returns the configured options for a year before query
	// overrides are applied.
	Base func(year int) (pipeline.Options, error)

	Themes theme.Store

	// Metrics enables /metrics and request metrics when set.
	Metrics *observability.PromHooks

	// FrameInterval paces server-sent animation frames.
	FrameInterval time.Duration

	Logger *log.Logger
}

// Server serves one dataset, which can be swapped while running.
type Server struct {
	opts   Options
	ds     atomic.Pointer[dataset.Dataset]
	router chi.Router
}

// New creates a server for ds.
func New(ds *dataset.Dataset, opts Options) *Server {
	if opts.Runner == nil {
		opts.Runner = pipeline.NewRunner(nil, nil, opts.Logger)
	}
	if opts.Base == nil {
		opts.Base = func(year int) (pipeline.Options, error) { return pipeline.DefaultOptions(year), nil }
	}
	if opts.Themes == nil {
		opts.Themes = &theme.MemoryStore{}
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Server{opts: opts}
	s.SetDataset(ds)
	s.router = s.routes()
	return s
}

// SetDataset replaces the served dataset. In-flight requests keep the one
// they started with.
func (s *Server) SetDataset(ds *dataset.Dataset) {
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	s.ds.Store(ds)
}

// Dataset returns the served dataset.
func (s *Server) Dataset() *dataset.Dataset { return s.ds.Load() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.health)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/years", s.years)
		api.Get("/dataset", s.dataset)

		api.Route("/scene/{year}", func(sr chi.Router) {
			sr.Get("/", s.scene)
			sr.Get("/frames", s.frames)
		})

		api.Get("/theme", s.getTheme)
		api.Put("/theme", s.putTheme)
		api.Post("/theme/toggle", s.toggleTheme)
	})

	return r
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": buildinfo.Version,
		"years":   len(ds.Years),
		"tech":    len(ds.Tech),
	})
}

func (s *Server) dataset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Dataset())
}

func (s *Server) getTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.opts.Themes.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: string(t)})
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (s *Server) putTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode body"))
		return
	}
	if err := s.opts.Themes.Set(r.Context(), theme.Theme(body.Theme)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	t, err := theme.Toggle(r.Context(), s.opts.Themes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: string(t)})
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status mapped from the error code. Server
// errors are logged; client errors are not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	if status >= 500 && !errors.Is(err, errors.ErrCodeUnsupported) {
		loggerFrom(r.Context(), s.opts.Logger).Error("request failed", "path", r.URL.Path, "err", err)
	}
	if r.Context().Err() != nil {
		return
	}
	writeJSON(w, status, errorBody{Code: code, Message: errors.UserMessage(err)})
}
