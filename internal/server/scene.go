package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/scene"
	"github.com/matzehuels/techmap/pkg/theme"
	"github.com/matzehuels/techmap/pkg/ticks"
)

var contentTypes = map[string]string{
	pipeline.FormatJSON: "application/json",
	pipeline.FormatYAML: "application/yaml",
	pipeline.FormatCSV:  "text/csv; charset=utf-8",
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatPNG:  "image/png",
	pipeline.FormatPDF:  "application/pdf",
}

func (s *Server) years(w http.ResponseWriter, r *http.Request) {
	ds := s.Dataset()
	q := r.URL.Query()

	width := pipeline.DefaultWidth
	if v := q.Get("width"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidGeometry, "width must be a positive number, got %q", v))
			return
		}
		width = f
	}
	light := q.Get("light") == "true" || q.Get("theme") == string(theme.Light)

	writeJSON(w, http.StatusOK, map[string]any{
		"years":  ds.Years,
		"latest": ds.Latest(),
		"ticks":  ticks.Labels(ds.Years, width, light),
	})
}

// sceneRequest is a parsed scene request.
type sceneRequest struct {
	year   int
	format string
	opts   pipeline.Options
}

// parseScene reads the year (with an optional format extension) from the
// path and applies query overrides to the configured options.
func (s *Server) parseScene(r *http.Request) (sceneRequest, error) {
	raw := chi.URLParam(r, "year")
	format := r.URL.Query().Get("format")
	if y, ext, ok := strings.Cut(raw, "."); ok {
		raw, format = y, ext
	}
	if format == "" {
		format = pipeline.FormatJSON
	}
	format = strings.ToLower(format)
	if err := pipeline.ValidateFormat(format); err != nil {
		return sceneRequest{}, err
	}

	year, err := strconv.Atoi(raw)
	if err != nil {
		return sceneRequest{}, errors.New(errors.ErrCodeInvalidInput, "invalid year %q", raw)
	}
	if err := errors.ValidateYear(year); err != nil {
		return sceneRequest{}, err
	}

	opts, err := s.opts.Base(year)
	if err != nil {
		return sceneRequest{}, err
	}
	if err := s.applyQuery(r, &opts); err != nil {
		return sceneRequest{}, err
	}
	opts.Formats = []string{format}
	opts.Logger = loggerFrom(r.Context(), s.opts.Logger)
	return sceneRequest{year: year, format: format, opts: opts}, nil
}

// applyQuery applies layout and drawing overrides from the query string.
func (s *Server) applyQuery(r *http.Request, opts *pipeline.Options) error {
	q := r.URL.Query()

	for _, p := range chip.Planes {
		v := q.Get(p.String())
		if v == "" {
			continue
		}
		alg, err := layout.ParseAlgorithm(v)
		if err != nil {
			return err
		}
		po := planeOf(opts, p)
		if po.Algorithm != alg {
			po.Algorithm = alg
			po.Layout = nil
		}
	}

	if v := q.Get("width"); v != "" {
		width, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidGeometry, "width must be a number, got %q", v)
		}
		opts.Active.Region.Width = width
		opts.Inactive.Region.Width = width
	}

	if v := q.Get("random"); v == "true" || v == "1" {
		opts.Active.Deterministic = false
		opts.Inactive.Deterministic = false
	}

	if v := q.Get("ticks"); v != "" {
		opts.Ticks = v == "true" || v == "1"
	}

	switch v := q.Get("theme"); v {
	case "":
	case "saved":
		t, err := s.opts.Themes.Get(r.Context())
		if err != nil {
			return err
		}
		opts.Theme = t
	default:
		if err := theme.Validate(v); err != nil {
			return err
		}
		opts.Theme = theme.Theme(v)
	}
	return nil
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseScene(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.opts.Runner.Execute(r.Context(), s.Dataset(), req.opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cache := "miss"
	if res.CacheInfo.SceneHit {
		cache = "hit"
	}
	w.Header().Set("Content-Type", contentTypes[req.format])
	w.Header().Set("X-Cache", cache)
	w.Header().Set("X-Run-ID", res.Scene.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[req.format])
}

// frames streams a plane's layout frame by frame as server-sent events.
// Planes that do not animate send their final frame only.
func (s *Server) frames(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseScene(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	plane := chip.Active
	if v := r.URL.Query().Get("plane"); v != "" {
		if plane, err = chip.ParsePlane(v); err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "plane"))
			return
		}
	}
	planeOf(&req.opts, plane).Animate = true

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "streaming is not supported"))
		return
	}

	an, err := s.opts.Runner.Animate(r.Context(), s.Dataset(), plane, req.opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	tick := time.NewTicker(s.opts.FrameInterval)
	defer tick.Stop()
	for {
		f := an.Advance(r.Context())
		data, err := json.Marshal(frameEvent{
			Plane: f.Plane,
			Year:  f.Year,
			Steps: f.View.Steps,
			Final: f.Final,
			Chips: f.View.Chips,
		})
		if err != nil {
			return
		}
		event := "frame"
		if f.Final {
			event = "final"
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
		if f.Final {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
		}
	}
}

func planeOf(opts *pipeline.Options, p chip.Plane) *pipeline.PlaneOptions {
	if p == chip.Active {
		return &opts.Active
	}
	return &opts.Inactive
}

// frameEvent is the payload of one server-sent frame.
type frameEvent struct {
	Plane chip.Plane   `json:"plane"`
	Year  int          `json:"year"`
	Steps int          `json:"steps"`
	Final bool         `json:"final"`
	Chips []scene.Chip `json:"chips"`
}
