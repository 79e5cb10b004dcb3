package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/techmap/pkg/cache"
	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/classify"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/rng"
	"github.com/matzehuels/techmap/pkg/scene"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner holds no per-run state, so multiple goroutines can use one
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// selects the DefaultKeyer and a nil logger the default logger.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs classify → layout → render.
func (r *Runner) Execute(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}
	start := time.Now()
	s, hit, err := r.ComputeWithCacheInfo(ctx, ds, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Scene = s
	result.CacheInfo.SceneHit = hit
	result.Stats.LayoutTime = time.Since(start)
	if v := s.Plane(chip.Active); v != nil {
		result.Stats.Active = len(v.Chips)
	}
	if v := s.Plane(chip.Inactive); v != nil {
		result.Stats.Inactive = len(v.Chips)
	}
	opts.Logger.Info("computed layout",
		"year", opts.Year,
		"active", result.Stats.Active,
		"inactive", result.Stats.Inactive,
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	start = time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, s, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.CacheInfo.RenderHit = renderHit
	result.Stats.RenderTime = time.Since(start)
	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// orEmpty maps a missing dataset to an empty one, which lays out as two
// empty planes.
func orEmpty(ds *dataset.Dataset) *dataset.Dataset {
	if ds == nil {
		return &dataset.Dataset{}
	}
	return ds
}

// Compute lays out both planes for opts.Year. A nil dataset yields an
// empty scene.
func (r *Runner) Compute(ctx context.Context, ds *dataset.Dataset, opts Options) (*scene.Scene, error) {
	s, _, err := r.ComputeWithCacheInfo(ctx, ds, opts)
	return s, err
}

// ComputeWithCacheInfo lays out both planes and reports whether the scene
// came from the cache. Only scenes with both planes deterministic are
// cached.
func (r *Runner) ComputeWithCacheInfo(ctx context.Context, ds *dataset.Dataset, opts Options) (*scene.Scene, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	ds = orEmpty(ds)

	cacheable := opts.Deterministic()
	var key string
	if cacheable {
		key = r.Keyer.SceneKey(ds.Hash(), opts.SceneKeyOpts())
		if s, ok := r.cachedScene(ctx, key, opts); ok {
			return s, true, nil
		}
	}

	a := classify.Classify(ds, opts.Year, opts.Widths(), *opts.Policy)
	s := &scene.Scene{
		RunID: uuid.NewString(),
		Year:  opts.Year,
		Years: append([]int(nil), ds.Years...),
		Theme: string(opts.Theme),
	}
	for _, p := range chip.Planes {
		v, err := r.layoutPlane(ctx, a, p, opts)
		if err != nil {
			return nil, false, err
		}
		s.SetPlane(v)
	}

	if cacheable {
		r.storeScene(ctx, key, s)
	}
	return s, false, nil
}

// Plane recomputes a single plane, as a resize of one plane box requires.
// Classification still sees the whole dataset since density depends on
// the active count.
func (r *Runner) Plane(ctx context.Context, ds *dataset.Dataset, plane chip.Plane, opts Options) (scene.PlaneView, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return scene.PlaneView{}, err
	}
	ds = orEmpty(ds)

	po := opts.PlaneOptions(plane)
	seed := r.seed(plane, opts)
	var key string
	if po.Deterministic {
		key = r.Keyer.PlaneKey(ds.Hash(), opts.PlaneKeyOpts(plane, seed))
		if v, ok := r.cachedPlane(ctx, key, opts); ok {
			return v, nil
		}
	}

	a := classify.Classify(ds, opts.Year, opts.Widths(), *opts.Policy)
	v, err := r.layoutPlane(ctx, a, plane, opts)
	if err != nil {
		return scene.PlaneView{}, err
	}
	if po.Deterministic {
		r.storePlane(ctx, key, v)
	}
	return v, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// seed returns the seed plane uses for opts.Year.
func (r *Runner) seed(plane chip.Plane, opts Options) uint32 {
	po := opts.PlaneOptions(plane)
	return rng.Seed(po.Deterministic, uint32(opts.Year)+po.SeedOffset, opts.Now())
}

// nodes measures the assigned items and returns them as layout nodes.
func nodes(items []classify.Assigned, m *chip.Measurer) []layout.Node {
	out := make([]layout.Node, len(items))
	for i, a := range items {
		it := m.Item(a.Name)
		it.Scale = a.Scale
		it.Usage = a.Usage
		it.Plane = a.Plane
		w, h := it.Size()
		out[i] = layout.Node{ID: a.Name, W: w, H: h}
	}
	return out
}

// layoutPlane runs plane's engine over its share of a.
func (r *Runner) layoutPlane(ctx context.Context, a classify.Assignment, plane chip.Plane, opts Options) (scene.PlaneView, error) {
	po := opts.PlaneOptions(plane)
	items := a.On(plane)
	ns := nodes(items, opts.Measurer)
	seed := r.seed(plane, opts)

	eng, err := layout.New(po.Algorithm, po.Config())
	if err != nil {
		opts.Logger.Error("layout engine unavailable", "plane", plane, "algorithm", po.Algorithm, "err", err)
		return scene.PlaneView{}, err
	}

	hooks := observability.Layout()
	hooks.OnLayoutStart(ctx, plane.String(), po.Algorithm.String(), len(ns))
	start := time.Now()
	res, err := eng.Layout(ctx, po.Region, ns, seed)
	hooks.OnLayoutComplete(ctx, observability.LayoutEvent{
		Plane:     plane.String(),
		Algorithm: po.Algorithm.String(),
		Items:     len(ns),
		Steps:     res.Steps,
		Fallbacks: res.Fallbacks,
		Overlaps:  res.Report.Overlaps,
		Duration:  time.Since(start),
		Err:       err,
	})
	if err != nil {
		return scene.PlaneView{}, err
	}

	opts.Logger.Debug("layout",
		"plane", plane,
		"algorithm", po.Algorithm,
		"items", len(ns),
		"seed", seed,
		"steps", res.Steps,
		"area_ratio", fmt.Sprintf("%.2f", res.Report.AreaRatio))
	if res.Fallbacks > 0 {
		opts.Logger.Warn("raster fallback used", "plane", plane, "items", res.Fallbacks)
	}
	if !res.Report.Feasible() {
		opts.Logger.Warn("plane overfull, overlap may remain",
			"plane", plane, "area_ratio", fmt.Sprintf("%.2f", res.Report.AreaRatio))
	}

	return view(plane, po, seed, items, res), nil
}

// view converts an engine result into a PlaneView. Chip coordinates move
// from content space to the padded origin by adding the safe margin.
func view(plane chip.Plane, po PlaneOptions, seed uint32, items []classify.Assigned, res layout.Result) scene.PlaneView {
	v := scene.PlaneView{
		Plane:     plane,
		Region:    po.Region,
		Algorithm: po.Algorithm.String(),
		Seed:      seed,
		Chips:     make([]scene.Chip, len(items)),
		Report:    res.Report,
		Steps:     res.Steps,
		Fallbacks: res.Fallbacks,
	}
	for i, it := range items {
		p := res.Placements[i]
		v.Chips[i] = scene.Chip{
			Name:     it.Name,
			Usage:    it.Usage,
			Progress: it.Progress,
			Scale:    it.Scale,
			X:        po.Region.SafeMargin + p.X,
			Y:        po.Region.SafeMargin + p.Y,
			W:        p.W,
			H:        p.H,
		}
	}
	return v
}

// =============================================================================
// Cache helpers
// =============================================================================

func (r *Runner) cachedScene(ctx context.Context, key string, opts Options) (*scene.Scene, bool) {
	if opts.Refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "scene")
		return nil, false
	}
	s, err := scene.Unmarshal(data)
	if err != nil {
		opts.Logger.Debug("discarding unreadable cached scene", "err", err)
		observability.Cache().OnCacheMiss(ctx, "scene")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "scene")
	return s, true
}

func (r *Runner) storeScene(ctx context.Context, key string, s *scene.Scene) {
	data, err := scene.Marshal(s)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLScene); err == nil {
		observability.Cache().OnCacheSet(ctx, "scene", len(data))
	}
}

func (r *Runner) cachedPlane(ctx context.Context, key string, opts Options) (scene.PlaneView, bool) {
	if opts.Refresh {
		return scene.PlaneView{}, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "plane")
		return scene.PlaneView{}, false
	}
	v, err := scene.UnmarshalPlane(data)
	if err != nil {
		observability.Cache().OnCacheMiss(ctx, "plane")
		return scene.PlaneView{}, false
	}
	observability.Cache().OnCacheHit(ctx, "plane")
	return v, true
}

func (r *Runner) storePlane(ctx context.Context, key string, v scene.PlaneView) {
	data, err := scene.MarshalPlane(v)
	if err != nil {
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLPlane); err == nil {
		observability.Cache().OnCacheSet(ctx, "plane", len(data))
	}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
