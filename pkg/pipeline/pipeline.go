// Package pipeline turns a dataset and a year into a laid-out scene.
//
// A run has three stages:
//
//  1. Classify: assign each technology to the active or inactive plane and
//     compute its scale from usage, density and plane width.
//  2. Layout: measure every chip, then place each plane's chips with the
//     plane's layout engine.
//  3. Render: encode the scene (JSON, YAML, CSV) or draw it (SVG, PNG, PDF).
//
// [Runner] executes the stages and memoizes deterministic results in a
// [cache.Cache]. The CLI, the HTTP server and the re-layout scheduler all
// go through a Runner so they produce the same scene for the same inputs.
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, logger)
//	res, err := runner.Execute(ctx, ds, pipeline.Options{
//	    Year:    2021,
//	    Formats: []string{pipeline.FormatSVG},
//	})
//	svg := res.Artifacts[pipeline.FormatSVG]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/techmap/pkg/cache"
	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/classify"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/scene"
	"github.com/matzehuels/techmap/pkg/theme"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWidth is the default width of both plane boxes in pixels.
	DefaultWidth = 960.0

	// DefaultActiveHeight is the default active plane height in pixels.
	DefaultActiveHeight = 440.0

	// DefaultInactiveHeight is the default inactive plane height in pixels.
	DefaultInactiveHeight = 360.0

	// DefaultPadding is the CSS-style padding of each plane box.
	DefaultPadding = 16.0

	// DefaultSafeMargin keeps packed chips off the inactive plane's edge.
	DefaultSafeMargin = 18.0

	// InactiveSeedOffset separates the inactive plane's seed from the
	// active plane's for the same year.
	InactiveSeedOffset = 999
)

// DefaultActiveAlgorithm lays out the active plane.
const DefaultActiveAlgorithm = layout.ForceSimulation

// DefaultInactiveAlgorithm lays out the inactive plane.
const DefaultInactiveAlgorithm = layout.SpiralPack

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatYAML: true,
	FormatCSV:  true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
}

// =============================================================================
// Options
// =============================================================================

// PlaneOptions configures the layout of one plane.
type PlaneOptions struct {
	Region        layout.Region    `json:"region"`
	Algorithm     layout.Algorithm `json:"algorithm"`
	Deterministic bool             `json:"deterministic"`
	SeedOffset    uint32           `json:"seed_offset,omitempty"`

	// Animate publishes intermediate force simulation frames when the
	// plane is driven by the scheduler. One-shot runs ignore it.
	Animate bool `json:"animate,omitempty"`

	// Layout is the engine configuration; nil selects
	// layout.DefaultConfig(Algorithm).
	Layout *layout.Config `json:"layout,omitempty"`
}

// Options contains all configuration for a pipeline run.
type Options struct {
	Year     int              `json:"year"`
	Active   PlaneOptions     `json:"active"`
	Inactive PlaneOptions     `json:"inactive"`
	Policy   *classify.Policy `json:"policy,omitempty"`

	// Render options
	Formats []string    `json:"formats,omitempty"`
	Theme   theme.Theme `json:"theme,omitempty"`
	Ticks   bool        `json:"ticks,omitempty"`
	Scale   float64     `json:"scale,omitempty"` // PNG pixel density

	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger   *log.Logger      `json:"-"`
	Measurer *chip.Measurer   `json:"-"`
	Now      func() time.Time `json:"-"`

	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	Scene     *scene.Scene
	Artifacts map[string][]byte
	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Active     int
	Inactive   int
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each stage.
type CacheInfo struct {
	SceneHit  bool
	RenderHit bool
}

// DefaultOptions returns options for year with every default applied.
func DefaultOptions(year int) Options {
	o := Options{Year: year}
	o.SetDefaults()
	return o
}

// DefaultPlane returns the default options for plane p.
func DefaultPlane(p chip.Plane) PlaneOptions {
	if p == chip.Active {
		return PlaneOptions{
			Region: layout.Region{
				Width:   DefaultWidth,
				Height:  DefaultActiveHeight,
				Padding: layout.Uniform(DefaultPadding),
			},
			Algorithm:     DefaultActiveAlgorithm,
			Deterministic: true,
		}
	}
	return PlaneOptions{
		Region: layout.Region{
			Width:      DefaultWidth,
			Height:     DefaultInactiveHeight,
			Padding:    layout.Uniform(DefaultPadding),
			SafeMargin: DefaultSafeMargin,
		},
		Algorithm:     DefaultInactiveAlgorithm,
		Deterministic: true,
		SeedOffset:    InactiveSeedOffset,
	}
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: json, yaml, csv, svg, png, pdf)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the plane's geometry, algorithm and engine configuration.
func (p PlaneOptions) Validate() error {
	if err := p.Region.Validate(); err != nil {
		return err
	}
	if !layout.Available(p.Algorithm) {
		return errors.New(errors.ErrCodeUnsupported, "layout algorithm %s is not available", p.Algorithm)
	}
	if p.Layout != nil {
		return p.Layout.Validate()
	}
	return nil
}

// Config returns the engine configuration in effect.
func (p PlaneOptions) Config() layout.Config {
	if p.Layout != nil {
		return *p.Layout
	}
	return layout.DefaultConfig(p.Algorithm)
}

// =============================================================================
// Options Methods
// =============================================================================

// SetDefaults fills unset fields. A zero PlaneOptions becomes the default
// plane for its side; a plane with only its region unset gets the default
// region.
func (o *Options) SetDefaults() {
	for _, side := range chip.Planes {
		p := o.plane(side)
		if *p == (PlaneOptions{}) {
			*p = DefaultPlane(side)
		}
		if p.Region == (layout.Region{}) {
			p.Region = DefaultPlane(side).Region
		}
		if p.Layout == nil {
			cfg := layout.DefaultConfig(p.Algorithm)
			p.Layout = &cfg
		}
	}
	if o.Policy == nil {
		p := classify.DefaultPolicy()
		o.Policy = &p
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatJSON}
	}
	if o.Theme == "" {
		o.Theme = theme.Default
	}
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateAndSetDefaults applies defaults and validates every stage.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := errors.ValidateYear(o.Year); err != nil {
		return err
	}
	if err := o.Active.Validate(); err != nil {
		return fmt.Errorf("active plane: %w", err)
	}
	if err := o.Inactive.Validate(); err != nil {
		return fmt.Errorf("inactive plane: %w", err)
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := theme.Validate(string(o.Theme)); err != nil {
		return err
	}
	if o.Measurer == nil {
		m, err := chip.DefaultMeasurer()
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "load label font")
		}
		o.Measurer = m
	}
	o.validated = true
	return nil
}

// PlaneOptions returns the options of plane p.
func (o *Options) PlaneOptions(p chip.Plane) PlaneOptions {
	return *o.plane(p)
}

// SetYear changes the year and forces revalidation.
func (o *Options) SetYear(year int) {
	o.Year = year
	o.validated = false
}

// SetPlaneSize changes the element box of plane p and forces
// revalidation. Padding and safe margin are kept.
func (o *Options) SetPlaneSize(p chip.Plane, w, h float64) {
	r := &o.plane(p).Region
	r.Width, r.Height = w, h
	o.validated = false
}

func (o *Options) plane(p chip.Plane) *PlaneOptions {
	if p == chip.Active {
		return &o.Active
	}
	return &o.Inactive
}

// Deterministic reports whether both planes use fixed seeds, which makes
// the whole scene cacheable.
func (o *Options) Deterministic() bool {
	return o.Active.Deterministic && o.Inactive.Deterministic
}

// Widths returns the plane widths the scaling policy keys on.
func (o *Options) Widths() classify.Widths {
	return classify.Widths{Active: o.Active.Region.Width, Inactive: o.Inactive.Region.Width}
}

type planeFingerprint struct {
	Algorithm  layout.Algorithm
	Padding    layout.Insets
	SafeMargin float64
	SeedOffset uint32
	Layout     layout.Config
}

func fingerprint(p PlaneOptions) planeFingerprint {
	return planeFingerprint{
		Algorithm:  p.Algorithm,
		Padding:    p.Region.Padding,
		SafeMargin: p.Region.SafeMargin,
		SeedOffset: p.SeedOffset,
		Layout:     p.Config(),
	}
}

// configHash fingerprints what feeds into a layout besides the dataset,
// the year, the seed and the region sizes, which are keyed separately.
func (o *Options) configHash() string {
	var fontSize float64
	if o.Measurer != nil {
		fontSize = o.Measurer.FontSize()
	}
	h, err := cache.HashJSON(struct {
		Active, Inactive planeFingerprint
		Policy           *classify.Policy
		FontSize         float64
	}{fingerprint(o.Active), fingerprint(o.Inactive), o.Policy, fontSize})
	if err != nil {
		return ""
	}
	return h
}

// SceneKeyOpts returns cache key options for a full scene.
func (o *Options) SceneKeyOpts() cache.SceneKeyOpts {
	return cache.SceneKeyOpts{
		Year:           o.Year,
		ActiveWidth:    o.Active.Region.Width,
		ActiveHeight:   o.Active.Region.Height,
		InactiveWidth:  o.Inactive.Region.Width,
		InactiveHeight: o.Inactive.Region.Height,
		ConfigHash:     o.configHash(),
	}
}

// PlaneKeyOpts returns cache key options for one plane laid out with seed.
func (o *Options) PlaneKeyOpts(p chip.Plane, seed uint32) cache.PlaneKeyOpts {
	po := o.PlaneOptions(p)
	return cache.PlaneKeyOpts{
		Year:       o.Year,
		Plane:      p.String(),
		Width:      po.Region.Width,
		Height:     po.Region.Height,
		Seed:       seed,
		ConfigHash: o.configHash(),
	}
}
