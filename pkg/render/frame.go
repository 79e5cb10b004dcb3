package render

import (
	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/scene"
	"github.com/matzehuels/techmap/pkg/theme"
	"github.com/matzehuels/techmap/pkg/ticks"
)

const (
	margin      = 24.0
	headerH     = 56.0
	planeGap    = 28.0
	titleH      = 22.0
	tickRowH    = 44.0
	barH        = 3.0
	minFrameW   = 320.0
	labelSize   = chip.DefaultFontSize
	titleSize   = 13.0
	headingSize = 28.0
)

type options struct {
	theme theme.Theme
	ticks bool
	scale float64
}

// Option configures rendering.
type Option func(*options)

// WithTheme selects the colour theme; the default is dark.
func WithTheme(t theme.Theme) Option { return func(o *options) { o.theme = t } }

// WithTicks draws the year slider track under the planes.
func WithTicks() Option { return func(o *options) { o.ticks = true } }

// WithScale sets the PNG pixel density.
func WithScale(s float64) Option { return func(o *options) { o.scale = s } }

func newOptions(opts []Option) options {
	o := options{theme: theme.Default, scale: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scale <= 0 {
		o.scale = 1
	}
	return o
}

// box is a plane box in frame coordinates.
type box struct {
	view  *scene.PlaneView
	title string
	x, y  float64
	w, h  float64
}

// origin returns where chip coordinates start: the padded origin.
func (b box) origin() (x, y float64) {
	return b.x + b.view.Region.Padding.Left, b.y + b.view.Region.Padding.Top
}

// frame is the shared geometry of a rendered scene.
type frame struct {
	w, h    float64
	boxes   []box
	trackX  float64
	trackY  float64
	trackW  float64
	ticks   []ticks.Tick
	palette theme.Palette
}

var planeTitles = map[chip.Plane]string{
	chip.Active:   "In use",
	chip.Inactive: "All technologies",
}

func newFrame(s *scene.Scene, opts options) frame {
	f := frame{w: minFrameW, palette: opts.theme.Palette()}
	for _, p := range chip.Planes {
		if v := s.Plane(p); v != nil {
			f.w = max(f.w, v.Region.Width+2*margin)
		}
	}

	y := headerH
	for _, p := range chip.Planes {
		v := s.Plane(p)
		if v == nil {
			continue
		}
		y += titleH
		f.boxes = append(f.boxes, box{view: v, title: planeTitles[p], x: margin, y: y, w: v.Region.Width, h: v.Region.Height})
		y += v.Region.Height + planeGap
	}

	bottom := y - planeGap
	if len(f.boxes) == 0 {
		bottom = headerH
	}
	if opts.ticks && len(s.Years) > 0 {
		f.trackX = margin
		f.trackW = f.w - 2*margin
		f.trackY = bottom + 16
		f.ticks = ticks.Labels(s.Years, f.trackW, opts.theme.IsLight())
		bottom = f.trackY + tickRowH
	}
	f.h = bottom + margin
	return f
}

// tickX returns the x position of tick i of n along the track.
func (f frame) tickX(i, n int) float64 {
	if n <= 1 {
		return f.trackX + f.trackW/2
	}
	return f.trackX + f.trackW*float64(i)/float64(n-1)
}

// chipFontSize scales the label with the chip.
func chipFontSize(c scene.Chip) float64 {
	s := c.Scale
	if s <= 0 {
		s = 1
	}
	return labelSize * s
}
