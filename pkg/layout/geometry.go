package layout

import (
	"math"

	"github.com/matzehuels/techmap/pkg/errors"
)

// Insets are padding widths on each side of a region.
type Insets struct {
	Top    float64 `json:"top" toml:"top"`
	Right  float64 `json:"right" toml:"right"`
	Bottom float64 `json:"bottom" toml:"bottom"`
	Left   float64 `json:"left" toml:"left"`
}

// Uniform returns insets of v on every side.
func Uniform(v float64) Insets {
	return Insets{Top: v, Right: v, Bottom: v, Left: v}
}

// Region is the element box of a plane as measured by the presentation layer.
type Region struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Padding    Insets  `json:"padding"`
	SafeMargin float64 `json:"safe_margin"`
}

// Content returns the placeable width and height. It is never negative.
func (r Region) Content() (w, h float64) {
	w = r.Width - r.Padding.Left - r.Padding.Right - 2*r.SafeMargin
	h = r.Height - r.Padding.Top - r.Padding.Bottom - 2*r.SafeMargin
	return math.Max(0, w), math.Max(0, h)
}

// Origin returns the offset of the content area inside the element box.
func (r Region) Origin() (x, y float64) {
	return r.Padding.Left + r.SafeMargin, r.Padding.Top + r.SafeMargin
}

// Validate rejects non-finite or negative geometry.
func (r Region) Validate() error {
	vals := []float64{r.Width, r.Height, r.Padding.Top, r.Padding.Right, r.Padding.Bottom, r.Padding.Left, r.SafeMargin}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.New(errors.ErrCodeInvalidGeometry, "invalid region %+v", r)
		}
	}
	return nil
}

// Node is an item to place: its identity and effective (scaled) size.
type Node struct {
	ID string
	W  float64
	H  float64
}

// Placement is a placed node. X and Y are the top-left corner in content
// coordinates.
type Placement struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// Center returns the placement's center point.
func (p Placement) Center() (x, y float64) {
	return p.X + p.W/2, p.Y + p.H/2
}

func validateNodes(nodes []Node) error {
	for _, n := range nodes {
		if math.IsNaN(n.W) || math.IsNaN(n.H) || math.IsInf(n.W, 0) || math.IsInf(n.H, 0) || n.W < 0 || n.H < 0 {
			return errors.New(errors.ErrCodeInvalidGeometry, "invalid size %vx%v for %q", n.W, n.H, n.ID)
		}
	}
	return nil
}

// clampStart keeps an extent of size inside [0,limit]. Oversized extents are
// pinned to 0.
func clampStart(v, size, limit float64) float64 {
	return math.Max(0, math.Min(limit-size, v))
}

func clampAll(ps []Placement, w, h float64) {
	for i := range ps {
		ps[i].X = clampStart(ps[i].X, ps[i].W, w)
		ps[i].Y = clampStart(ps[i].Y, ps[i].H, h)
	}
}
