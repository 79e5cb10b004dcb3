// Package chip models the labeled visual units ("chips") that the layout
// engine places: one per tracked technology.
//
// A chip has an intrinsic base size (its rendered size before scaling), a
// scale factor assigned by the classification policy, a plane membership and
// a position. The layout core only reads and writes these plain fields; the
// presentation layer applies them to whatever visual element it owns.
package chip

import (
	"fmt"
	"math"
	"strings"
)

// Plane identifies one of the two layout regions.
type Plane int

const (
	// Inactive is the "all technologies" plane for chips unused in the selected year.
	Inactive Plane = iota
	// Active holds chips with usage > 0 in the selected year.
	Active
)

// Planes lists both planes in rendering order.
var Planes = []Plane{Active, Inactive}

func (p Plane) String() string {
	switch p {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	default:
		return fmt.Sprintf("plane(%d)", int(p))
	}
}

// ParsePlane parses "active" or "inactive" (also "all").
func ParsePlane(s string) (Plane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return Active, nil
	case "inactive", "all":
		return Inactive, nil
	}
	return Inactive, fmt.Errorf("unknown plane %q (must be 'active' or 'inactive')", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Plane) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Plane) UnmarshalText(b []byte) error {
	v, err := ParsePlane(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Item is one chip. X and Y are the top-left corner relative to the padded
// origin of the chip's current plane.
type Item struct {
	Name       string
	BaseWidth  float64
	BaseHeight float64
	Scale      float64
	Usage      int
	Plane      Plane
	X, Y       float64
}

// Size returns the effective rendered size (base size times scale). A
// non-positive scale is treated as 1.
func (it Item) Size() (w, h float64) {
	s := it.Scale
	if s <= 0 {
		s = 1
	}
	return it.BaseWidth * s, it.BaseHeight * s
}

// Area returns the effective rendered area.
func (it Item) Area() float64 {
	w, h := it.Size()
	return w * h
}

// RadiusPolicy selects how a chip's collision radius is derived from its size.
type RadiusPolicy int

const (
	// Diagonal uses half the diagonal. It fully covers pill and rectangle
	// corners and is the default.
	Diagonal RadiusPolicy = iota
	// MaxDimension uses half the larger side. It under-covers corners of
	// elongated chips.
	MaxDimension
)

func (p RadiusPolicy) String() string {
	if p == MaxDimension {
		return "max-dimension"
	}
	return "diagonal"
}

// ParseRadiusPolicy parses "diagonal" or "max-dimension".
func ParseRadiusPolicy(s string) (RadiusPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "diagonal":
		return Diagonal, nil
	case "max-dimension", "max", "maxdim":
		return MaxDimension, nil
	}
	return Diagonal, fmt.Errorf("unknown radius policy %q", s)
}

// Radius returns the collision radius for a w×h chip plus gap.
func (p RadiusPolicy) Radius(w, h, gap float64) float64 {
	if p == MaxDimension {
		return math.Max(w, h)/2 + gap
	}
	return math.Hypot(w, h)/2 + gap
}
