package layout

import (
	"math"

	"github.com/matzehuels/techmap/pkg/chip"
)

const (
	// epsilon is the tolerance for overlap and bounds checks.
	epsilon = 1e-6

	// clearance is how far past contact separate pushes a pair, so that
	// chains of neighbours do not nudge each other back into contact.
	clearance = 0.01
)

// A Metric decides when two placements are too close.
type Metric interface {
	// Depth returns the penetration depth of a and b. Positive means overlap.
	Depth(a, b Placement) float64
	// Separation returns the displacement of b, away from a, that clears
	// the current penetration.
	Separation(a, b Placement) (dx, dy float64)
	// Footprint returns the area a placement claims for the area ratio.
	Footprint(p Placement) float64
}

// BoxMetric treats placements as axis-aligned boxes that must keep Gap
// between them on at least one axis.
type BoxMetric struct {
	Gap float64
}

// Depth implements Metric.
func (m BoxMetric) Depth(a, b Placement) float64 {
	ox := math.Min(a.X+a.W+m.Gap-b.X, b.X+b.W+m.Gap-a.X)
	oy := math.Min(a.Y+a.H+m.Gap-b.Y, b.Y+b.H+m.Gap-a.Y)
	return math.Min(ox, oy)
}

// Separation implements Metric. It resolves along the shallower axis.
func (m BoxMetric) Separation(a, b Placement) (dx, dy float64) {
	ox := math.Min(a.X+a.W+m.Gap-b.X, b.X+b.W+m.Gap-a.X)
	oy := math.Min(a.Y+a.H+m.Gap-b.Y, b.Y+b.H+m.Gap-a.Y)
	ax, ay := a.Center()
	bx, by := b.Center()
	if ox <= oy {
		if bx < ax {
			return -ox, 0
		}
		return ox, 0
	}
	if by < ay {
		return 0, -oy
	}
	return 0, oy
}

// Footprint implements Metric with the box grown by Gap on both axes,
// which is the area a box claims when tiled with its neighbours.
func (m BoxMetric) Footprint(p Placement) float64 { return (p.W + m.Gap) * (p.H + m.Gap) }

// CircleMetric treats placements as collision circles whose radius comes
// from the radius policy plus Gap. Two circles are clear when their centers
// are at least the sum of the radii apart.
type CircleMetric struct {
	Policy chip.RadiusPolicy
	Gap    float64
}

// Radius returns the collision radius of p.
func (m CircleMetric) Radius(p Placement) float64 {
	return m.Policy.Radius(p.W, p.H, m.Gap)
}

// Depth implements Metric.
func (m CircleMetric) Depth(a, b Placement) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return m.Radius(a) + m.Radius(b) - math.Hypot(bx-ax, by-ay)
}

// Separation implements Metric. Coincident centers separate along +x.
func (m CircleMetric) Separation(a, b Placement) (dx, dy float64) {
	ax, ay := a.Center()
	bx, by := b.Center()
	vx, vy := bx-ax, by-ay
	d := math.Hypot(vx, vy)
	depth := m.Radius(a) + m.Radius(b) - d
	if d == 0 {
		return depth, 0
	}
	return vx / d * depth, vy / d * depth
}

// Footprint implements Metric with the collision disc area.
func (m CircleMetric) Footprint(p Placement) float64 {
	r := m.Radius(p)
	return math.Pi * r * r
}
