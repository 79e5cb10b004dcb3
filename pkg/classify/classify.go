// Package classify assigns every technology a plane and a scale for a year.
//
// A technology is active when its usage for the year is above zero.
// Inactive chips get a responsive constant scale that depends only on the
// width of the inactive plane. Active chips are sized by usage: the usage
// maps linearly to a base scale, a density discount shrinks chips when many
// are active at once, the result is capped, and finally a responsive
// multiplier for the active plane's width is applied.
package classify

import (
	"math"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/dataset"
)

// Breakpoint maps widths up to MaxWidth (inclusive) to Scale.
type Breakpoint struct {
	MaxWidth float64 `toml:"max_width" json:"max_width"`
	Scale    float64 `toml:"scale" json:"scale"`
}

// Breakpoints is an ascending list of width breakpoints. Widths beyond the
// last breakpoint use Default.
type Breakpoints struct {
	Steps   []Breakpoint `toml:"steps" json:"steps"`
	Default float64      `toml:"default" json:"default"`
}

// At returns the scale for width.
func (b Breakpoints) At(width float64) float64 {
	for _, s := range b.Steps {
		if width <= s.MaxWidth {
			return s.Scale
		}
	}
	return b.Default
}

// DensityStep applies Factor when more than Above chips are active.
type DensityStep struct {
	Above  int     `toml:"above" json:"above"`
	Factor float64 `toml:"factor" json:"factor"`
}

// Policy holds every constant of the scaling model.
type Policy struct {
	InactiveScale Breakpoints `toml:"inactive_scale"`
	ActiveScale   Breakpoints `toml:"active_scale"`
	// Density steps are checked in order; the first match wins.
	Density []DensityStep `toml:"density"`
	// BaseMin + usage/10 * BaseRange gives the base scale.
	BaseMin   float64 `toml:"base_min"`
	BaseRange float64 `toml:"base_range"`
	// Cap limits the density-adjusted scale before the plane multiplier.
	Cap float64 `toml:"cap"`
	// InactiveCap, when positive, sizes inactive chips as
	// min(densityScaled(0), InactiveCap) instead of by width.
	InactiveCap float64 `toml:"inactive_cap"`
}

// DefaultPolicy returns the standard scaling constants.
func DefaultPolicy() Policy {
	return Policy{
		InactiveScale: Breakpoints{
			Steps:   []Breakpoint{{420, 0.72}, {600, 0.80}, {900, 0.90}},
			Default: 1.00,
		},
		ActiveScale: Breakpoints{
			Steps:   []Breakpoint{{420, 0.82}, {600, 0.88}, {900, 0.94}},
			Default: 1.00,
		},
		Density:   []DensityStep{{14, 0.70}, {10, 0.78}, {7, 0.86}},
		BaseMin:   0.75,
		BaseRange: 1.35,
		Cap:       1.55,
	}
}

// DensityFactor returns the discount for activeCount simultaneously active chips.
func (p Policy) DensityFactor(activeCount int) float64 {
	for _, s := range p.Density {
		if activeCount > s.Above {
			return s.Factor
		}
	}
	return 1
}

// Scaled returns the capped, density-adjusted scale for usage before the
// plane multiplier.
func (p Policy) Scaled(usage int, density float64) float64 {
	base := p.BaseMin + float64(usage)/dataset.MaxUsage*p.BaseRange
	return math.Min(base*density, p.Cap)
}

// Widths are the current widths of the two plane elements.
type Widths struct {
	Active   float64
	Inactive float64
}

// Assigned is the classification of one technology.
type Assigned struct {
	Name  string     `json:"name"`
	Usage int        `json:"usage"`
	Plane chip.Plane `json:"plane"`
	Scale float64    `json:"scale"`
	// Progress is the usage as a percentage for the progress bar.
	Progress int `json:"progress"`
}

// Assignment is the classification of a whole dataset for one year.
type Assignment struct {
	Year        int        `json:"year"`
	ActiveCount int        `json:"active_count"`
	Density     float64    `json:"density"`
	Items       []Assigned `json:"items"`
}

// Active returns the active items in dataset order.
func (a Assignment) Active() []Assigned { return a.filter(chip.Active) }

// Inactive returns the inactive items in dataset order.
func (a Assignment) Inactive() []Assigned { return a.filter(chip.Inactive) }

// On returns the items assigned to plane.
func (a Assignment) On(plane chip.Plane) []Assigned { return a.filter(plane) }

func (a Assignment) filter(p chip.Plane) []Assigned {
	var out []Assigned
	for _, it := range a.Items {
		if it.Plane == p {
			out = append(out, it)
		}
	}
	return out
}

// Classify assigns plane and scale to every technology in ds for year. An
// empty dataset yields an empty assignment. The result depends only on its
// inputs, so repeated calls agree.
func Classify(ds *dataset.Dataset, year int, widths Widths, p Policy) Assignment {
	a := Assignment{Year: year, Density: 1}
	if ds == nil {
		return a
	}

	for _, t := range ds.Tech {
		if t.Usage(year) > 0 {
			a.ActiveCount++
		}
	}
	a.Density = p.DensityFactor(a.ActiveCount)
	activeMul := p.ActiveScale.At(widths.Active)
	inactiveScale := p.InactiveScale.At(widths.Inactive)
	if p.InactiveCap > 0 {
		inactiveScale = math.Min(p.Scaled(0, a.Density), p.InactiveCap)
	}

	a.Items = make([]Assigned, 0, len(ds.Tech))
	for _, t := range ds.Tech {
		usage := t.Usage(year)
		it := Assigned{Name: t.Name, Usage: usage, Progress: min(100, usage*10)}
		if usage > 0 {
			it.Plane = chip.Active
			it.Scale = p.Scaled(usage, a.Density) * activeMul
		} else {
			it.Plane = chip.Inactive
			it.Scale = inactiveScale
		}
		a.Items = append(a.Items, it)
	}
	return a
}
