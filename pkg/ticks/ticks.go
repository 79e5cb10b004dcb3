// Package ticks thins the year labels under the slider so they fit the
// track. Years that do not get a label are shown as dots.
package ticks

import "math"

// Pixel budget per label. The light theme renders labels wider.
const (
	PxPerLabelDark  = 68
	PxPerLabelLight = 78

	MinLabels = 4
	MaxLabels = 12
)

// Tick is one year on the slider track.
type Tick struct {
	Year  int  `json:"year"`
	Label bool `json:"label"`
}

// Target returns how many labels fit a track of width px.
func Target(width float64, light bool) int {
	px := float64(PxPerLabelDark)
	if light {
		px = PxPerLabelLight
	}
	n := int(math.Floor(width / px))
	return max(MinLabels, min(MaxLabels, n))
}

// Labels returns one tick per year. When every year fits, all are labels;
// otherwise the first, the last and every step-th year are, with step
// chosen so that about Target labels show.
func Labels(years []int, width float64, light bool) []Tick {
	out := make([]Tick, len(years))
	for i, y := range years {
		out[i] = Tick{Year: y, Label: true}
	}
	target := Target(width, light)
	if target >= len(years) {
		return out
	}

	step := max(1, int(math.Ceil(float64(len(years)-1)/float64(target-1))))
	last := len(years) - 1
	for i := range out {
		out[i].Label = i == 0 || i == last || i%step == 0
	}
	return out
}

// Count returns the number of labelled ticks.
func Count(ts []Tick) int {
	n := 0
	for _, t := range ts {
		if t.Label {
			n++
		}
	}
	return n
}
