package layout

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SoftLimit is the area ratio up to which engines guarantee zero overlap.
// Beyond it, separation is best effort.
const SoftLimit = 0.6

// maxAreaRatio saturates the ratio for regions without content area.
const maxAreaRatio = 1e6

// Report summarizes the quality of a layout.
type Report struct {
	Items       int     `json:"items"`
	Overlaps    int     `json:"overlaps"`
	MaxOverlap  float64 `json:"max_overlap"`
	OutOfBounds int     `json:"out_of_bounds"`
	AreaRatio   float64 `json:"area_ratio"`
	MeanGap     float64 `json:"mean_gap"`
	GapStdDev   float64 `json:"gap_stddev"`
}

// Feasible reports whether the layout was under the soft limit, i.e.
// whether zero overlaps were guaranteed.
func (r Report) Feasible() bool { return r.AreaRatio <= SoftLimit }

// Clean reports whether the layout has no overlaps and nothing out of bounds.
func (r Report) Clean() bool { return r.Overlaps == 0 && r.OutOfBounds == 0 }

// AreaRatio returns the combined footprint of ps divided by the content area
// of region.
func AreaRatio(region Region, ps []Placement, m Metric) float64 {
	var sum float64
	for _, p := range ps {
		sum += m.Footprint(p)
	}
	w, h := region.Content()
	if w*h == 0 {
		if sum == 0 {
			return 0
		}
		return maxAreaRatio
	}
	return math.Min(sum/(w*h), maxAreaRatio)
}

// Check measures ps against region and m. MeanGap and GapStdDev describe the
// clearance from each placement to its nearest neighbour.
func Check(region Region, ps []Placement, m Metric) Report {
	w, h := region.Content()
	rep := Report{Items: len(ps), AreaRatio: AreaRatio(region, ps, m)}

	for _, p := range ps {
		if p.X < -epsilon || p.Y < -epsilon || p.X+p.W > w+epsilon || p.Y+p.H > h+epsilon {
			rep.OutOfBounds++
		}
	}

	if len(ps) < 2 {
		return rep
	}
	nearest := make([]float64, len(ps))
	for i := range nearest {
		nearest[i] = math.Inf(1)
	}
	for i := range ps {
		for j := i + 1; j < len(ps); j++ {
			d := m.Depth(ps[i], ps[j])
			if d > epsilon {
				rep.Overlaps++
				rep.MaxOverlap = math.Max(rep.MaxOverlap, d)
			}
			nearest[i] = math.Min(nearest[i], -d)
			nearest[j] = math.Min(nearest[j], -d)
		}
	}
	rep.MeanGap, rep.GapStdDev = stat.MeanStdDev(nearest, nil)
	return rep
}
