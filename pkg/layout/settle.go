package layout

import "math"

// settle resolves residual overlaps pairwise, clamping after every move.
// It stops after passes rounds or once a round moves nothing, and returns
// the number of rounds run.
func settle(ps []Placement, w, h float64, m Metric, passes int) int {
	for pass := 0; pass < passes; pass++ {
		moved := false
		for i := range ps {
			for j := i + 1; j < len(ps); j++ {
				if separate(&ps[i], &ps[j], w, h, m) {
					moved = true
				}
			}
		}
		if !moved {
			return pass
		}
	}
	return passes
}

// separate pushes a and b apart by half the penetration each, plus
// clearance. When a wall absorbs one side, the other side takes the
// remainder.
func separate(a, b *Placement, w, h float64, m Metric) bool {
	d := m.Depth(*a, *b)
	if d <= epsilon {
		return false
	}
	dx, dy := m.Separation(*a, *b)
	k := (d + clearance) / d
	dx, dy = dx*k, dy*k

	a.X, a.Y = a.X-dx/2, a.Y-dy/2
	b.X, b.Y = b.X+dx/2, b.Y+dy/2
	clampPlacement(a, w, h)
	clampPlacement(b, w, h)

	for _, mover := range []*Placement{b, a} {
		d = m.Depth(*a, *b)
		if d <= epsilon {
			break
		}
		dx, dy = m.Separation(*a, *b)
		k = (d + clearance) / d
		if mover == a {
			k = -k
		}
		mover.X += dx * k
		mover.Y += dy * k
		clampPlacement(mover, w, h)
	}
	return true
}

func clampPlacement(p *Placement, w, h float64) {
	p.X = clampStart(p.X, p.W, w)
	p.Y = clampStart(p.Y, p.H, h)
}

// centerCluster translates all placements so their bounding box is centered
// in the w×h area. An axis on which the cluster is larger than the area is
// anchored at the origin instead.
func centerCluster(ps []Placement, w, h float64) {
	if len(ps) == 0 {
		return
	}
	minL, minT := math.Inf(1), math.Inf(1)
	maxR, maxB := math.Inf(-1), math.Inf(-1)
	for _, p := range ps {
		minL = math.Min(minL, p.X)
		minT = math.Min(minT, p.Y)
		maxR = math.Max(maxR, p.X+p.W)
		maxB = math.Max(maxB, p.Y+p.H)
	}
	clusterW, clusterH := maxR-minL, maxB-minT

	dx := -minL
	if clusterW <= w {
		dx = (w-clusterW)/2 - minL
	}
	dy := -minT
	if clusterH <= h {
		dy = (h-clusterH)/2 - minT
	}
	for i := range ps {
		ps[i].X += dx
		ps[i].Y += dy
	}
	clampAll(ps, w, h)
}
