package layout

import (
	"context"
	"math"
	"sort"

	"github.com/matzehuels/techmap/pkg/rng"
)

type spiralEngine struct {
	cfg Config
}

// Layout implements Engine.
func (e *spiralEngine) Layout(ctx context.Context, region Region, nodes []Node, seed uint32) (Result, error) {
	if err := prepare(ctx, region, nodes); err != nil {
		return Result{}, err
	}
	if len(nodes) == 0 {
		return Result{Report: Check(region, nil, e.metric())}, nil
	}

	w, h := region.Content()
	src := rng.New(seed)
	order := byAreaDesc(nodes)

	var (
		best      []Placement
		bestOK    []bool
		bestCount = -1
		attempts  int
	)
	for attempt := 0; attempt <= e.cfg.Spiral.Restarts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		attempts++
		ps, ok, n := e.scatter(src, w, h, nodes, order)
		if n == len(nodes) {
			return e.result(region, ps, attempts, 0), nil
		}
		if n > bestCount {
			best, bestOK, bestCount = ps, ok, n
		}
	}

	if e.cfg.Spiral.Shelf {
		orders := [][]int{order, byHeightDesc(nodes)}
		for _, ord := range orders {
			if ps, ok := e.shelf(src, w, h, nodes, ord); ok {
				return e.result(region, ps, attempts, 0), nil
			}
		}
		for _, ord := range orders {
			if ps, ok := e.corner(w, h, nodes, ord); ok {
				centerCluster(ps, w, h)
				return e.result(region, ps, attempts, 0), nil
			}
		}
	}

	fallbacks := 0
	for k, idx := range order {
		if bestOK[idx] {
			continue
		}
		n := nodes[idx]
		best[idx].X = 8 + math.Mod(float64(k*17), math.Max(20, w-n.W-16))
		best[idx].Y = 8 + math.Mod(float64(k*23), math.Max(20, h-n.H-16))
		fallbacks++
	}
	return e.result(region, best, attempts, fallbacks), nil
}

func (e *spiralEngine) metric() Metric { return e.cfg.Metric(SpiralPack) }

func (e *spiralEngine) result(region Region, ps []Placement, steps, fallbacks int) Result {
	rep := finish(region, ps, e.cfg, e.metric())
	return Result{Placements: ps, Report: rep, Steps: steps, Fallbacks: fallbacks}
}

// scatter runs one packing attempt in area order. For each node it draws
// random anchors, then walks an outward spiral around each anchor until a
// candidate clears every placed box. Nodes without a slot are left unplaced.
func (e *spiralEngine) scatter(src *rng.Source, w, h float64, nodes []Node, order []int) ([]Placement, []bool, int) {
	sc := e.cfg.Spiral
	ps := make([]Placement, len(nodes))
	ok := make([]bool, len(nodes))
	placed := make([]Placement, 0, len(nodes))
	ax := make([]float64, sc.Anchors)
	ay := make([]float64, sc.Anchors)

	for _, idx := range order {
		n := nodes[idx]
		ps[idx] = Placement{ID: n.ID, W: n.W, H: n.H}
		for a := range ax {
			ax[a] = src.Float64() * math.Max(0, w-n.W)
			ay[a] = src.Float64() * math.Max(0, h-n.H)
		}

	search:
		for a := range ax {
			for r := 0; r < sc.Rings; r++ {
				angle := float64(r)*sc.AngleStep + src.Float64()*sc.Jitter
				radius := float64(r) * sc.Step
				x := ax[a] + math.Cos(angle)*radius
				y := ay[a] + math.Sin(angle)*radius
				y += src.Jitter(sc.VerticalScatter)

				cand := Placement{ID: n.ID, X: clampStart(x, n.W, w), Y: clampStart(y, n.H, h), W: n.W, H: n.H}
				if e.clear(cand, placed) {
					ps[idx] = cand
					ok[idx] = true
					placed = append(placed, cand)
					break search
				}
			}
		}
	}
	return ps, ok, len(placed)
}

func (e *spiralEngine) clear(cand Placement, placed []Placement) bool {
	m := BoxMetric{Gap: e.cfg.Gap}
	for _, p := range placed {
		if m.Depth(cand, p) > epsilon {
			return false
		}
	}
	return true
}

// shelf packs nodes into rows in area order, then scatters the leftover
// space randomly between rows, between chips and inside each row's height.
// It fails when the rows do not fit.
func (e *spiralEngine) shelf(src *rng.Source, w, h float64, nodes []Node, order []int) ([]Placement, bool) {
	gap := e.cfg.Gap
	type row struct {
		items  []int
		width  float64
		height float64
	}
	var rows []row
	for _, idx := range order {
		n := nodes[idx]
		if n.W > w || n.H > h {
			return nil, false
		}
		if len(rows) > 0 {
			last := &rows[len(rows)-1]
			if last.width+gap+n.W <= w {
				last.items = append(last.items, idx)
				last.width += gap + n.W
				last.height = math.Max(last.height, n.H)
				continue
			}
		}
		rows = append(rows, row{items: []int{idx}, width: n.W, height: n.H})
	}

	total := gap * float64(len(rows)-1)
	for _, r := range rows {
		total += r.height
	}
	if total > h {
		return nil, false
	}

	ps := make([]Placement, len(nodes))
	rowSlack := spread(src, h-total, len(rows)+1)
	y := rowSlack[0]
	for ri, r := range rows {
		// Shuffle so rows do not read largest-to-smallest.
		for i := len(r.items) - 1; i > 0; i-- {
			j := int(src.Float64() * float64(i+1))
			r.items[i], r.items[j] = r.items[j], r.items[i]
		}
		colSlack := spread(src, w-r.width, len(r.items)+1)
		x := colSlack[0]
		for k, idx := range r.items {
			n := nodes[idx]
			ps[idx] = Placement{ID: n.ID, X: x, Y: y + src.Float64()*(r.height-n.H), W: n.W, H: n.H}
			x = x + n.W + gap + colSlack[k+1]
		}
		y = y + r.height + gap + rowSlack[ri+1]
	}
	return ps, true
}

// corner packs nodes top-left first. Candidate corners are the origin and
// the gap-expanded right and bottom edges of every placed box; each node
// takes the topmost, then leftmost, clear candidate. It fails when a node
// has no clear candidate.
func (e *spiralEngine) corner(w, h float64, nodes []Node, order []int) ([]Placement, bool) {
	gap := e.cfg.Gap
	ps := make([]Placement, len(nodes))
	placed := make([]Placement, 0, len(nodes))
	xs, ys := []float64{0}, []float64{0}

	for _, idx := range order {
		n := nodes[idx]
		found := false
	search:
		for _, y := range ys {
			if y+n.H > h+epsilon {
				break
			}
			for _, x := range xs {
				if x+n.W > w+epsilon {
					break
				}
				cand := Placement{ID: n.ID, X: x, Y: y, W: n.W, H: n.H}
				if e.clear(cand, placed) {
					ps[idx] = cand
					placed = append(placed, cand)
					found = true
					break search
				}
			}
		}
		if !found {
			return nil, false
		}
		xs = insertSorted(xs, ps[idx].X+n.W+gap)
		ys = insertSorted(ys, ps[idx].Y+n.H+gap)
	}
	return ps, true
}

func insertSorted(vs []float64, v float64) []float64 {
	i := sort.SearchFloat64s(vs, v)
	if i < len(vs) && vs[i] == v {
		return vs
	}
	vs = append(vs, 0)
	copy(vs[i+1:], vs[i:])
	vs[i] = v
	return vs
}

// spread splits total into n random non-negative parts.
func spread(src *rng.Source, total float64, n int) []float64 {
	parts := make([]float64, n)
	if total <= 0 {
		return parts
	}
	var sum float64
	for i := range parts {
		parts[i] = src.Float64() + 0.05
		sum += parts[i]
	}
	for i := range parts {
		parts[i] = parts[i] / sum * total
	}
	return parts
}
