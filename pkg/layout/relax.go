package layout

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/techmap/pkg/rng"
)

type relaxEngine struct {
	cfg Config
}

// body is a node in the physics engines. pos is the center.
type body struct {
	pos r2.Vec
	vel r2.Vec
	w   float64
	h   float64
	r   float64
}

// Coord2 and Mass let bodies take part in Barnes-Hut approximation.
func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return 1 }

// clamp keeps the body's full extent inside the w×h area.
func (b *body) clamp(w, h float64) {
	b.pos.X = clampStart(b.pos.X-b.w/2, b.w, w) + b.w/2
	b.pos.Y = clampStart(b.pos.Y-b.h/2, b.h, h) + b.h/2
}

func newBodies(nodes []Node, m CircleMetric) []*body {
	bodies := make([]*body, len(nodes))
	for i, n := range nodes {
		bodies[i] = &body{w: n.W, h: n.H, r: m.Policy.Radius(n.W, n.H, m.Gap)}
	}
	return bodies
}

func placementsOf(nodes []Node, bodies []*body) []Placement {
	ps := make([]Placement, len(nodes))
	for i, b := range bodies {
		ps[i] = Placement{ID: nodes[i].ID, X: b.pos.X - b.w/2, Y: b.pos.Y - b.h/2, W: b.w, H: b.h}
	}
	return ps
}

// randomDirection returns a unit vector for separating coincident centers.
func randomDirection(src *rng.Source) r2.Vec {
	a := src.Float64() * 2 * math.Pi
	return r2.Vec{X: math.Cos(a), Y: math.Sin(a)}
}

// Layout implements Engine.
//
// Every iteration accumulates a weak pull toward the center and a small
// repulsion of constant magnitude between all pairs into damped velocities, integrates them, and
// then runs the collision passes, each of which pushes overlapping pairs
// apart by half their overlap and clamps into bounds.
func (e *relaxEngine) Layout(ctx context.Context, region Region, nodes []Node, seed uint32) (Result, error) {
	if err := prepare(ctx, region, nodes); err != nil {
		return Result{}, err
	}
	metric := CircleMetric{Policy: e.cfg.RadiusPolicy, Gap: e.cfg.Gap}
	if len(nodes) == 0 {
		return Result{Report: Check(region, nil, metric)}, nil
	}

	rc := e.cfg.Relax
	w, h := region.Content()
	center := r2.Vec{X: w / 2, Y: h / 2}
	src := rng.New(seed)

	bodies := newBodies(nodes, metric)
	for _, b := range bodies {
		b.pos.X = b.w/2 + src.Float64()*math.Max(0, w-b.w)
		b.pos.Y = b.h/2 + src.Float64()*math.Max(0, h-b.h)
	}

	for it := 0; it < rc.Iterations; it++ {
		if it%16 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}

		for _, b := range bodies {
			b.vel = r2.Add(b.vel, r2.Scale(rc.CenterPull, r2.Sub(center, b.pos)))
		}
		if rc.Repulsion > 0 {
			for i, a := range bodies {
				for _, b := range bodies[i+1:] {
					d := r2.Sub(b.pos, a.pos)
					dist := r2.Norm(d)
					if dist == 0 {
						continue
					}
					push := r2.Scale(rc.Repulsion/dist, d)
					a.vel = r2.Sub(a.vel, push)
					b.vel = r2.Add(b.vel, push)
				}
			}
		}
		for _, b := range bodies {
			b.pos = r2.Add(b.pos, b.vel)
			b.vel = r2.Scale(rc.Damping, b.vel)
			b.clamp(w, h)
		}

		for pass := 0; pass < rc.Passes; pass++ {
			for i, a := range bodies {
				for _, b := range bodies[i+1:] {
					d := r2.Sub(b.pos, a.pos)
					dist := r2.Norm(d)
					overlap := a.r + b.r - dist
					if overlap <= 0 {
						continue
					}
					var dir r2.Vec
					if dist == 0 {
						dir = randomDirection(src)
					} else {
						dir = r2.Scale(1/dist, d)
					}
					half := r2.Scale(overlap/2, dir)
					a.pos = r2.Sub(a.pos, half)
					b.pos = r2.Add(b.pos, half)
				}
			}
			for _, b := range bodies {
				b.clamp(w, h)
			}
		}
	}

	ps := placementsOf(nodes, bodies)
	rep := finish(region, ps, e.cfg, metric)
	return Result{Placements: ps, Report: rep, Steps: rc.Iterations}, nil
}
