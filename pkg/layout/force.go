package layout

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/techmap/pkg/rng"
)

type forceEngine struct {
	cfg Config
}

// Layout implements Engine. It runs the simulation synchronously until it
// cools below AlphaMin or reaches StepsMax ticks.
func (e *forceEngine) Layout(ctx context.Context, region Region, nodes []Node, seed uint32) (Result, error) {
	if err := prepare(ctx, region, nodes); err != nil {
		return Result{}, err
	}
	sim, err := NewSimulation(region, nodes, seed, e.cfg)
	if err != nil {
		return Result{}, err
	}
	for !sim.Done() {
		if sim.Steps()%32 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		sim.Step()
	}
	return sim.Result(), nil
}

// Simulation is a stepwise force simulation of one plane. It is not safe
// for concurrent use.
//
// Each tick cools alpha, then applies many-body repulsion, centering, axis
// pull, collision and bounds forces in that order, and finally integrates
// velocities with decay.
type Simulation struct {
	cfg    Config
	region Region
	nodes  []Node
	bodies []*body
	metric CircleMetric
	src    *rng.Source
	w, h   float64
	alpha  float64
	steps  int
}

// NewSimulation seeds a simulation. Bodies start at uniformly random
// centers inside the content area.
func NewSimulation(region Region, nodes []Node, seed uint32, cfg Config) (*Simulation, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if err := validateNodes(nodes); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, h := region.Content()
	s := &Simulation{
		cfg:    cfg,
		region: region,
		nodes:  nodes,
		metric: CircleMetric{Policy: cfg.RadiusPolicy, Gap: cfg.Gap},
		src:    rng.New(seed),
		w:      w,
		h:      h,
		alpha:  cfg.Force.Alpha,
	}
	s.bodies = newBodies(nodes, s.metric)
	for _, b := range s.bodies {
		b.pos.X = s.src.Float64() * w
		b.pos.Y = s.src.Float64() * h
	}
	return s, nil
}

// Done reports whether the simulation has cooled or hit its step cap.
func (s *Simulation) Done() bool {
	return len(s.bodies) == 0 || s.alpha <= s.cfg.Force.AlphaMin || s.steps >= s.cfg.Force.StepsMax
}

// Steps returns the number of ticks run so far.
func (s *Simulation) Steps() int { return s.steps }

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Step advances the simulation by one tick. It is a no-op once Done.
func (s *Simulation) Step() {
	if s.Done() {
		return
	}
	fc := s.cfg.Force
	s.alpha -= s.alpha * fc.AlphaDecay

	s.charge()
	s.center()
	s.axis()
	s.collide()
	for _, b := range s.bodies {
		b.clamp(s.w, s.h)
	}

	keep := 1 - fc.VelocityDecay
	for _, b := range s.bodies {
		b.vel = r2.Scale(keep, b.vel)
		b.pos = r2.Add(b.pos, b.vel)
	}
	s.steps++
}

// Placements returns the current positions with cluster centering and
// clamping applied, as published on every animation frame.
func (s *Simulation) Placements() []Placement {
	ps := placementsOf(s.nodes, s.bodies)
	if s.cfg.CenterCluster {
		centerCluster(ps, s.w, s.h)
	} else {
		clampAll(ps, s.w, s.h)
	}
	return ps
}

// Result finalizes the current state: settle, center and report.
func (s *Simulation) Result() Result {
	ps := placementsOf(s.nodes, s.bodies)
	rep := finish(s.region, ps, s.cfg, s.metric)
	return Result{Placements: ps, Report: rep, Steps: s.steps}
}

// charge applies many-body repulsion using a Barnes-Hut quadtree. If the
// tree cannot be built the exact pairwise sum is used.
func (s *Simulation) charge() {
	fc := s.cfg.Force
	if fc.Charge == 0 {
		return
	}
	particles := make([]barneshut.Particle2, len(s.bodies))
	for i, b := range s.bodies {
		particles[i] = b
	}
	theta := fc.Theta
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		plane = &barneshut.Plane{Particles: particles}
		theta = 0
	}
	strength := fc.Charge * s.alpha
	force := func(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		if p1 == p2 {
			return r2.Vec{}
		}
		l := r2.Norm2(v)
		if l == 0 {
			return r2.Vec{}
		}
		if l < 1 {
			l = math.Sqrt(l)
		}
		return r2.Scale(strength*m2/l, v)
	}
	for i, b := range s.bodies {
		b.vel = r2.Add(b.vel, plane.ForceOn(particles[i], theta, force))
	}
}

// center translates all bodies so their mean sits at the area midpoint.
func (s *Simulation) center() {
	var mean r2.Vec
	for _, b := range s.bodies {
		mean = r2.Add(mean, b.pos)
	}
	mean = r2.Scale(1/float64(len(s.bodies)), mean)
	shift := r2.Sub(r2.Vec{X: s.w / 2, Y: s.h / 2}, mean)
	for _, b := range s.bodies {
		b.pos = r2.Add(b.pos, shift)
	}
}

// axis pulls velocities toward the vertical and horizontal midlines.
func (s *Simulation) axis() {
	k := s.cfg.Force.AxisStrength * s.alpha
	for _, b := range s.bodies {
		b.vel.X += (s.w/2 - b.pos.X) * k
		b.vel.Y += (s.h/2 - b.pos.Y) * k
	}
}

// collide resolves predicted overlaps of collision circles. The correction
// is shared between the pair in proportion to the other body's squared
// radius.
func (s *Simulation) collide() {
	fc := s.cfg.Force
	for it := 0; it < fc.CollideIterations; it++ {
		for i, a := range s.bodies {
			pa := r2.Add(a.pos, a.vel)
			ra2 := a.r * a.r
			for _, b := range s.bodies[i+1:] {
				d := r2.Sub(pa, r2.Add(b.pos, b.vel))
				r := a.r + b.r
				l := r2.Norm2(d)
				if l >= r*r {
					continue
				}
				if d.X == 0 {
					d.X = s.jiggle()
					l += d.X * d.X
				}
				if d.Y == 0 {
					d.Y = s.jiggle()
					l += d.Y * d.Y
				}
				dist := math.Sqrt(l)
				d = r2.Scale((r-dist)/dist*fc.CollideStrength, d)
				rb2 := b.r * b.r
				share := rb2 / (ra2 + rb2)
				a.vel = r2.Add(a.vel, r2.Scale(share, d))
				b.vel = r2.Sub(b.vel, r2.Scale(1-share, d))
			}
		}
	}
}

func (s *Simulation) jiggle() float64 {
	return (s.src.Float64() - 0.5) * 1e-6
}
