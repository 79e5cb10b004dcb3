package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/classify"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/scene"
)

// Animation lays out one plane a frame at a time. Planes that are not
// animated force simulations finish on construction and yield a single
// final frame.
type Animation struct {
	year  int
	plane chip.Plane
	po    PlaneOptions
	seed  uint32
	items []classify.Assigned
	sim   *layout.Simulation
	ticks int
	start time.Time
	final *scene.PlaneView
}

// Animate prepares an animation of plane for opts.Year.
func (r *Runner) Animate(ctx context.Context, ds *dataset.Dataset, plane chip.Plane, opts Options) (*Animation, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	ds = orEmpty(ds)
	po := opts.PlaneOptions(plane)
	an := &Animation{year: opts.Year, plane: plane, po: po, seed: r.seed(plane, opts), start: time.Now()}

	if !po.Animate || po.Algorithm != layout.ForceSimulation {
		v, err := r.Plane(ctx, ds, plane, opts)
		if err != nil {
			return nil, err
		}
		an.final = &v
		return an, nil
	}

	a := classify.Classify(ds, opts.Year, opts.Widths(), *opts.Policy)
	an.items = a.On(plane)
	cfg := po.Config()
	sim, err := layout.NewSimulation(po.Region, nodes(an.items, opts.Measurer), an.seed, cfg)
	if err != nil {
		return nil, err
	}
	an.sim = sim
	an.ticks = max(1, cfg.Force.TicksPerFrame)
	observability.Layout().OnLayoutStart(ctx, plane.String(), po.Algorithm.String(), len(an.items))
	return an, nil
}

// Plane returns the animated plane.
func (a *Animation) Plane() chip.Plane { return a.plane }

// Done reports whether the final frame has been produced.
func (a *Animation) Done() bool { return a.final != nil }

// Advance runs one frame's worth of simulation ticks and returns the
// resulting frame. Once the simulation cools it returns the settled final
// frame, and keeps returning it.
func (a *Animation) Advance(ctx context.Context) scene.Frame {
	if a.final != nil {
		return a.frame(*a.final, true)
	}
	for i := 0; i < a.ticks && !a.sim.Done(); i++ {
		a.sim.Step()
	}
	if !a.sim.Done() {
		res := layout.Result{Placements: a.sim.Placements(), Steps: a.sim.Steps()}
		return a.frame(view(a.plane, a.po, a.seed, a.items, res), false)
	}

	res := a.sim.Result()
	v := view(a.plane, a.po, a.seed, a.items, res)
	a.final = &v
	observability.Layout().OnLayoutComplete(ctx, observability.LayoutEvent{
		Plane:     a.plane.String(),
		Algorithm: a.po.Algorithm.String(),
		Items:     len(a.items),
		Steps:     res.Steps,
		Overlaps:  res.Report.Overlaps,
		Duration:  time.Since(a.start),
	})
	return a.frame(v, true)
}

func (a *Animation) frame(v scene.PlaneView, final bool) scene.Frame {
	return scene.Frame{Plane: a.plane, Year: a.year, View: v, Final: final}
}
