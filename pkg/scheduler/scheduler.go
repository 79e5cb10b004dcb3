// Package scheduler decides when planes are laid out again.
//
// Three triggers exist: the initial load, a year change and a resize of a
// plane box. Year changes are discrete user actions and re-layout both
// planes immediately. Resizes arrive as a continuous stream and are
// coalesced: each plane has at most one pending frame, and a new resize
// cancels the pending one before scheduling its own.
//
// All layout state is owned by the goroutine running [Scheduler.Run].
// Public methods post events to it, so they are safe for concurrent use.
//
//	s := scheduler.New(runner, presenter, scheduler.Options{})
//	go s.Run(ctx)
//	s.Init(ds, pipeline.DefaultOptions(ds.Latest()))
//	s.SetYear(2019)
//	s.Resize(chip.Active, 720, 400)
package scheduler

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/scene"
)

// ErrStopped is returned by methods called after Run has returned.
var ErrStopped = stderrors.New("scheduler stopped")

// Trigger reasons reported to hooks and logs.
const (
	ReasonInit    = "init"
	ReasonYear    = "year"
	ReasonResize  = "resize"
	ReasonDataset = "dataset"
)

// Relayouter lays out a single plane, one frame at a time if animated.
// *pipeline.Runner implements it.
type Relayouter interface {
	Animate(ctx context.Context, ds *dataset.Dataset, plane chip.Plane, opts pipeline.Options) (*pipeline.Animation, error)
}

// Options configures a Scheduler.
type Options struct {
	// Clock defines frame boundaries. Nil selects a FrameClock with the
	// default interval.
	Clock Clock

	// Logger receives relayout failures; nil discards.
	Logger *log.Logger
}

// Scheduler serializes layout work for both planes.
type Scheduler struct {
	layout    Relayouter
	presenter scene.Presenter
	clock     Clock
	logger    *log.Logger

	events  chan func(context.Context)
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	ds      *dataset.Dataset
	opts    pipeline.Options
	ready   bool
	resizes map[chip.Plane]*resize
	runs    map[chip.Plane]*run
}

// resize is a pending resize frame carrying the latest requested size.
type resize struct {
	handle Handle
	w, h   float64
}

// run is an in-flight layout of one plane.
type run struct {
	an     *pipeline.Animation
	handle Handle
}

// New creates a scheduler. Nothing happens until Run is started and Init
// is called.
func New(l Relayouter, p scene.Presenter, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = NewFrameClock(DefaultFrameInterval)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Scheduler{
		layout:    l,
		presenter: p,
		clock:     opts.Clock,
		logger:    opts.Logger,
		events:    make(chan func(context.Context), 64),
		done:      make(chan struct{}),
		resizes:   map[chip.Plane]*resize{},
		runs:      map[chip.Plane]*run{},
	}
}

// Run processes events until ctx is done. Pending frames are cancelled on
// return. Run may be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New(errors.ErrCodeInternal, "scheduler already running")
	}
	defer close(s.done)
	defer s.stopAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-s.events:
			fn(ctx)
		}
	}
}

// Init sets the dataset and options and lays out both planes. A nil
// dataset is treated as empty.
func (s *Scheduler) Init(ds *dataset.Dataset, opts pipeline.Options) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	return s.post(func(ctx context.Context) {
		s.ds, s.opts, s.ready = ds, opts, true
		s.cancelResizes(false)
		s.relayoutAll(ctx, ReasonInit)
	})
}

// SetYear switches the year and re-layouts both planes without waiting
// for a frame. Pending resize frames are cancelled and their sizes folded
// into this layout.
func (s *Scheduler) SetYear(year int) error {
	if err := errors.ValidateYear(year); err != nil {
		return err
	}
	return s.post(func(ctx context.Context) {
		s.cancelResizes(true)
		s.opts.SetYear(year)
		s.relayoutAll(ctx, ReasonYear)
	})
}

// SetDataset replaces the dataset, as when a watched file changes, and
// re-layouts both planes.
func (s *Scheduler) SetDataset(ds *dataset.Dataset) error {
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	return s.post(func(ctx context.Context) {
		s.ds = ds
		s.relayoutAll(ctx, ReasonDataset)
	})
}

// Resize records a new element size for plane's box. The plane is laid
// out on the next frame; further resizes before then replace the
// pending frame.
func (s *Scheduler) Resize(plane chip.Plane, w, h float64) error {
	if !validSize(w) || !validSize(h) {
		return errors.New(errors.ErrCodeInvalidGeometry, "invalid %s size %vx%v", plane, w, h)
	}
	return s.post(func(ctx context.Context) {
		if prev := s.resizes[plane]; prev != nil {
			prev.handle.Cancel()
			observability.Scheduler().OnResizeCoalesced(ctx, plane.String())
		}
		rz := &resize{w: w, h: h}
		s.resizes[plane] = rz
		rz.handle = s.clock.AfterFrame(func() {
			_ = s.post(func(ctx context.Context) {
				if s.resizes[plane] != rz {
					return
				}
				delete(s.resizes, plane)
				s.opts.SetPlaneSize(plane, rz.w, rz.h)
				s.relayout(ctx, plane, ReasonResize)
			})
		})
	})
}

// Sync waits until every event posted before the call has been handled.
func (s *Scheduler) Sync(ctx context.Context) error {
	handled := make(chan struct{})
	if err := s.post(func(context.Context) { close(handled) }); err != nil {
		return err
	}
	select {
	case <-handled:
		return nil
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) post(fn func(context.Context)) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	select {
	case s.events <- fn:
		return nil
	case <-s.done:
		return ErrStopped
	}
}

// cancelResizes drops pending resize frames. With apply set their sizes
// are kept for the next layout.
func (s *Scheduler) cancelResizes(apply bool) {
	for plane, rz := range s.resizes {
		rz.handle.Cancel()
		if apply {
			s.opts.SetPlaneSize(plane, rz.w, rz.h)
		}
		delete(s.resizes, plane)
	}
}

func (s *Scheduler) relayoutAll(ctx context.Context, reason string) {
	for _, p := range chip.Planes {
		s.relayout(ctx, p, reason)
	}
}

// relayout supersedes any in-flight run of plane and starts a new one.
func (s *Scheduler) relayout(ctx context.Context, plane chip.Plane, reason string) {
	if !s.ready {
		return
	}
	if prev := s.runs[plane]; prev != nil {
		if prev.handle != nil {
			prev.handle.Cancel()
		}
		delete(s.runs, plane)
	}

	observability.Scheduler().OnRelayout(ctx, plane.String(), reason)
	an, err := s.layout.Animate(ctx, s.ds, plane, s.opts)
	if err != nil {
		s.logger.Error("relayout failed", "plane", plane, "reason", reason, "year", s.opts.Year, "err", err)
		return
	}
	s.logger.Debug("relayout", "plane", plane, "reason", reason, "year", s.opts.Year)
	s.advance(ctx, plane, &run{an: an})
}

// advance publishes r's next frame and, unless it was final, schedules
// the one after.
func (s *Scheduler) advance(ctx context.Context, plane chip.Plane, r *run) {
	f := r.an.Advance(ctx)
	observability.Scheduler().OnFrame(ctx, plane.String())
	if err := s.presenter.Present(ctx, f); err != nil {
		s.logger.Warn("present frame", "plane", plane, "err", err)
	}
	if f.Final {
		if s.runs[plane] == r {
			delete(s.runs, plane)
		}
		return
	}

	s.runs[plane] = r
	r.handle = s.clock.AfterFrame(func() {
		_ = s.post(func(ctx context.Context) {
			if s.runs[plane] != r {
				return
			}
			s.advance(ctx, plane, r)
		})
	})
}

func (s *Scheduler) stopAll() {
	s.cancelResizes(false)
	for plane, r := range s.runs {
		if r.handle != nil {
			r.handle.Cancel()
		}
		delete(s.runs, plane)
	}
}

func validSize(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
