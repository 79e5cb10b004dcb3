package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/scene"
)

func testDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Years: []int{2020, 2021},
		Tech: []dataset.Tech{
			{Name: "Go", Series: map[string]int{"2020": 6, "2021": 8}},
			{Name: "Rust", Series: map[string]int{"2020": 0, "2021": 4}},
			{Name: "Perl", Series: map[string]int{"2020": 3}},
		},
	}
}

// recorder collects presented frames.
type recorder struct {
	mu     sync.Mutex
	frames []scene.Frame
}

func (r *recorder) Present(_ context.Context, f scene.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *recorder) take() []scene.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.frames
	r.frames = nil
	return out
}

func onPlane(frames []scene.Frame, p chip.Plane) []scene.Frame {
	var out []scene.Frame
	for _, f := range frames {
		if f.Plane == p {
			out = append(out, f)
		}
	}
	return out
}

type harness struct {
	s     *Scheduler
	clock *ManualClock
	rec   *recorder
	ctx   context.Context
}

func start(t *testing.T, opts pipeline.Options) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{clock: NewManualClock(), rec: &recorder{}, ctx: ctx}
	h.s = New(pipeline.NewRunner(nil, nil, nil), h.rec, Options{Clock: h.clock})

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		h.s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	if err := h.s.Init(testDataset(), opts); err != nil {
		t.Fatalf("Init: %v", err)
	}
	h.sync(t)
	return h
}

func (h *harness) sync(t *testing.T) {
	t.Helper()
	if err := h.s.Sync(h.ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

// tick advances one frame and waits for the resulting events.
func (h *harness) tick(t *testing.T) int {
	t.Helper()
	n := h.clock.Advance()
	h.sync(t)
	return n
}

func TestInitPresentsBothPlanes(t *testing.T) {
	h := start(t, pipeline.DefaultOptions(2021))
	frames := h.rec.take()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	for _, f := range frames {
		if !f.Final || f.Year != 2021 {
			t.Errorf("frame = %+v, want final 2021 frame", f)
		}
	}
	if n := len(onPlane(frames, chip.Active)[0].View.Chips); n != 2 {
		t.Errorf("active chips = %d, want 2", n)
	}
	if h.clock.Pending() != 0 {
		t.Error("static layouts should not schedule frames")
	}
}

func TestResizeCoalescedPerFrame(t *testing.T) {
	rec := &hookRecorder{}
	observability.SetSchedulerHooks(rec)
	t.Cleanup(observability.Reset)

	h := start(t, pipeline.DefaultOptions(2021))
	h.rec.take()

	for _, w := range []float64{700, 720, 740} {
		if err := h.s.Resize(chip.Active, w, 400); err != nil {
			t.Fatal(err)
		}
	}
	h.sync(t)
	if h.clock.Pending() != 1 {
		t.Fatalf("pending frames = %d, want 1", h.clock.Pending())
	}
	if len(h.rec.take()) != 0 {
		t.Error("resize must wait for the frame")
	}

	h.tick(t)
	frames := h.rec.take()
	if len(frames) != 1 || frames[0].Plane != chip.Active {
		t.Fatalf("frames = %+v, want one active frame", frames)
	}
	if w := frames[0].View.Region.Width; w != 740 {
		t.Errorf("width = %v, want the latest size 740", w)
	}
	if rec.count("coalesced") != 2 {
		t.Errorf("coalesced = %d, want 2", rec.count("coalesced"))
	}
}

func TestResizePlanesIndependent(t *testing.T) {
	h := start(t, pipeline.DefaultOptions(2021))
	h.rec.take()

	h.s.Resize(chip.Active, 700, 400)
	h.s.Resize(chip.Inactive, 600, 300)
	h.sync(t)
	if h.clock.Pending() != 2 {
		t.Fatalf("pending frames = %d, want one per plane", h.clock.Pending())
	}
	h.tick(t)
	if n := len(h.rec.take()); n != 2 {
		t.Errorf("frames = %d, want 2", n)
	}
}

func TestSetYearIsImmediateAndCancelsResize(t *testing.T) {
	h := start(t, pipeline.DefaultOptions(2021))
	h.rec.take()

	h.s.Resize(chip.Active, 640, 380)
	if err := h.s.SetYear(2020); err != nil {
		t.Fatal(err)
	}
	h.sync(t)

	if h.clock.Pending() != 0 {
		t.Errorf("pending frames = %d, want the resize cancelled", h.clock.Pending())
	}
	frames := h.rec.take()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	active := onPlane(frames, chip.Active)[0]
	if active.Year != 2020 {
		t.Errorf("year = %d, want 2020", active.Year)
	}
	if active.View.Region.Width != 640 {
		t.Errorf("width = %v, pending size should be folded in", active.View.Region.Width)
	}
	if n := len(active.View.Chips); n != 2 {
		t.Errorf("active chips in 2020 = %d, want 2", n)
	}

	h.tick(t)
	if len(h.rec.take()) != 0 {
		t.Error("cancelled resize frame must not fire")
	}
}

func TestAnimatedRun(t *testing.T) {
	opts := pipeline.DefaultOptions(2021)
	opts.Active.Animate = true
	h := start(t, opts)

	frames := h.rec.take()
	if f := onPlane(frames, chip.Active); len(f) != 1 || f[0].Final {
		t.Fatalf("first active frame = %+v, want one intermediate frame", f)
	}
	if f := onPlane(frames, chip.Inactive); len(f) != 1 || !f[0].Final {
		t.Error("inactive plane should publish its final frame at once")
	}

	var last scene.Frame
	for i := 0; h.tick(t) > 0; i++ {
		if i > 1000 {
			t.Fatal("animation never settled")
		}
		for _, f := range h.rec.take() {
			last = f
		}
	}
	if !last.Final || last.Plane != chip.Active {
		t.Errorf("last frame = %+v, want final active frame", last)
	}
}

func TestRelayoutSupersedesAnimation(t *testing.T) {
	opts := pipeline.DefaultOptions(2021)
	opts.Active.Animate = true
	h := start(t, opts)
	h.tick(t)
	h.rec.take()

	if err := h.s.SetYear(2020); err != nil {
		t.Fatal(err)
	}
	h.sync(t)
	if h.clock.Pending() != 1 {
		t.Fatalf("pending frames = %d, want only the new run", h.clock.Pending())
	}

	for i := 0; h.tick(t) > 0; i++ {
		if i > 1000 {
			t.Fatal("animation never settled")
		}
	}
	for _, f := range h.rec.take() {
		if f.Year != 2020 {
			t.Fatalf("frame from superseded run: %+v", f)
		}
	}
}

func TestSetDataset(t *testing.T) {
	h := start(t, pipeline.DefaultOptions(2021))
	h.rec.take()

	ds := testDataset()
	ds.Tech = append(ds.Tech, dataset.Tech{Name: "Zig", Series: map[string]int{"2021": 2}})
	if err := h.s.SetDataset(ds); err != nil {
		t.Fatal(err)
	}
	h.sync(t)
	active := onPlane(h.rec.take(), chip.Active)
	if len(active) != 1 || len(active[0].View.Chips) != 3 {
		t.Errorf("active frames = %+v, want 3 chips", active)
	}
}

func TestValidation(t *testing.T) {
	h := start(t, pipeline.DefaultOptions(2021))
	if err := h.s.SetYear(1); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("SetYear(1) = %v, want INVALID_INPUT", err)
	}
	if err := h.s.Resize(chip.Active, -1, 10); !errors.Is(err, errors.ErrCodeInvalidGeometry) {
		t.Errorf("Resize(-1) = %v, want INVALID_GEOMETRY", err)
	}
}

func TestStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(pipeline.NewRunner(nil, nil, nil), &recorder{}, Options{Clock: NewManualClock()})
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run = %v", err)
	}
	if err := s.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
	if err := s.Resize(chip.Active, 10, 10); err != ErrStopped {
		t.Errorf("Resize after stop = %v, want ErrStopped", err)
	}
	if err := s.Sync(context.Background()); err != ErrStopped {
		t.Errorf("Sync after stop = %v, want ErrStopped", err)
	}
}

type hookRecorder struct {
	observability.NoopSchedulerHooks
	mu     sync.Mutex
	counts map[string]int
}

func (r *hookRecorder) inc(k string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[k]++
}

func (r *hookRecorder) count(k string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[k]
}

func (r *hookRecorder) OnRelayout(context.Context, string, string) { r.inc("relayout") }
func (r *hookRecorder) OnResizeCoalesced(context.Context, string)  { r.inc("coalesced") }
