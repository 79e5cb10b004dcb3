package scheduler

import (
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60 Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Handle is a scheduled frame callback.
type Handle interface {
	// Cancel stops the callback from running. It reports whether the call
	// prevented it; false means it already ran or was already cancelled.
	Cancel() bool
}

// Clock schedules callbacks on the next frame boundary.
type Clock interface {
	AfterFrame(fn func()) Handle
}

// FrameClock is a wall-clock Clock with a fixed frame interval. Callbacks
// run on their own goroutine.
type FrameClock struct {
	Interval time.Duration
}

// NewFrameClock returns a clock ticking every interval, or every
// DefaultFrameInterval if interval is not positive.
func NewFrameClock(interval time.Duration) *FrameClock {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &FrameClock{Interval: interval}
}

// AfterFrame implements Clock.
func (c *FrameClock) AfterFrame(fn func()) Handle {
	d := c.Interval
	if d <= 0 {
		d = DefaultFrameInterval
	}
	return timerHandle{time.AfterFunc(d, fn)}
}

type timerHandle struct{ t *time.Timer }

func (h timerHandle) Cancel() bool { return h.t.Stop() }

// ManualClock is a Clock whose frames advance only when Advance is called.
type ManualClock struct {
	mu      sync.Mutex
	pending []*manualHandle
}

// NewManualClock returns a clock with no pending frames.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

type manualHandle struct {
	clock *ManualClock
	fn    func()
	done  bool
}

// AfterFrame implements Clock.
func (c *ManualClock) AfterFrame(fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := &manualHandle{clock: c, fn: fn}
	c.pending = append(c.pending, h)
	return h
}

func (h *manualHandle) Cancel() bool {
	c := h.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	for i, p := range c.pending {
		if p == h {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
	return true
}

// Advance runs every callback scheduled before the call, in scheduling
// order, and returns how many ran. Callbacks scheduled while advancing
// wait for the next frame.
func (c *ManualClock) Advance() int {
	c.mu.Lock()
	due := c.pending
	c.pending = nil
	for _, h := range due {
		h.done = true
	}
	c.mu.Unlock()

	for _, h := range due {
		h.fn()
	}
	return len(due)
}

// Pending returns the number of scheduled callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
