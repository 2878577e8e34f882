// Package render drives the fixed-rate display loop: map the authoritative
// clock to a frame index, notify the managers on change, ask the selector
// for a frame, and hand it to whatever output sink the caller wires in.
package render

import (
	"sync/atomic"
	"time"

	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
	"tapescrub/internal/playhead"
	"tapescrub/internal/selector"
)

// TargetHz is the normal render rate.
const TargetHz = 60

// idleThrottleAfter is how long the driver waits at near-zero rate before
// dropping to the idle rate to save power. A non-zero rate or a call to
// NotifyActivity ends the throttle from the next tick on.
const idleThrottleAfter = 15 * time.Second

// idleHz is the throttled rate once idleThrottleAfter has elapsed with the
// playhead stationary.
const idleHz = 4

// Notifier is the subset of manager.Base's API the driver needs to wake all
// three managers on a frame-index change.
type Notifier interface {
	Notify()
}

// Sink renders one selected frame through whichever output path matches its
// tier/format; a nil frame means "nothing available, hold the last frame or
// show a placeholder".
type Sink interface {
	Render(res selector.Result)
}

// Driver owns the render loop's timing and wiring between the playhead
// clock, the frame index, the frame selector, and an output Sink.
type Driver struct {
	idx       *frameindex.Index
	state     *playhead.State
	sel       *selector.Selector
	sink      Sink
	notifiers []Notifier

	lastFrame     int
	haveLastFrame bool
	lastActivity  time.Time
	forceNext     atomic.Bool

	stopCh chan struct{}
	done   chan struct{}
}

// New wires a Driver. notifiers should be the three managers (Low/Cached,
// Cached, Full-Res), in any order.
func New(idx *frameindex.Index, state *playhead.State, sink Sink, notifiers ...Notifier) *Driver {
	return &Driver{
		idx:          idx,
		state:        state,
		sel:          selector.New(),
		sink:         sink,
		notifiers:    notifiers,
		lastActivity: time.Now(),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// NotifyActivity resets the idle-throttle timer, restoring full rate from
// the next tick. main.go's key handling does not call it: while throttled,
// a command that leaves the rate near zero is picked up on the next idle
// tick (up to 1/idleHz later) and the throttle stays in place.
func (d *Driver) NotifyActivity() {
	d.lastActivity = time.Now()
}

// Run drives the loop until Stop is called. Intended to be started in its
// own goroutine (the teacher runs its render loop on the main thread; this
// mirrors that by convention, but nothing here requires it).
func (d *Driver) Run() {
	defer close(d.done)
	log := logging.For("render-driver")

	forceUpdate := true
	budget := time.Second / TargetHz

	for {
		tickStart := time.Now()

		select {
		case <-d.stopCh:
			log.Debug().Msg("render loop exited")
			return
		default:
		}

		rate := d.state.Rate()
		nearZero := absF(rate) < 0.01
		if !nearZero {
			d.lastActivity = tickStart
		}

		frameIndex := d.currentFrameIndex()
		if !d.haveLastFrame || frameIndex != d.lastFrame {
			for _, n := range d.notifiers {
				n.Notify()
			}
			d.lastFrame = frameIndex
			d.haveLastFrame = true
		}

		force := forceUpdate || d.forceNext.CompareAndSwap(true, false)
		res := d.sel.Select(d.idx, frameIndex, rate, d.state.Reverse(), force)
		forceUpdate = false
		d.sink.Render(res)

		d.enforceBudget(tickStart, budget)

		if nearZero && time.Since(d.lastActivity) > idleThrottleAfter {
			budget = time.Second / idleHz
		} else {
			budget = time.Second / TargetHz
		}
	}
}

// ForceUpdate marks the next tick to bypass the frame selector's transition
// threshold, as after a seek. Safe to call from any goroutine.
func (d *Driver) ForceUpdate() {
	d.forceNext.Store(true)
}

// currentFrameIndex maps the authoritative clock to the nearest slot index
// by TimeMs (see frameindex.Index.IndexOf).
func (d *Driver) currentFrameIndex() int {
	t := d.state.CurrentTimeS() * 1000
	i := d.idx.IndexOf(t)
	d.state.SetCurrentFrameIndex(i)
	return i
}

// enforceBudget hits the tick deadline with a hybrid schedule: sleep for
// most of the remaining budget, then busy-wait the last millisecond so a
// scheduler wakeup jitter doesn't cause a visible overshoot.
func (d *Driver) enforceBudget(tickStart time.Time, budget time.Duration) {
	elapsed := time.Since(tickStart)
	remaining := budget - elapsed
	if remaining <= 0 {
		return
	}
	if remaining > time.Millisecond {
		time.Sleep(remaining - time.Millisecond)
	}
	for time.Since(tickStart) < budget {
		// busy-wait the last sliver
	}
}

// Stop requests shutdown and blocks until the loop has exited.
func (d *Driver) Stop() {
	close(d.stopCh)
	<-d.done
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
