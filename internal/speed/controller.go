// Package speed runs the background loop that eases the playhead's actual
// rate toward its target, including the curved "unpause overshoot" and the
// rate-keyed volume envelope.
package speed

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"tapescrub/internal/logging"
	"tapescrub/internal/playhead"
)

// JogSpeed is the fixed rate used while a jog button is held.
const JogSpeed = 0.25

const (
	tickInterval    = 14 * time.Millisecond
	tickIntervalFor3x = 4 * time.Millisecond // hand-tuned exception at target 3.0x

	stepInterval = 5 * time.Millisecond

	overshootPeakMin = 1.2
	overshootPeakMax = 1.7
	overshootRiseMs  = 50.0
	overshootDipMs   = 75.0
	overshootDipTo   = 0.7
	overshootRecover = 125.0
	overshootTotalMin = 250.0
	overshootTotalMax = 300.0

	linearRampMs = 100.0

	snapEpsilon = 0.01
)

// Controller owns the easing loop. It is the sole writer of state's rate
// field. Volume is also set by the input commands and the audio engine;
// each easing step rewrites it from the rate curve.
type Controller struct {
	state *playhead.State

	everUnpaused bool

	stopCh chan struct{}
	done   chan struct{}
}

// New constructs an unstarted Controller bound to state.
func New(state *playhead.State) *Controller {
	return &Controller{
		state:  state,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run drives the easing loop until Stop is called. Intended to be started in
// its own goroutine.
func (c *Controller) Run() {
	defer close(c.done)
	log := logging.For("speed-controller")

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		target := c.state.TargetRate()
		ticker.Reset(intervalFor(target))

		current := c.state.Rate()

		switch {
		case c.state.Jogging():
			rate := JogSpeed
			if c.state.JogBackward() {
				rate = -JogSpeed
			}
			c.state.SetRate(rate)
			c.state.SetVolume(volumeForRate(rate))

		case absF(current) < 0.001 && target > 0:
			c.runUnpause(target, log)

		case current != target:
			c.step(current, target)

		default:
			// Already at target: no work this tick.
		}
	}
}

// Stop requests shutdown and blocks until the loop has exited.
func (c *Controller) Stop() {
	close(c.stopCh)
	<-c.done
}

// intervalFor is the hand-tuned cadence exception: a 3.0x target ticks
// faster so the ramp to that specific rate feels snappier.
func intervalFor(target float64) time.Duration {
	if target == 3.0 {
		return tickIntervalFor3x
	}
	return tickInterval
}

// step advances current one increment toward target, sized proportionally to
// the remaining distance (a larger multiplier while pausing so playback
// settles to a stop faster than it ramps up).
func (c *Controller) step(current, target float64) {
	diff := target - current
	magnitude := absF(diff) * 0.1
	if target == 0 {
		magnitude = absF(diff) * 0.15
	}
	if magnitude < 0.01 {
		magnitude = 0.01
	}

	var next float64
	if absF(diff) <= snapEpsilon {
		next = target
	} else if diff > 0 {
		next = current + magnitude
		if next > target {
			next = target
		}
	} else {
		next = current - magnitude
		if next < target {
			next = target
		}
	}

	c.state.SetRate(next)
	c.state.SetVolume(volumeForRate(next))
}

// runUnpause plays out either the overshoot curve or a plain linear ramp,
// blocking this goroutine (and thus the easing loop) for the curve's
// duration: both curves are bounded at a few hundred milliseconds, well
// inside what the rest of the system tolerates from this thread stalling.
func (c *Controller) runUnpause(target float64, log zerolog.Logger) {
	rollOvershoot := !c.everUnpaused || rand.IntN(10) == 0
	c.everUnpaused = true

	if rollOvershoot {
		c.runOvershootCurve(target, log)
	} else {
		c.runLinearRamp(target)
	}
}

// runOvershootCurve plays "rise to peak P by ~50ms, dip to 0.7 by ~75ms,
// recover to 1.0 by ~125ms, total 250-300ms", writing rate every 5ms. Volume
// is pinned to 1.0 for the duration, independent of the rate volume curve.
func (c *Controller) runOvershootCurve(target float64, log zerolog.Logger) {
	peak := overshootPeakMin + rand.Float64()*(overshootPeakMax-overshootPeakMin)
	total := overshootTotalMin + rand.Float64()*(overshootTotalMax-overshootTotalMin)
	log.Debug().Float64("peak", peak).Float64("total_ms", total).Msg("unpause overshoot curve")

	start := time.Now()
	ticker := time.NewTicker(stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		elapsed := float64(time.Since(start).Milliseconds())
		if elapsed >= total {
			c.state.SetRate(target)
			c.state.SetVolume(1.0)
			return
		}

		c.state.SetRate(overshootRate(elapsed, peak))
		c.state.SetVolume(1.0)
	}
}

// overshootRate is the piecewise curve value at elapsed ms: rise 0→peak over
// [0, overshootRiseMs], dip peak→overshootDipTo over
// [overshootRiseMs, overshootDipMs], recover overshootDipTo→1.0 over
// [overshootDipMs, overshootRecover], then hold at 1.0.
func overshootRate(elapsed, peak float64) float64 {
	switch {
	case elapsed < overshootRiseMs:
		return lerp(0, peak, elapsed/overshootRiseMs)
	case elapsed < overshootDipMs:
		t := (elapsed - overshootRiseMs) / (overshootDipMs - overshootRiseMs)
		return lerp(peak, overshootDipTo, t)
	case elapsed < overshootRecover:
		t := (elapsed - overshootDipMs) / (overshootRecover - overshootDipMs)
		return lerp(overshootDipTo, 1.0, t)
	default:
		return 1.0
	}
}

// runLinearRamp ramps rate from 0 to target over 100ms in 5ms steps.
func (c *Controller) runLinearRamp(target float64) {
	start := time.Now()
	ticker := time.NewTicker(stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
		}

		elapsed := float64(time.Since(start).Milliseconds())
		if elapsed >= linearRampMs {
			c.state.SetRate(target)
			c.state.SetVolume(volumeForRate(target))
			return
		}

		rate := lerp(0, target, elapsed/linearRampMs)
		c.state.SetRate(rate)
		c.state.SetVolume(volumeForRate(rate))
	}
}

// volumeForRate applies the rate-keyed envelope: full volume in the normal
// playback band, fading out near pause, and tapering at high shuttle speeds
// so the pitched-up audio doesn't dominate.
func volumeForRate(rate float64) float64 {
	r := absF(rate)
	switch {
	case r <= 0.3:
		return r / 0.3
	case r < 7:
		return 1.0
	case r < 10:
		return lerp(1.0, 0.15, (r-7)/3)
	case r <= 24:
		return lerp(0.15, 0.05, (r-10)/14)
	default:
		return 0.05
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
