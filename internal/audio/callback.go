package audio

import (
	"math"
	"sync/atomic"

	"tapescrub/internal/playhead"
	"tapescrub/internal/telemetry"
)

// Callback is the realtime pull-model audio render path: it is called
// directly from the audio backend's device thread and must never block or
// allocate. All of its mutable fields are callback-owned (touched from no
// other goroutine); the only cross-thread reads are atomic loads through buf
// and state.
type Callback struct {
	buf       *Buffer
	state     *playhead.State
	durationS float64

	position float64 // fractional stereo-pair index

	beepPhase         float64
	beepSampleCounter int64

	underruns atomic.Int64

	metrics *telemetry.Metrics
}

const (
	// silenceRateThreshold is the |rate| floor below which the engine emits
	// silence rather than attempt interpolation at a near-zero step.
	silenceRateThreshold = 0.001

	// boundary beep: 2kHz tone at roughly -34dBFS, gated on/off in 48ms
	// bursts, only while the user is holding a high-speed shuttle against
	// either end of the stream.
	beepFreqHz      = 2000.0
	beepAmplitude   = 0.02
	beepOnMs        = 48.0
	beepOffMs       = 48.0
	beepTriggerRate = 1.5

	sampleScale = 32768.0
)

// NewCallback constructs callback state bound to buf and state. durationS is
// the source's nominal duration, used only to clamp the published clock.
func NewCallback(buf *Buffer, state *playhead.State, durationS float64) *Callback {
	return &Callback{buf: buf, state: state, durationS: durationS}
}

// Underruns returns the count of output frames where the read-ahead caught
// up with the decode thread and fell back to silence.
func (c *Callback) Underruns() int64 { return c.underruns.Load() }

// SetMetrics wires optional Prometheus observability into the render path.
func (c *Callback) SetMetrics(m *telemetry.Metrics) { c.metrics = m }

// Render fills out (interleaved S16 stereo) for one device callback
// invocation. It is the sole writer of playhead.State's current-time clock:
// everything else in the system treats CurrentTimeS as read-only.
func (c *Callback) Render(out []int16) {
	frames := len(out) / 2
	if frames == 0 {
		return
	}

	if target, ok := c.state.ConsumeSeek(); ok {
		c.position = target * float64(c.buf.SampleRate)
	}

	rate := c.state.Rate()
	if c.state.Reverse() {
		rate = -rate
	}
	if math.Abs(rate) < silenceRateThreshold {
		for i := range out {
			out[i] = 0
		}
		return
	}

	decoded := c.buf.DecodedPairs.Load()
	volume := c.state.Volume()

	var atStart, atEnd bool
	for f := 0; f < frames; f++ {
		idx := int64(math.Floor(c.position))
		frac := c.position - math.Floor(c.position)

		// Catmull-Rom needs one neighbor on each side of the interpolated
		// span; bail to silence if the decode thread hasn't caught up.
		if idx < 1 || idx+2 >= decoded {
			out[2*f] = 0
			out[2*f+1] = 0
			c.underruns.Add(1)
			if c.metrics != nil {
				c.metrics.AudioUnderruns.Inc()
			}
		} else {
			l := catmullRom(c.tap(idx-1, 0), c.tap(idx, 0), c.tap(idx+1, 0), c.tap(idx+2, 0), frac)
			r := catmullRom(c.tap(idx-1, 1), c.tap(idx, 1), c.tap(idx+1, 1), c.tap(idx+2, 1), frac)
			out[2*f] = clampS16(l * volume)
			out[2*f+1] = clampS16(r * volume)
		}

		c.position += rate
		maxPos := float64(decoded - 1)
		if maxPos < 0 {
			maxPos = 0
		}
		if c.position <= 0 {
			c.position = 0
			atStart = true
		}
		if c.position >= maxPos {
			c.position = maxPos
			atEnd = true
		}
	}

	if (atStart || atEnd) && math.Abs(c.state.TargetRate()) >= beepTriggerRate {
		c.mixBeep(out, frames)
	}

	t := c.position / float64(c.buf.SampleRate)
	if maxT := c.durationS - 0.01; t > maxT {
		t = maxT
	}
	if t < 0 {
		t = 0
	}
	c.state.SetCurrentTimeS(t)
}

// tap reads one channel of one stereo pair, scaled to roughly [-1, 1].
func (c *Callback) tap(idx int64, channel int) float64 {
	l, r := c.buf.ReadPair(idx)
	if channel == 0 {
		return float64(l) / sampleScale
	}
	return float64(r) / sampleScale
}

// catmullRom is the standard uniform cubic Catmull-Rom spline through p1..p2
// at parameter t in [0,1], using p0 and p3 as the tangent-defining neighbors.
func catmullRom(p0, p1, p2, p3, t float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

// clampS16 converts a roughly [-1,1]-scaled float sample back to int16,
// saturating rather than wrapping on overshoot.
func clampS16(f float64) int16 {
	v := f * sampleScale
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// mixBeep overlays the boundary tone onto an already-rendered block, gated
// into on/off bursts so a held shuttle against the end of the stream produces
// a pulsing beep rather than a continuous tone.
func (c *Callback) mixBeep(out []int16, frames int) {
	sr := float64(c.buf.SampleRate)
	onSamples := int64(beepOnMs / 1000 * sr)
	offSamples := int64(beepOffMs / 1000 * sr)
	cycle := onSamples + offSamples
	if cycle <= 0 {
		return
	}
	phaseInc := 2 * math.Pi * beepFreqHz / sr

	for f := 0; f < frames; f++ {
		pos := c.beepSampleCounter % cycle
		if pos < onSamples {
			s := beepAmplitude * math.Sin(c.beepPhase)
			c.beepPhase += phaseInc
			out[2*f] = clampS16(float64(out[2*f])/sampleScale + s)
			out[2*f+1] = clampS16(float64(out[2*f+1])/sampleScale + s)
		}
		c.beepSampleCounter++
	}
}
