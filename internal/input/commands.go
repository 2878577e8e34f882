// Package input implements the unified command surface (§6): the same
// handful of operations reachable from keyboard, remote, or menu all funnel
// through these functions onto a shared playhead.State.
package input

import (
	"fmt"

	"tapescrub/internal/playererr"
	"tapescrub/internal/playhead"
)

// speedLadder is the fixed set of step speeds; step up/down moves one
// position in this slice regardless of the current rate's exact value.
var speedLadder = []float64{0.5, 1.0, 3.0, 10.0, 24.0}

// jogSpeed mirrors speed.JogSpeed; duplicated as a plain constant here so
// this package doesn't need to import speed just for one number.
const jogSpeed = 0.25

// resetGateThreshold and resetGateRestore implement the "raise to 24 during
// reset, restore to 16 once settled near 1.0" dance from the play/pause
// command.
const (
	resetGateThreshold = 24.0
	resetGateRestore   = 16.0
	settledEpsilon     = 0.1
	highRateThreshold  = 1.1
)

// Commands wraps a *playhead.State with the unified operations table. A
// render-loop observer (e.g. render.Driver.NotifyActivity) can be layered on
// top by calling NotifyActivity from whichever command handler invokes
// these.
type Commands struct {
	state     *playhead.State
	fps       float64
	markers   [5]float64
	haveMark  [5]bool
}

// New returns a Commands bound to state, with fps used for timecode parsing.
func New(state *playhead.State, fps float64) *Commands {
	return &Commands{state: state, fps: fps}
}

// TogglePlayPause implements the play/pause toggle: if the current rate is
// shuttling fast (|rate| > 1.1), the first press resets to normal forward
// playback (temporarily raising the speed gate to 24 so the Low/Cached
// Manager doesn't thrash while the rate eases down, then restoring it to 16
// once the rate has settled near 1.0). Otherwise it flips target_rate
// between 0 and 1.
func (c *Commands) TogglePlayPause() {
	rate := c.state.Rate()
	if absF(rate) > highRateThreshold {
		c.state.SetSpeedGateThreshold(resetGateThreshold)
		c.state.SetReverse(false)
		c.state.SetTargetRate(1.0)
		return
	}
	if c.state.TargetRate() == 0 {
		c.state.SetTargetRate(1.0)
	} else {
		c.state.SetTargetRate(0)
	}
}

// SettleGateIfNeeded restores the speed gate to its normal 16 once the rate
// has settled near 1.0 after a reset-to-normal triggered by
// TogglePlayPause. Intended to be polled once per speed-controller tick (or
// render tick); a no-op once already restored.
func (c *Commands) SettleGateIfNeeded() {
	if c.state.SpeedGateThreshold() != resetGateThreshold {
		return
	}
	if absF(c.state.Rate()-1.0) < settledEpsilon {
		c.state.SetSpeedGateThreshold(resetGateRestore)
	}
}

// StepSpeedUp moves target_rate to the next entry in the fixed ladder.
func (c *Commands) StepSpeedUp() {
	c.state.SetTargetRate(stepLadder(c.state.TargetRate(), +1))
}

// StepSpeedDown moves target_rate to the previous entry in the fixed ladder.
func (c *Commands) StepSpeedDown() {
	c.state.SetTargetRate(stepLadder(c.state.TargetRate(), -1))
}

func stepLadder(current float64, dir int) float64 {
	idx := 0
	best := -1.0
	for i, v := range speedLadder {
		if best < 0 || absF(v-current) < absF(speedLadder[idx]-current) {
			idx = i
			best = v
		}
	}
	idx += dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(speedLadder) {
		idx = len(speedLadder) - 1
	}
	return speedLadder[idx]
}

// ToggleReverse inverts is_reverse.
func (c *Commands) ToggleReverse() {
	c.state.ToggleReverse()
}

// JogForward/JogBackward set the jog flag and a jog-speed target in the
// chosen direction; JogRelease clears both and returns target to 0, matching
// a press+hold control.
func (c *Commands) JogForward() {
	c.state.SetJogBackward(false)
	c.state.SetJogForward(true)
	c.state.SetTargetRate(jogSpeed)
}

func (c *Commands) JogBackward() {
	c.state.SetJogForward(false)
	c.state.SetJogBackward(true)
	c.state.SetTargetRate(jogSpeed)
}

func (c *Commands) JogRelease() {
	c.state.SetJogForward(false)
	c.state.SetJogBackward(false)
	c.state.SetTargetRate(0)
}

// SeekToTimecode parses an "HHMMSSFF" (or shorter, left-padded) timecode,
// validates its fields against fps, and seeks.
func (c *Commands) SeekToTimecode(tc string, totalDurationS float64) error {
	seconds, err := ParseTimecode(tc, c.fps)
	if err != nil {
		return err
	}
	c.SeekToTime(seconds, totalDurationS)
	return nil
}

// SeekToTime clamps targetS to [0, totalDurationS] and publishes a seek.
func (c *Commands) SeekToTime(targetS, totalDurationS float64) {
	if targetS < 0 {
		targetS = 0
	}
	if targetS > totalDurationS {
		targetS = totalDurationS
	}
	c.state.RequestSeek(targetS)
}

// VolumeUp/VolumeDown step volume by 0.1, clamped to [0,1] (State.SetVolume
// already clamps).
func (c *Commands) VolumeUp()   { c.state.SetVolume(c.state.Volume() + 0.1) }
func (c *Commands) VolumeDown() { c.state.SetVolume(c.state.Volume() - 0.1) }

// SetMarker stores the current authoritative time in slot n (0-4).
func (c *Commands) SetMarker(n int) error {
	if n < 0 || n >= len(c.markers) {
		return fmt.Errorf("input: marker slot %d out of range", n)
	}
	c.markers[n] = c.state.CurrentTimeS()
	c.haveMark[n] = true
	return nil
}

// JumpToMarker seeks to the time stored in slot n (0-4), clamped to
// [0, totalDurationS]. Returns an error if the slot was never set.
func (c *Commands) JumpToMarker(n int, totalDurationS float64) error {
	if n < 0 || n >= len(c.markers) {
		return fmt.Errorf("input: marker slot %d out of range", n)
	}
	if !c.haveMark[n] {
		return fmt.Errorf("input: marker slot %d not set", n)
	}
	c.SeekToTime(c.markers[n], totalDurationS)
	return nil
}

// ParseTimecode parses "HHMMSSFF", or a shorter left-padded variant up to 8
// digits, into seconds at the given fps. Fields are validated: hours<24,
// minutes<60, seconds<60, frames<fps.
func ParseTimecode(tc string, fps float64) (float64, error) {
	if len(tc) == 0 || len(tc) > 8 {
		return 0, playererr.Wrap(playererr.ErrSeek, fmt.Errorf("input: timecode %q must be 1-8 digits", tc))
	}
	for _, r := range tc {
		if r < '0' || r > '9' {
			return 0, playererr.Wrap(playererr.ErrSeek, fmt.Errorf("input: timecode %q must be all digits", tc))
		}
	}
	padded := fmt.Sprintf("%08s", tc)

	var hh, mm, ss, ff int
	if _, err := fmt.Sscanf(padded, "%2d%2d%2d%2d", &hh, &mm, &ss, &ff); err != nil {
		return 0, playererr.Wrap(playererr.ErrSeek, err)
	}

	if hh >= 24 || mm >= 60 || ss >= 60 || float64(ff) >= fps {
		return 0, playererr.Wrap(playererr.ErrSeek, fmt.Errorf("input: timecode %q out of range for %.3f fps", tc, fps))
	}

	seconds := float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(ff)/fps
	return seconds, nil
}

// FormatTimecode is ParseTimecode's inverse: seconds -> "HHMMSSFF" at fps.
// Used by the round-trip property between seek-to-time and seek-to-timecode.
func FormatTimecode(seconds, fps float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalSeconds := int64(seconds)
	var ff int64
	if fps > 0 {
		ff = int64((seconds-float64(totalSeconds))*fps + 0.5)
		if float64(ff) >= fps {
			ff = 0
			totalSeconds++
		}
	}

	ss := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	mm := totalMinutes % 60
	hh := totalMinutes / 60

	return fmt.Sprintf("%02d%02d%02d%02d", hh, mm, ss, ff)
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
