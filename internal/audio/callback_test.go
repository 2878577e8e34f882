package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapescrub/internal/playhead"
)

func TestCatmullRomPassesThroughControlPoints(t *testing.T) {
	assert.InDelta(t, 1.0, catmullRom(0, 1, 2, 3, 0), 1e-9)
	assert.InDelta(t, 2.0, catmullRom(0, 1, 2, 3, 1), 1e-9)
}

func TestCatmullRomInterpolatesLinearRampExactly(t *testing.T) {
	// A uniform Catmull-Rom spline reproduces a linear sequence exactly at
	// any t, since the spline's tangents match the constant slope.
	for _, tt := range []float64{0, 0.25, 0.5, 0.75, 1} {
		got := catmullRom(0, 1, 2, 3, tt)
		want := 1 + tt
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestClampS16Saturates(t *testing.T) {
	assert.Equal(t, int16(32767), clampS16(2.0))
	assert.Equal(t, int16(-32768), clampS16(-2.0))
	assert.Equal(t, int16(0), clampS16(0))
}

func newTestBuffer(t *testing.T, durationS float64, sampleRate int) *Buffer {
	t.Helper()
	buf, err := NewBuffer(durationS, sampleRate)
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	return buf
}

func TestRenderProducesSilenceBeforeDecodeCatchesUp(t *testing.T) {
	buf := newTestBuffer(t, 1.0, 48000)
	state := playhead.New()
	cb := NewCallback(buf, state, 1.0)

	out := make([]int16, 20)
	cb.Render(out)
	for _, s := range out {
		assert.Equal(t, int16(0), s)
	}
	assert.Equal(t, int64(10), cb.Underruns())
}

func TestRenderProducesSilenceAtZeroRate(t *testing.T) {
	buf := newTestBuffer(t, 1.0, 48000)
	state := playhead.New()
	state.SetRate(0)
	cb := NewCallback(buf, state, 1.0)

	for i := int64(0); i < 10; i++ {
		buf.WritePair(i, 1000, -1000)
	}

	out := []int16{1, 2, 3, 4}
	cb.Render(out)
	for _, s := range out {
		assert.Equal(t, int16(0), s)
	}
}

func TestRenderAdvancesPublishedClockWithDecodedAudio(t *testing.T) {
	buf := newTestBuffer(t, 1.0, 48000)
	state := playhead.New()
	cb := NewCallback(buf, state, 1.0)

	for i := int64(0); i < 200; i++ {
		buf.WritePair(i, 500, -500)
	}

	out := make([]int16, 20)
	cb.Render(out)

	assert.Greater(t, state.CurrentTimeS(), 0.0)
}

func TestRenderAdvancesBackwardWhenReverse(t *testing.T) {
	buf := newTestBuffer(t, 1.0, 48000)
	state := playhead.New()
	state.SetReverse(true)
	cb := NewCallback(buf, state, 1.0)

	for i := int64(0); i < 400; i++ {
		buf.WritePair(i, 500, -500)
	}

	// Start well inside the decoded range so reverse playback has room to
	// move backward without immediately clamping at the start boundary.
	state.RequestSeek(200.0 / 48000)
	out := make([]int16, 2)
	cb.Render(out)

	assert.Less(t, cb.position, 200.0, "reverse playback must move the read position backward, not forward")
}

func TestRenderConsumesPendingSeek(t *testing.T) {
	buf := newTestBuffer(t, 1.0, 48000)
	state := playhead.New()
	cb := NewCallback(buf, state, 1.0)

	for i := int64(0); i < 400; i++ {
		buf.WritePair(i, 100, -100)
	}

	state.RequestSeek(0.001) // 48 samples in at 48kHz
	out := make([]int16, 2)
	cb.Render(out)

	_, ok := state.ConsumeSeek()
	assert.False(t, ok, "Render should have already consumed the pending seek")
}
