package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapescrub/internal/playhead"
)

func TestParseTimecodeRoundTrip(t *testing.T) {
	const fps = 23.976

	cases := []string{"00000000", "00010203", "01593523"}
	for _, tc := range cases {
		seconds, err := ParseTimecode(tc, fps)
		require.NoError(t, err)

		back := FormatTimecode(seconds, fps)
		assert.Equal(t, tc, back, "round trip for %q", tc)
	}
}

func TestParseTimecodeRejectsOutOfRange(t *testing.T) {
	_, err := ParseTimecode("99000000", 23.976)
	assert.Error(t, err)

	_, err = ParseTimecode("000060", 23.976)
	assert.Error(t, err)

	_, err = ParseTimecode("abcd", 23.976)
	assert.Error(t, err)
}

func TestStepSpeedLadder(t *testing.T) {
	state := playhead.New()
	cmds := New(state, 24)

	state.SetTargetRate(1.0)
	cmds.StepSpeedUp()
	assert.Equal(t, 3.0, state.TargetRate())

	cmds.StepSpeedUp()
	assert.Equal(t, 10.0, state.TargetRate())

	cmds.StepSpeedDown()
	assert.Equal(t, 3.0, state.TargetRate())
}

func TestStepSpeedLadderClampsAtEnds(t *testing.T) {
	state := playhead.New()
	cmds := New(state, 24)

	state.SetTargetRate(24.0)
	cmds.StepSpeedUp()
	assert.Equal(t, 24.0, state.TargetRate())

	state.SetTargetRate(0.5)
	cmds.StepSpeedDown()
	assert.Equal(t, 0.5, state.TargetRate())
}

func TestMarkerSetAndJump(t *testing.T) {
	state := playhead.New()
	cmds := New(state, 24)

	state.SetCurrentTimeS(12.5)
	require.NoError(t, cmds.SetMarker(2))

	state.SetCurrentTimeS(99)
	require.NoError(t, cmds.JumpToMarker(2, 120))

	target, ok := state.ConsumeSeek()
	require.True(t, ok)
	assert.Equal(t, 12.5, target)
}

func TestMarkerJumpUnsetReturnsError(t *testing.T) {
	state := playhead.New()
	cmds := New(state, 24)

	err := cmds.JumpToMarker(0, 120)
	assert.Error(t, err)
}

func TestJogSetsTargetRateAndDirection(t *testing.T) {
	state := playhead.New()
	cmds := New(state, 24)

	cmds.JogForward()
	assert.True(t, state.JogForward())
	assert.False(t, state.JogBackward())
	assert.Equal(t, jogSpeed, state.TargetRate())

	cmds.JogBackward()
	assert.True(t, state.JogBackward())
	assert.False(t, state.JogForward())

	cmds.JogRelease()
	assert.False(t, state.Jogging())
	assert.Equal(t, 0.0, state.TargetRate())
}
