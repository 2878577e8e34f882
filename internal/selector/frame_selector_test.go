package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapescrub/internal/avdecode"
	"tapescrub/internal/frameindex"
)

func buildIndex(n int) *frameindex.Index {
	slots := make([]*frameindex.Slot, n)
	for i := range slots {
		slots[i] = &frameindex.Slot{TimeMs: float64(i) * 33.3}
	}
	return &frameindex.Index{Slots: slots}
}

func TestSelectAtNormalRateUsesBestTierOnFirstSelection(t *testing.T) {
	idx := buildIndex(3)
	require.True(t, idx.Slots[0].SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	sel := New()
	res := sel.Select(idx, 0, 1.0, false, false)
	assert.Equal(t, frameindex.Cached, res.Tier)
}

func TestStickyHysteresisRequiresTwoTicksToUpgrade(t *testing.T) {
	idx := buildIndex(3)
	require.True(t, idx.Slots[0].SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	sel := New()
	first := sel.Select(idx, 0, 1.0, false, false)
	assert.Equal(t, frameindex.Cached, first.Tier)

	// A better tier appears; the selector should hold cached for one more
	// tick before committing to the upgrade.
	require.True(t, idx.Slots[0].SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	second := sel.Select(idx, 0, 1.0, false, false)
	assert.Equal(t, frameindex.Cached, second.Tier, "first tick wanting an upgrade should not switch yet")

	third := sel.Select(idx, 0, 1.0, false, false)
	assert.Equal(t, frameindex.LowRes, third.Tier, "second consecutive tick should commit the upgrade")
}

func TestStickyDowngradeIsImmediate(t *testing.T) {
	idx := buildIndex(3)
	require.True(t, idx.Slots[0].SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	sel := New()
	first := sel.Select(idx, 0, 1.0, false, false)
	assert.Equal(t, frameindex.LowRes, first.Tier)

	idx.Slots[0].ClearLowRes()
	require.True(t, idx.Slots[0].SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	second := sel.Select(idx, 0, 1.0, false, false)
	assert.Equal(t, frameindex.Cached, second.Tier, "downgrades should never be delayed by hysteresis")
}

func TestScrubAboveThresholdSearchesNeighbors(t *testing.T) {
	idx := buildIndex(5)
	require.True(t, idx.Slots[2].SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	sel := New()
	res := sel.Select(idx, 0, 5.0, false, false)
	assert.Equal(t, frameindex.LowRes, res.Tier)
	assert.Equal(t, 2, res.SlotIndex)
}

func TestScrubReversedSearchesBackward(t *testing.T) {
	idx := buildIndex(5)
	require.True(t, idx.Slots[0].SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))

	sel := New()
	res := sel.Select(idx, 3, 5.0, true, false)
	assert.Equal(t, frameindex.Cached, res.Tier)
	assert.Equal(t, 0, res.SlotIndex)
}

func TestScrubWithNoCoverageReturnsEmpty(t *testing.T) {
	idx := buildIndex(5)
	sel := New()
	res := sel.Select(idx, 2, 5.0, false, false)
	assert.Equal(t, frameindex.Empty, res.Tier)
}

func TestSelectOutOfRangeReturnsEmptyResult(t *testing.T) {
	idx := buildIndex(2)
	sel := New()
	res := sel.Select(idx, 10, 1.0, false, false)
	assert.Equal(t, frameindex.Empty, res.Tier)
	assert.Nil(t, res.Frame)
}
