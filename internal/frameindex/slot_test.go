package frameindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapescrub/internal/avdecode"
)

func TestSlotStartsEmpty(t *testing.T) {
	s := &Slot{}
	assert.Equal(t, Empty, s.Type())
	assert.True(t, s.HasTier(Empty))
	assert.False(t, s.HasTier(LowRes))
}

func TestSetLowResIsFirstWriterWins(t *testing.T) {
	s := &Slot{}
	require.True(t, s.SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	assert.Equal(t, LowRes, s.Type())

	assert.False(t, s.SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P), "second write to an occupied low_res slot must be rejected")
}

func TestSetFullResAlwaysOverwritesAndPromotes(t *testing.T) {
	s := &Slot{}
	require.True(t, s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	assert.Equal(t, Cached, s.Type())

	s.SetFullRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P)
	assert.Equal(t, FullRes, s.Type())

	// Overwriting full_res again must not panic or be rejected.
	s.SetFullRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P)
	assert.Equal(t, FullRes, s.Type())
}

func TestSetCachedNeverDowngradesBookkeeping(t *testing.T) {
	s := &Slot{}
	s.SetFullRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P)

	stored := s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P)
	assert.False(t, stored, "cached must not downgrade a slot already at a higher tier")
	assert.Equal(t, FullRes, s.Type())
}

func TestSetCachedAllowedWhenEmptyAndFirstWriterWins(t *testing.T) {
	s := &Slot{}
	assert.True(t, s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	assert.Equal(t, Cached, s.Type())

	assert.False(t, s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P), "cached is first-writer-wins like low_res")
}

func TestClearLowResDowngradesTypeWhenItWasDisplayed(t *testing.T) {
	s := &Slot{}
	require.True(t, s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	require.True(t, s.SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	assert.Equal(t, LowRes, s.Type())

	s.ClearLowRes()
	assert.Equal(t, Cached, s.Type(), "clearing low_res should fall back to the remaining cached handle")
}

func TestClearFullResFallsBackToLowRes(t *testing.T) {
	s := &Slot{}
	require.True(t, s.SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	s.SetFullRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P)
	assert.Equal(t, FullRes, s.Type())

	s.ClearFullRes()
	assert.Equal(t, LowRes, s.Type())
}

func TestClearAllTiersReturnsToEmpty(t *testing.T) {
	s := &Slot{}
	require.True(t, s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	s.ClearCached()
	assert.Equal(t, Empty, s.Type())
	assert.Equal(t, avdecode.PixFmtNone, s.Format())
}

func TestBestReturnsHighestTierPresent(t *testing.T) {
	s := &Slot{}
	require.True(t, s.SetCached(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	_, tier := s.Best()
	assert.Equal(t, Cached, tier)

	require.True(t, s.SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	_, tier = s.Best()
	assert.Equal(t, LowRes, tier)

	s.SetFullRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P)
	_, tier = s.Best()
	assert.Equal(t, FullRes, tier)
}

func TestAtReturnsFalseForAbsentTier(t *testing.T) {
	s := &Slot{}
	_, ok := s.At(LowRes)
	assert.False(t, ok)

	require.True(t, s.SetLowRes(&avdecode.FrameRef{}, avdecode.PixFmtYUV420P))
	_, ok = s.At(LowRes)
	assert.True(t, ok)
	_, ok = s.At(FullRes)
	assert.False(t, ok)
}

func TestTierStringNames(t *testing.T) {
	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "cached", Cached.String())
	assert.Equal(t, "low_res", LowRes.String())
	assert.Equal(t, "full_res", FullRes.String())
}
