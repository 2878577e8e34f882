package speed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVolumeForRateBands(t *testing.T) {
	assert.InDelta(t, 0.0, volumeForRate(0), 1e-9)
	assert.InDelta(t, 0.5, volumeForRate(0.15), 1e-9)
	assert.InDelta(t, 1.0, volumeForRate(0.3), 1e-9)
	assert.InDelta(t, 1.0, volumeForRate(1.0), 1e-9)
	assert.InDelta(t, 1.0, volumeForRate(6.99), 1e-9)
	assert.InDelta(t, 0.15, volumeForRate(10), 1e-9)
	assert.InDelta(t, 0.05, volumeForRate(24), 1e-9)
	assert.InDelta(t, 0.05, volumeForRate(100), 1e-9)
}

func TestVolumeForRateIsSymmetricInSign(t *testing.T) {
	for _, r := range []float64{0.1, 1.0, 5.0, 12.0, 30.0} {
		assert.Equal(t, volumeForRate(r), volumeForRate(-r))
	}
}

func TestOvershootRateCurveShape(t *testing.T) {
	const peak = 1.5

	assert.InDelta(t, 0.0, overshootRate(0, peak), 1e-9)
	assert.InDelta(t, peak, overshootRate(overshootRiseMs, peak), 1e-9)
	assert.InDelta(t, overshootDipTo, overshootRate(overshootDipMs, peak), 1e-9)
	assert.InDelta(t, 1.0, overshootRate(overshootRecover, peak), 1e-9)
	assert.InDelta(t, 1.0, overshootRate(overshootRecover+1000, peak), 1e-9)
}

func TestOvershootRateMidRiseIsBetweenZeroAndPeak(t *testing.T) {
	v := overshootRate(overshootRiseMs/2, 1.5)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 1.5)
}

func TestIntervalForHasSnappyExceptionAt3x(t *testing.T) {
	assert.Equal(t, tickIntervalFor3x, intervalFor(3.0))
	assert.Equal(t, tickInterval, intervalFor(1.0))
	assert.Equal(t, tickInterval, intervalFor(24.0))
}

func TestLerpEndpointsAndMidpoint(t *testing.T) {
	assert.InDelta(t, 2.0, lerp(2, 8, 0), 1e-9)
	assert.InDelta(t, 8.0, lerp(2, 8, 1), 1e-9)
	assert.InDelta(t, 5.0, lerp(2, 8, 0.5), 1e-9)
}

func TestAbsF(t *testing.T) {
	assert.Equal(t, 3.0, absF(3.0))
	assert.Equal(t, 3.0, absF(-3.0))
	assert.Equal(t, 0.0, absF(0.0))
}

func TestIntervalForReturnsDuration(t *testing.T) {
	assert.IsType(t, time.Duration(0), intervalFor(1.0))
}
