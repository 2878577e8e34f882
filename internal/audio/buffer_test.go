package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWriteReadRoundTrip(t *testing.T) {
	buf, err := NewBuffer(1.0, 48000)
	require.NoError(t, err)
	defer buf.Close()

	require.True(t, buf.WritePair(0, 1234, -5678))
	l, r := buf.ReadPair(0)
	assert.Equal(t, int16(1234), l)
	assert.Equal(t, int16(-5678), r)
}

func TestBufferWritePairAdvancesDecodedPairs(t *testing.T) {
	buf, err := NewBuffer(1.0, 48000)
	require.NoError(t, err)
	defer buf.Close()

	assert.Equal(t, int64(0), buf.DecodedPairs.Load())
	buf.WritePair(0, 1, 1)
	assert.Equal(t, int64(1), buf.DecodedPairs.Load())
	buf.WritePair(5, 1, 1)
	assert.Equal(t, int64(6), buf.DecodedPairs.Load())
}

func TestBufferWritePairRejectsOutOfCapacityIndex(t *testing.T) {
	buf, err := NewBuffer(0.001, 48000)
	require.NoError(t, err)
	defer buf.Close()

	ok := buf.WritePair(buf.TotalPairs(), 0, 0)
	assert.False(t, ok, "writing at the capacity boundary should fail, not overrun")

	ok = buf.WritePair(-1, 0, 0)
	assert.False(t, ok)
}

func TestBufferHasMarginOverNominalDuration(t *testing.T) {
	const sampleRate = 48000
	buf, err := NewBuffer(1.0, sampleRate)
	require.NoError(t, err)
	defer buf.Close()

	assert.Greater(t, buf.TotalPairs(), int64(sampleRate), "margin should push capacity above the raw nominal duration")
}
