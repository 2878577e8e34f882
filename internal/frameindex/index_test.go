package frameindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func indexWithTimes(times ...float64) *Index {
	slots := make([]*Slot, len(times))
	for i, tm := range times {
		slots[i] = &Slot{TimeMs: tm}
	}
	return &Index{Slots: slots}
}

func TestIndexOfEmptyIndexReturnsNegativeOne(t *testing.T) {
	idx := &Index{}
	assert.Equal(t, -1, idx.IndexOf(100))
}

func TestIndexOfExactMatch(t *testing.T) {
	idx := indexWithTimes(0, 33.3, 66.6, 100)
	assert.Equal(t, 2, idx.IndexOf(66.6))
}

func TestIndexOfBeforeFirstClampsToZero(t *testing.T) {
	idx := indexWithTimes(10, 20, 30)
	assert.Equal(t, 0, idx.IndexOf(-5))
}

func TestIndexOfAfterLastClampsToLastSlot(t *testing.T) {
	idx := indexWithTimes(10, 20, 30)
	assert.Equal(t, 2, idx.IndexOf(1000))
}

func TestIndexOfPicksNearerNeighbor(t *testing.T) {
	idx := indexWithTimes(0, 10, 20, 30)

	// 14 is 4 away from 10 and 6 away from 20: slot 1 (10) should win.
	assert.Equal(t, 1, idx.IndexOf(14))
	// 16 is 6 away from 10 and 4 away from 20: slot 2 (20) should win.
	assert.Equal(t, 2, idx.IndexOf(16))
}

func TestIndexOfTieBreaksToEarlierSlot(t *testing.T) {
	idx := indexWithTimes(0, 10, 20)
	// 15 is equidistant from 10 and 20; ties favor the earlier slot.
	assert.Equal(t, 1, idx.IndexOf(15))
}

func TestNearestDelegatesToIndexOf(t *testing.T) {
	idx := indexWithTimes(0, 10, 20)
	assert.Equal(t, idx.IndexOf(12), idx.Nearest(12))
}

func TestLenReflectsSlotCount(t *testing.T) {
	idx := indexWithTimes(0, 10, 20)
	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, 0, (&Index{}).Len())
}
