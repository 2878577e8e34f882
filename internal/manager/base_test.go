package manager

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSegmentChangedAlwaysTrueOnFirstCall(t *testing.T) {
	b := NewBase()
	assert.True(t, b.segmentChanged(5, 10))
}

func TestSegmentChangedDetectsCrossingSegmentBoundary(t *testing.T) {
	b := NewBase()
	b.segmentChanged(5, 10) // seeds lastFrame, segment 0

	assert.False(t, b.segmentChanged(7, 10), "still segment 0")
	assert.True(t, b.segmentChanged(12, 10), "now segment 1")
	assert.False(t, b.segmentChanged(15, 10), "still segment 1")
}

func TestLoadedSegmentBookkeeping(t *testing.T) {
	b := NewBase()
	assert.False(t, b.isLoaded(3))

	b.markLoaded(3)
	assert.True(t, b.isLoaded(3))

	b.markLoaded(7)
	got := b.loadedSet()
	sort.Ints(got)
	assert.Equal(t, []int{3, 7}, got)

	b.markUnloaded(3)
	assert.False(t, b.isLoaded(3))
	assert.True(t, b.isLoaded(7))
}

func TestNotifyIsNonBlockingWhenWakeAlreadyPending(t *testing.T) {
	b := NewBase()
	b.Notify()
	b.Notify() // must not block even though one wake is already queued

	assert.True(t, b.wait(time.Second))
}

func TestWaitReturnsFalseAfterStop(t *testing.T) {
	b := NewBase()
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(b.stopCh)
	}()
	assert.False(t, b.wait(time.Second))
}

func TestStoppedReflectsStopRequest(t *testing.T) {
	b := NewBase()
	assert.False(t, b.stopped())
	close(b.stopCh)
	assert.True(t, b.stopped())
}
