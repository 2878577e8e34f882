package render

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tapescrub/internal/frameindex"
	"tapescrub/internal/playhead"
	"tapescrub/internal/selector"
)

type fakeSink struct {
	mu    sync.Mutex
	calls []selector.Result
}

func (f *fakeSink) Render(res selector.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, res)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	calls atomicInt
}

type atomicInt struct {
	mu sync.Mutex
	n  int
}

func (a *atomicInt) inc() {
	a.mu.Lock()
	a.n++
	a.mu.Unlock()
}

func (a *atomicInt) load() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

func (f *fakeNotifier) Notify() { f.calls.inc() }

func buildTestIndex(n int) *frameindex.Index {
	slots := make([]*frameindex.Slot, n)
	for i := range slots {
		slots[i] = &frameindex.Slot{TimeMs: float64(i) * 33.3}
	}
	return &frameindex.Index{Slots: slots}
}

func TestDriverRendersEveryTickAndNotifiesOnFrameChange(t *testing.T) {
	idx := buildTestIndex(5)
	state := playhead.New()
	sink := &fakeSink{}
	notifier := &fakeNotifier{}

	d := New(idx, state, sink, notifier)
	go d.Run()

	time.Sleep(50 * time.Millisecond)
	d.Stop()

	assert.Greater(t, sink.count(), 0, "the sink should have received at least one render")
	assert.GreaterOrEqual(t, notifier.calls.load(), 1, "the first tick should always notify")
}

func TestDriverNotifiesAgainWhenClockMovesToNewSlot(t *testing.T) {
	idx := buildTestIndex(10)
	state := playhead.New()
	sink := &fakeSink{}
	notifier := &fakeNotifier{}

	d := New(idx, state, sink, notifier)
	go d.Run()

	time.Sleep(20 * time.Millisecond)
	state.SetCurrentTimeS(0.3) // well past slot 0's window, forces a new frame index
	time.Sleep(30 * time.Millisecond)
	d.Stop()

	assert.GreaterOrEqual(t, notifier.calls.load(), 2, "moving to a new slot should notify again")
}

func TestDriverForceUpdateDoesNotPanicWithEmptyIndex(t *testing.T) {
	idx := &frameindex.Index{Slots: nil}
	state := playhead.New()
	sink := &fakeSink{}

	d := New(idx, state, sink)
	go d.Run()

	d.ForceUpdate()
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	assert.Greater(t, sink.count(), 0)
}
