// Package manager drives the three decoder subsystems over segment-sized (or
// windowed) regions around the playhead. Each manager owns a dedicated
// worker goroutine that wakes on a playhead-change signal or a timeout,
// exactly like the teacher's async result-channel pattern
// (screens/videoPlayer/types.go's prefetchResultCh/switchResultCh) generalized
// into a reusable wake/stop pair instead of one-shot result channels.
package manager

import (
	"sync"
	"time"

	"tapescrub/internal/telemetry"
)

// Base is the concurrency scaffold shared by all three managers: a
// dedicated goroutine, a non-blocking wake signal, cooperative stop, and a
// mutex-guarded loaded-segment set.
type Base struct {
	mu             sync.Mutex
	loadedSegments map[int]bool
	lastFrame      int
	haveLastFrame  bool

	wakeCh chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	stopOnce sync.Once

	metrics *telemetry.Metrics
	label   string
}

// SetMetrics wires optional Prometheus observability in under label (e.g.
// "low_cached", "cached", "full_res"). Nil-safe if never called: every
// record* helper below no-ops without it.
func (b *Base) SetMetrics(m *telemetry.Metrics, label string) {
	b.metrics = m
	b.label = label
}

// recordDecode observes one DecodeRange call's duration against the
// decode_duration_seconds histogram, tagged by tier.
func (b *Base) recordDecode(tier string, d time.Duration) {
	if b.metrics == nil {
		return
	}
	b.metrics.DecodeDuration.WithLabelValues(tier).Observe(d.Seconds())
}

// recordLoaded increments segments_loaded_total for this manager.
func (b *Base) recordLoaded() {
	if b.metrics == nil {
		return
	}
	b.metrics.SegmentsLoaded.WithLabelValues(b.label).Inc()
}

// recordEvicted increments segments_evicted_total for this manager.
func (b *Base) recordEvicted() {
	if b.metrics == nil {
		return
	}
	b.metrics.SegmentsEvicted.WithLabelValues(b.label).Inc()
}

// NewBase constructs a fresh, unstarted Base.
func NewBase() *Base {
	return &Base{
		loadedSegments: make(map[int]bool),
		wakeCh:         make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Notify wakes the manager's loop because current_frame (or direction/rate)
// changed. Non-blocking: if a wake is already pending, this is a no-op.
func (b *Base) Notify() {
	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
}

// Stop requests cooperative shutdown and blocks until the worker goroutine
// has returned, matching the "stop() sets flag, notifies, joins" contract.
// Safe to call more than once.
func (b *Base) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.done
}

// wait blocks until either a wake signal arrives, stop is requested, or
// timeout elapses, mirroring a condvar-with-timeout without busy-polling.
// Returns false if stop was requested.
func (b *Base) wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.stopCh:
		return false
	case <-b.wakeCh:
		return true
	case <-timer.C:
		return true
	}
}

// stopped reports whether shutdown has been requested, for mid-loop checks
// inside a reconcile pass.
func (b *Base) stopped() bool {
	select {
	case <-b.stopCh:
		return true
	default:
		return false
	}
}

// markDone must be deferred by the owning manager's run loop.
func (b *Base) markDone() { close(b.done) }

// segmentChanged reports whether frame falls in a different segment from
// the last processed frame, suppressing no-op wakes. Always true on the
// first call. Direction changes are not tracked here; callers check them.
func (b *Base) segmentChanged(frame, segSize int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	seg := frame / segSize
	if !b.haveLastFrame {
		b.haveLastFrame = true
		b.lastFrame = frame
		return true
	}
	changed := seg != b.lastFrame/segSize
	b.lastFrame = frame
	return changed
}

// isLoaded/markLoaded/markUnloaded/loadedSet give managers a guarded view of
// which segments are currently resident.
func (b *Base) isLoaded(seg int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadedSegments[seg]
}

func (b *Base) markLoaded(seg int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadedSegments[seg] = true
}

func (b *Base) markUnloaded(seg int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.loadedSegments, seg)
}

func (b *Base) loadedSet() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, 0, len(b.loadedSegments))
	for seg := range b.loadedSegments {
		out = append(out, seg)
	}
	return out
}
