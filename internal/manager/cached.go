package manager

import (
	"time"

	ratelimit "golang.org/x/time/rate"

	"tapescrub/internal/decode"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
	"tapescrub/internal/playhead"
)

// preloadHintInterval caps how often maybeHintPreload re-sends a hint for
// the same crossing, so a manager stalled for several ticks past 75% doesn't
// spam the hint channel once its buffer drains.
const preloadHintInterval = 2 * time.Second

// CachedSegmentSize is the default segment size for sparse-anchor coverage;
// FPS-adjusted callers may pass a value in [1250, 3000] instead.
const CachedSegmentSize = 2500

// Cached maintains sparse-anchor coverage in larger segments for fast
// scrubbing, and emits a preload hint once the playhead crosses 75% of the
// current segment.
type Cached struct {
	*Base
	idx     *frameindex.Index
	dec     *decode.Cached
	state   *playhead.State
	segSize int

	preloadHint   chan int // buffered 1; adjacent segment index, non-blocking send
	hintThrottle  *ratelimit.Limiter
}

// NewCached wires a Cached manager. segSize defaults to CachedSegmentSize
// (FPS-adjusted callers pass their own, clamped to [1250,3000] by the
// caller).
func NewCached(idx *frameindex.Index, dec *decode.Cached, state *playhead.State, segSize int) *Cached {
	if segSize <= 0 {
		segSize = CachedSegmentSize
	}
	return &Cached{
		Base:         NewBase(),
		idx:          idx,
		dec:          dec,
		state:        state,
		segSize:      segSize,
		preloadHint:  make(chan int, 1),
		hintThrottle: ratelimit.NewLimiter(ratelimit.Every(preloadHintInterval), 1),
	}
}

// PreloadHints exposes the channel of "adjacent segment is worth warming"
// signals. Nothing in this module drains it; sends are non-blocking, so
// hints are dropped while the one-slot buffer is full.
func (m *Cached) PreloadHints() <-chan int { return m.preloadHint }

func (m *Cached) Run() { go m.loop() }

func (m *Cached) loop() {
	defer m.markDone()
	log := logging.For("cached-manager")

	var lastReverse bool
	haveLast := false

	for {
		if !m.wait(150 * time.Millisecond) {
			return
		}
		if m.stopped() {
			return
		}

		frame := m.state.CurrentFrameIndex()
		reverse := m.state.Reverse()

		segChanged := m.segmentChanged(frame, m.segSize)
		dirChanged := haveLast && reverse != lastReverse
		lastReverse = reverse
		haveLast = true

		if segChanged || dirChanged {
			m.reconcile(frame, reverse)
		}

		m.maybeHintPreload(frame, reverse)
		log.Trace().Int("frame", frame).Msg("cached manager tick")
	}
}

func (m *Cached) reconcile(frame int, reverse bool) {
	cur := frame / m.segSize
	var neighbor int
	if reverse {
		neighbor = cur - 1
	} else {
		neighbor = cur + 1
	}
	wanted := map[int]bool{cur: true, neighbor: true}

	for _, seg := range m.loadedSet() {
		if !wanted[seg] {
			m.unload(seg)
		}
	}
	for _, seg := range []int{cur, neighbor} {
		if seg < 0 || m.isLoaded(seg) || m.stopped() {
			continue
		}
		m.load(seg)
	}
}

func (m *Cached) maybeHintPreload(frame int, reverse bool) {
	cur := frame / m.segSize
	offset := frame - cur*m.segSize
	fraction := float64(offset) / float64(m.segSize)

	var neighbor int
	crossed := false
	if reverse {
		// Crossing 75% means within the first 25% counting from the
		// segment's reverse-playback entry point.
		if fraction <= 0.25 {
			crossed = true
		}
		neighbor = cur - 1
	} else {
		if fraction >= 0.75 {
			crossed = true
		}
		neighbor = cur + 1
	}
	if !crossed || !m.hintThrottle.Allow() {
		return
	}
	select {
	case m.preloadHint <- neighbor:
	default:
	}
}

func (m *Cached) load(seg int) {
	s := seg * m.segSize
	e := s + m.segSize - 1
	if e >= len(m.idx.Slots) {
		e = len(m.idx.Slots) - 1
	}
	if s > e {
		return
	}
	start := time.Now()
	if err := m.dec.DecodeRange(m.idx, s, e); err != nil {
		logging.For("cached-manager").Warn().Err(err).Int("segment", seg).Msg("segment load failed")
		return
	}
	m.recordDecode("cached", time.Since(start))
	m.markLoaded(seg)
	m.recordLoaded()
}

func (m *Cached) unload(seg int) {
	s := seg * m.segSize
	e := s + m.segSize - 1
	if e >= len(m.idx.Slots) {
		e = len(m.idx.Slots) - 1
	}
	for i := s; i <= e && i >= 0 && i < len(m.idx.Slots); i++ {
		m.idx.Slots[i].ClearCached()
	}
	m.markUnloaded(seg)
	m.recordEvicted()
}
