package manager

import (
	"math"
	"time"

	"tapescrub/internal/decode"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
	"tapescrub/internal/playhead"
)

// redecodeInterval is how long a full-res window decode stays fresh before
// the manager refreshes it, even with no playhead movement (handles the
// source continuing to render new content as the window ages).
const redecodeInterval = 18 * time.Second

// WindowSize returns the FPS-dependent full-res window size.
func WindowSize(fps float64) int {
	switch {
	case fps > 55:
		return 1400
	case fps > 45:
		return 1200
	case fps > 28:
		return 700
	default:
		return 600
	}
}

// FullRes maintains full-resolution coverage in a single right-biased
// window around the playhead, active only at ~1.0x forward.
type FullRes struct {
	*Base
	idx    *frameindex.Index
	dec    *decode.FullRes
	state  *playhead.State
	window int // FPS-dependent window size

	lastDecodeAt      time.Time
	haveDecoded       bool
	conditionsWereMet bool
	prevS, prevE      int
}

// NewFullRes wires a FullRes manager. window should be manager.WindowSize(fps).
func NewFullRes(idx *frameindex.Index, dec *decode.FullRes, state *playhead.State, window int) *FullRes {
	return &FullRes{Base: NewBase(), idx: idx, dec: dec, state: state, window: window}
}

// Run starts the worker goroutine, performing the documented initial decode
// (window centered at frame 0, right-biased) before entering the wait loop
// so the player shows a good first frame immediately.
func (m *FullRes) Run() {
	s, e := m.windowBounds(0)
	start := time.Now()
	if err := m.dec.DecodeRange(m.idx, s, e); err != nil {
		logging.For("fullres-manager").Warn().Err(err).Msg("initial full-res decode failed")
	} else {
		m.recordDecode("full_res", time.Since(start))
		m.markLoaded(0)
		m.recordLoaded()
		m.lastDecodeAt = time.Now()
		m.haveDecoded = true
		m.prevS, m.prevE = s, e
	}
	go m.loop()
}

func (m *FullRes) loop() {
	defer m.markDone()
	log := logging.For("fullres-manager")

	for {
		if !m.wait(150 * time.Millisecond) {
			return
		}
		if m.stopped() {
			return
		}

		frame := m.state.CurrentFrameIndex()
		rate := m.state.Rate()
		reverse := m.state.Reverse()
		conditionsMet := math.Abs(rate-1.0) < 0.01 && !reverse

		risingEdge := conditionsMet && !m.conditionsWereMet
		stale := conditionsMet && m.haveDecoded && time.Since(m.lastDecodeAt) >= redecodeInterval

		if conditionsMet && (risingEdge || stale || !m.haveDecoded) {
			s, e := m.windowBounds(frame)
			start := time.Now()
			if err := m.dec.DecodeRange(m.idx, s, e); err != nil {
				log.Warn().Err(err).Msg("full-res window decode failed")
			} else {
				m.recordDecode("full_res", time.Since(start))
				m.evictOutside(s, e)
				m.lastDecodeAt = time.Now()
				m.haveDecoded = true
				m.prevS, m.prevE = s, e
			}
		} else if !conditionsMet && m.conditionsWereMet {
			// Conditions just became false: the window is inactive, evict
			// everything so stale full-res frames don't linger.
			decode.ClearHighResFrames(m.idx)
			m.haveDecoded = false
			m.recordEvicted()
			log.Debug().Msg("full-res conditions no longer met, window cleared")
		}

		m.conditionsWereMet = conditionsMet
	}
}

// windowBounds computes a right-biased window: 10% of frames behind the
// playhead, 90% ahead.
func (m *FullRes) windowBounds(frame int) (s, e int) {
	behind := m.window / 10
	ahead := m.window - behind
	s = frame - behind
	e = frame + ahead
	if s < 0 {
		s = 0
	}
	if e >= len(m.idx.Slots) {
		e = len(m.idx.Slots) - 1
	}
	return s, e
}

// evictOutside only rescans the union of the previous and new window, not
// the whole index: full-res coverage is narrow, so this keeps eviction cost
// proportional to window size rather than file length.
func (m *FullRes) evictOutside(windowS, windowE int) {
	s, e := windowS, windowE
	if m.prevS < s {
		s = m.prevS
	}
	if m.prevE > e {
		e = m.prevE
	}
	decode.RemoveHighResFrames(m.idx, s, e, windowS, windowE)
}
