package manager

import (
	"math"
	"time"

	ratelimit "golang.org/x/time/rate"

	"tapescrub/internal/decode"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
	"tapescrub/internal/playhead"
)

// LowCachedSegmentSize is the manager-level unit of load/unload for low-res
// coverage.
const LowCachedSegmentSize = 2750

// LowCached maintains low-res coverage in a sliding window of segments
// around the playhead, and suspends entirely above the speed gate.
type LowCached struct {
	*Base
	idx     *frameindex.Index
	dec     *decode.LowRes
	state   *playhead.State
	segSize int

	lastRate     float64
	lastReverse  bool
	haveLastRate bool

	// throttle gates non-forced reconciles at a rate-dependent interval;
	// throttleAllows rewrites its Limit to match the current playback
	// rate's band before Allow() is consulted (only at 0.9x and above).
	throttle *ratelimit.Limiter
}

// NewLowCached wires a LowCached manager to idx/dec/state. segSize defaults
// to LowCachedSegmentSize if 0 is passed.
func NewLowCached(idx *frameindex.Index, dec *decode.LowRes, state *playhead.State, segSize int) *LowCached {
	if segSize <= 0 {
		segSize = LowCachedSegmentSize
	}
	return &LowCached{
		Base:     NewBase(),
		idx:      idx,
		dec:      dec,
		state:    state,
		segSize:  segSize,
		throttle: ratelimit.NewLimiter(ratelimit.Every(10*time.Second), 1),
	}
}

// Run starts the manager's worker goroutine. Call Stop to join it.
func (m *LowCached) Run() {
	go m.loop()
}

func (m *LowCached) loop() {
	defer m.markDone()
	log := logging.For("low-cached-manager")

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

		gate := m.state.SpeedGateThreshold()
		if math.Abs(rate) >= gate {
			if len(m.loadedSet()) > 0 {
				log.Debug().Float64("rate", rate).Msg("speed gate crossed, evicting all low-res coverage")
				m.evictAll()
			}
			m.lastRate = rate
			m.lastReverse = reverse
			m.haveLastRate = true
			continue
		}

		segChanged := m.segmentChanged(frame, m.segSize)
		dirChanged := m.haveLastRate && reverse != m.lastReverse
		significantRateChange := m.haveLastRate && math.Abs(rate-m.lastRate) > 0.5

		forceReconcile := segChanged || dirChanged || significantRateChange
		if !forceReconcile && !m.throttleAllows(rate) {
			m.lastRate = rate
			m.lastReverse = reverse
			m.haveLastRate = true
			continue
		}

		m.reconcile(frame, rate, reverse)
		m.lastRate = rate
		m.lastReverse = reverse
		m.haveLastRate = true
	}
}

// throttleAllows implements the rate-dependent reload throttle: faster
// playback reconciles more often because the playhead is covering more
// segments per second. The limiter's period is rewritten to match the
// current rate's band before each Allow() check.
func (m *LowCached) throttleAllows(currentRate float64) bool {
	abs := math.Abs(currentRate)
	if abs < 0.9 {
		return false // never reconcile on the throttle path below 0.9x
	}

	var interval time.Duration
	switch {
	case abs >= 7.8:
		interval = 1250 * time.Millisecond
	case abs >= 3.8:
		interval = 2500 * time.Millisecond
	case abs >= 1.8:
		interval = 5 * time.Second
	default:
		interval = 10 * time.Second
	}
	m.throttle.SetLimit(ratelimit.Every(interval))
	return m.throttle.Allow()
}

func (m *LowCached) targetSegments(frame int, rate float64, reverse bool) []int {
	cur := frame / m.segSize
	targets := []int{cur}
	if reverse {
		targets = append(targets, cur-1)
	} else {
		targets = append(targets, cur+1)
	}
	if math.Abs(rate) >= 1.8 {
		if reverse {
			targets = append(targets, cur-2)
		} else {
			targets = append(targets, cur+2)
		}
	}
	return targets
}

func (m *LowCached) reconcile(frame int, rate float64, reverse bool) {
	log := logging.For("low-cached-manager")
	targets := m.targetSegments(frame, rate, reverse)
	wanted := make(map[int]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}

	for _, seg := range m.loadedSet() {
		if !wanted[seg] {
			m.unload(seg)
		}
	}

	// Current segment first, then neighbors, matching "prioritize current
	// segment's load, then neighbors".
	cur := frame / m.segSize
	ordered := append([]int{cur}, targets...)
	seen := map[int]bool{}
	for _, seg := range ordered {
		if seen[seg] || seg < 0 {
			continue
		}
		seen[seg] = true
		if m.isLoaded(seg) {
			continue
		}
		if m.stopped() {
			return
		}
		m.load(seg)
	}
	log.Debug().Int("frame", frame).Ints("targets", targets).Msg("low-cached reconcile")
}

func (m *LowCached) load(seg int) {
	s := seg * m.segSize
	e := s + m.segSize - 1
	if e >= len(m.idx.Slots) {
		e = len(m.idx.Slots) - 1
	}
	if s > e {
		return
	}
	start := time.Now()
	if err := m.dec.DecodeRange(m.idx, s, e, 0, 0, false); err != nil {
		logging.For("low-cached-manager").Warn().Err(err).Int("segment", seg).Msg("segment load failed")
		return
	}
	m.recordDecode("low_res", time.Since(start))
	m.markLoaded(seg)
	m.recordLoaded()
}

func (m *LowCached) unload(seg int) {
	s := seg * m.segSize
	e := s + m.segSize - 1
	if e >= len(m.idx.Slots) {
		e = len(m.idx.Slots) - 1
	}
	if s <= e {
		decode.RemoveLowResFrames(m.idx, s, e)
	}
	m.markUnloaded(seg)
	m.recordEvicted()
}

func (m *LowCached) evictAll() {
	for _, seg := range m.loadedSet() {
		m.unload(seg)
	}
}
