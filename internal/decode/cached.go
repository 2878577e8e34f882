package decode

import (
	"math"
	"sync/atomic"

	"tapescrub/internal/avdecode"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
)

// warmupFrames is the number of decoded frames discarded at the start of a
// cached-decode pass to avoid storing the initial green/garbage frames some
// codecs emit right after a seek.
const warmupFrames = 2

// Stride returns the FPS-dependent anchor-frame stride: roughly one kept
// frame per 0.2s of content, with an explicit table for common rates and a
// fps/5 fallback clamped to [3,15].
func Stride(fps float64) int {
	switch {
	case math.Abs(fps-60) < 1:
		return 12
	case math.Abs(fps-50) < 1:
		return 10
	case math.Abs(fps-30) < 1:
		return 6
	case math.Abs(fps-25) < 0.5:
		return 5
	case math.Abs(fps-23.976) < 0.5:
		return 4
	}
	stride := int(fps/5 + 0.5)
	if stride < 3 {
		return 3
	}
	if stride > 15 {
		return 15
	}
	return stride
}

// Cached decodes the low-res companion file at a sparse stride, producing
// anchor frames for fast-scrub coverage.
type Cached struct {
	path   string
	stride int
	stop   atomic.Bool
}

// NewCached builds a Cached decoder for companionPath using Stride(fps) as
// the keep-one-in-N policy.
func NewCached(companionPath string, fps float64) *Cached {
	return &Cached{path: companionPath, stride: Stride(fps)}
}

func (c *Cached) Stop()  { c.stop.Store(true) }
func (c *Cached) Reset() { c.stop.Store(false) }

// DecodeRange seeks near idx.Slots[s], warms up, then walks forward decoding
// every frame but committing only every stride-th one, placed in the
// nearest slot by time and stored in Cached tier (only if that slot is
// currently Empty).
func (c *Cached) DecodeRange(idx *frameindex.Index, s, e int) error {
	log := logging.For("cached-decoder")
	if s < 0 {
		s = 0
	}
	if e >= len(idx.Slots) {
		e = len(idx.Slots) - 1
	}
	if s > e {
		return nil
	}

	dec, err := avdecode.Open(c.path, avdecode.OpenOptions{})
	if err != nil {
		log.Error().Err(err).Msg("failed to open companion file for cached pass")
		return err
	}
	defer dec.Close()

	if err := dec.SeekMs(idx.Slots[s].TimeMs); err != nil {
		log.Debug().Err(err).Msg("seek failed, decoding linearly")
	}

	endMs := idx.Slots[e].TimeMs
	warmed := 0
	strideCounter := 0

	for {
		if c.stop.Load() {
			return nil
		}
		frame, err := dec.Next()
		if err != nil {
			log.Debug().Err(err).Msg("decode error, frame skipped")
			continue
		}
		if frame == nil {
			return nil // EOF
		}
		if warmed < warmupFrames {
			warmed++
			frame.Ref.Release()
			continue
		}
		if frame.TimeMs > endMs {
			frame.Ref.Release()
			return nil
		}

		strideCounter++
		if strideCounter < c.stride {
			frame.Ref.Release()
			continue
		}
		strideCounter = 0

		if !frame.Ref.Sane() {
			log.Warn().Msg("discarding corrupt cached candidate frame")
			frame.Ref.Release()
			continue
		}

		target := idx.Nearest(frame.TimeMs)
		if target < s || target > e {
			frame.Ref.Release()
			continue
		}

		slot := idx.Slots[target]
		slot.IsDecoding.Store(true)
		if !slot.SetCached(frame.Ref, frame.Format) {
			frame.Ref.Release()
		}
		slot.IsDecoding.Store(false)
	}
}
