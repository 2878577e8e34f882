package decode

import (
	"sync/atomic"

	"tapescrub/internal/avdecode"
	"tapescrub/internal/codecpolicy"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
)

// FullRes decodes a narrow window of full-resolution frames from the
// original source file, preferring hardware acceleration.
type FullRes struct {
	path     string
	preferHW bool
	stop     atomic.Bool
}

// NewFullRes opens no file yet. codec decides whether hardware acceleration
// is worth attempting for this stream (codecpolicy.PreferHardware).
func NewFullRes(path string, codec codecpolicy.CodecType) *FullRes {
	return &FullRes{path: path, preferHW: codec.PreferHardware()}
}

func (f *FullRes) Stop()  { f.stop.Store(true) }
func (f *FullRes) Reset() { f.stop.Store(false) }

// DecodeRange decodes forward from one second before slot s's timestamp
// (clamped to >=0) and stores decoded frames into the *next* output slot
// starting at s, promoting Type to FullRes. It stops once the output index
// exceeds e or a cooperative stop is requested.
func (f *FullRes) DecodeRange(idx *frameindex.Index, s, e int) error {
	log := logging.For("fullres-decoder")
	if s < 0 {
		s = 0
	}
	if e >= len(idx.Slots) {
		e = len(idx.Slots) - 1
	}
	if s > e {
		return nil
	}

	dec, err := avdecode.Open(f.path, avdecode.OpenOptions{PreferHW: f.preferHW})
	if err != nil {
		log.Error().Err(err).Msg("failed to open source file for full-res window")
		return err
	}
	defer dec.Close()

	if dec.UsingHW {
		log.Debug().Msg("hardware-accelerated decode path engaged")
	} else {
		log.Debug().Msg("software decode path (single-threaded)")
	}

	seekTargetMs := idx.Slots[s].TimeMs - 1000.0
	if seekTargetMs < 0 {
		seekTargetMs = 0
	}
	if err := dec.SeekMs(seekTargetMs); err != nil {
		log.Debug().Err(err).Msg("seek failed, trusting PTS matching from container start")
	}

	segmentStartMs := idx.Slots[s].TimeMs
	out := s
	for out <= e {
		if f.stop.Load() {
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

		// Discard frames decoded purely to warm the decoder state before the
		// segment actually begins.
		if frame.TimeMs < segmentStartMs-1.0 {
			frame.Ref.Release()
			continue
		}

		slot := idx.Slots[out]
		slot.IsDecoding.Store(true)
		slot.SetFullRes(frame.Ref, frame.Format)
		slot.IsDecoding.Store(false)
		out++
	}
	return nil
}

// RemoveHighResFrames releases full-res frames for slots in [s,e] that fall
// outside [windowS, windowE], downgrading Type to LowRes (if present) or
// Empty.
func RemoveHighResFrames(idx *frameindex.Index, s, e, windowS, windowE int) {
	if s < 0 {
		s = 0
	}
	if e >= len(idx.Slots) {
		e = len(idx.Slots) - 1
	}
	for i := s; i <= e; i++ {
		if i >= windowS && i <= windowE {
			continue
		}
		idx.Slots[i].ClearFullRes()
	}
}

// ClearHighResFrames releases full-res frames across the whole index, used
// on speed-crossing events (jumping to a high scrub rate abandons the
// full-res window entirely).
func ClearHighResFrames(idx *frameindex.Index) {
	for _, slot := range idx.Slots {
		slot.ClearFullRes()
	}
}
