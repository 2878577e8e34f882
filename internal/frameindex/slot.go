// Package frameindex holds the spine of the player: an ordered sequence of
// per-frame slots, each carrying up to three cached pixel representations of
// that frame, plus the construction pass that builds the sequence from a
// source file.
package frameindex

import (
	"sync"
	"sync/atomic"

	"tapescrub/internal/avdecode"
)

// Tier ranks the image quality/decode cost of a slot's best available frame.
type Tier int

const (
	Empty Tier = iota
	Cached
	LowRes
	FullRes
)

func (t Tier) String() string {
	switch t {
	case FullRes:
		return "full_res"
	case LowRes:
		return "low_res"
	case Cached:
		return "cached"
	default:
		return "empty"
	}
}

// Slot is one per source video frame. All mutation of the three frame
// handles and Type happens under Mu; IsDecoding is a standalone atomic so
// managers can poll decode-in-progress state without taking the slot lock.
type Slot struct {
	PTS      int64
	TimeBase avdecode.Rational
	TimeMs   float64 // immutable after index construction; the sort key

	IsDecoding atomic.Bool

	Mu       sync.Mutex
	fullRes  *avdecode.FrameRef
	lowRes   *avdecode.FrameRef
	cached   *avdecode.FrameRef
	typ      Tier
	format   avdecode.PixelFormat
}

// Type returns the slot's current best-available tier.
func (s *Slot) Type() Tier {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.typ
}

// Format returns the pixel format of whichever frame is currently backing
// Type() (HW surface format or planar YUV), so the renderer can branch on
// format rather than on tier.
func (s *Slot) Format() avdecode.PixelFormat {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.format
}

// Best returns a cloned reference to the highest-tier frame present, or nil
// if the slot is empty. The clone has its own lifetime independent of the
// slot; callers must Release it.
func (s *Slot) Best() (*avdecode.FrameRef, Tier) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	switch {
	case s.fullRes != nil:
		return s.fullRes.Clone(), FullRes
	case s.lowRes != nil:
		return s.lowRes.Clone(), LowRes
	case s.cached != nil:
		return s.cached.Clone(), Cached
	default:
		return nil, Empty
	}
}

// At returns a cloned reference to a specific tier if present.
func (s *Slot) At(tier Tier) (*avdecode.FrameRef, bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	switch tier {
	case FullRes:
		if s.fullRes != nil {
			return s.fullRes.Clone(), true
		}
	case LowRes:
		if s.lowRes != nil {
			return s.lowRes.Clone(), true
		}
	case Cached:
		if s.cached != nil {
			return s.cached.Clone(), true
		}
	}
	return nil, false
}

// SetLowRes stores frame as the slot's low_res handle, but only if low_res is
// currently empty (first-writer-wins, matching the Low-Res Decoder's
// contract). Promotes Type to LowRes if the slot was Empty or Cached.
func (s *Slot) SetLowRes(frame *avdecode.FrameRef, format avdecode.PixelFormat) (stored bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.lowRes != nil {
		return false
	}
	s.lowRes = frame
	if s.typ == Empty || s.typ == Cached {
		s.typ = LowRes
		s.format = format
	}
	return true
}

// SetFullRes stores frame as the slot's full_res handle unconditionally
// (full-res decode always promotes, overwriting any stale full-res frame)
// and promotes Type to FullRes.
func (s *Slot) SetFullRes(frame *avdecode.FrameRef, format avdecode.PixelFormat) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	old := s.fullRes
	s.fullRes = frame
	s.typ = FullRes
	s.format = format
	if old != nil {
		old.Release()
	}
}

// SetCached stores frame as the slot's cached handle, but only if the slot
// holds no cached handle yet and is currently Empty (first-writer-wins; a
// slot at a higher tier is left as it is, so its display and bookkeeping
// format are never downgraded).
func (s *Slot) SetCached(frame *avdecode.FrameRef, format avdecode.PixelFormat) (stored bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.cached != nil {
		return false
	}
	if s.typ != Empty && s.typ != Cached {
		return false
	}
	s.cached = frame
	if s.typ == Empty {
		s.typ = Cached
		s.format = format
	}
	return true
}

// ClearLowRes releases the low_res handle and downgrades Type if it was
// LowRes.
func (s *Slot) ClearLowRes() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.lowRes == nil {
		return
	}
	s.lowRes.Release()
	s.lowRes = nil
	if s.typ == LowRes {
		s.recomputeTypeLocked()
	}
}

// ClearFullRes releases the full_res handle and downgrades Type to the next
// best tier (LowRes if present, else Empty/Cached per recomputeTypeLocked).
func (s *Slot) ClearFullRes() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.fullRes == nil {
		return
	}
	s.fullRes.Release()
	s.fullRes = nil
	if s.typ == FullRes {
		s.recomputeTypeLocked()
	}
}

// ClearCached releases the cached handle and downgrades Type if it was
// Cached.
func (s *Slot) ClearCached() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.cached == nil {
		return
	}
	s.cached.Release()
	s.cached = nil
	if s.typ == Cached {
		s.recomputeTypeLocked()
	}
}

// recomputeTypeLocked re-derives Type from which handles remain. Mu must be
// held.
func (s *Slot) recomputeTypeLocked() {
	switch {
	case s.fullRes != nil:
		s.typ = FullRes
	case s.lowRes != nil:
		s.typ = LowRes
	case s.cached != nil:
		s.typ = Cached
	default:
		s.typ = Empty
		s.format = avdecode.PixFmtNone
	}
}

// HasTier reports whether the given tier is currently present, without
// cloning a handle.
func (s *Slot) HasTier(tier Tier) bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	switch tier {
	case FullRes:
		return s.fullRes != nil
	case LowRes:
		return s.lowRes != nil
	case Cached:
		return s.cached != nil
	default:
		return s.typ == Empty
	}
}
