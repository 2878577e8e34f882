// Package decode holds the three frame-populating decoders: low-res,
// full-res and cached. Each is driven by a manager (internal/manager) and
// writes into frameindex.Slot instances; none of them owns the playhead.
package decode

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"tapescrub/internal/avdecode"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
)

// lowResFanOut is the fixed number of worker threads a single decode_range
// call splits across. Fixed, not configurable: a speed-for-simplicity
// tradeoff the original makes and this keeps.
const lowResFanOut = 3

// LowRes decodes a pre-built downscaled companion file into slots' low-res
// tier, across a bounded index range.
type LowRes struct {
	path string
	stop atomic.Bool
}

// NewLowRes opens no file yet; companionPath is the downscaled companion,
// not the original source.
func NewLowRes(companionPath string) *LowRes {
	return &LowRes{path: companionPath}
}

// Stop requests cooperative cancellation; in-flight DecodeRange calls will
// return as soon as their current worker notices.
func (l *LowRes) Stop() { l.stop.Store(true) }

// Reset clears the stop flag so the decoder can be reused for a subsequent
// DecodeRange after a prior Stop.
func (l *LowRes) Reset() { l.stop.Store(false) }

// DecodeRange fills idx.Slots[s:e] (inclusive) with low-res frames, split
// across lowResFanOut workers that each open an independent format context
// on the companion file (no shared state between workers). Frames are
// assigned to slots by a pure counter advance per worker sub-range, not
// PTS-matched — fast, but assumes no B-frame reordering crosses a
// sub-range boundary (see DESIGN.md).
//
// If skipHighResWindow is true, slots inside [hiStart, hiEnd] are not
// written, preserving whatever higher tier is already there; current callers
// always pass false.
func (l *LowRes) DecodeRange(idx *frameindex.Index, s, e, hiStart, hiEnd int, skipHighResWindow bool) error {
	log := logging.For("lowres-decoder")
	if s < 0 {
		s = 0
	}
	if e >= len(idx.Slots) {
		e = len(idx.Slots) - 1
	}
	if s > e {
		return nil
	}

	n := e - s + 1
	chunk := (n + lowResFanOut - 1) / lowResFanOut

	var g errgroup.Group
	for w := 0; w < lowResFanOut; w++ {
		subS := s + w*chunk
		subE := subS + chunk - 1
		if subE > e {
			subE = e
		}
		if subS > subE {
			continue
		}
		subS, subE := subS, subE
		g.Go(func() error {
			return l.decodeSubRange(idx, subS, subE, hiStart, hiEnd, skipHighResWindow)
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("low-res decode range finished with a worker error")
	}
	return nil
}

func (l *LowRes) decodeSubRange(idx *frameindex.Index, s, e, hiStart, hiEnd int, skipHighResWindow bool) error {
	log := logging.For("lowres-decoder")
	dec, err := avdecode.Open(l.path, avdecode.OpenOptions{})
	if err != nil {
		log.Error().Err(err).Int("sub_start", s).Int("sub_end", e).Msg("failed to open companion file for sub-range")
		return err
	}
	defer dec.Close()

	if err := dec.SeekMs(idx.Slots[s].TimeMs); err != nil {
		log.Debug().Err(err).Msg("seek failed, decoding linearly from container start")
	}

	counter := s
	for counter <= e {
		if l.stop.Load() {
			return nil
		}
		frame, err := dec.Next()
		if err != nil {
			log.Debug().Err(err).Int("slot", counter).Msg("decode error, skipping frame")
			counter++
			continue
		}
		if frame == nil {
			return nil // EOF
		}

		if skipHighResWindow && counter >= hiStart && counter <= hiEnd {
			frame.Ref.Release()
			counter++
			continue
		}

		slot := idx.Slots[counter]
		slot.IsDecoding.Store(true)
		if !slot.SetLowRes(frame.Ref, frame.Format) {
			frame.Ref.Release()
		}
		slot.IsDecoding.Store(false)
		counter++
	}
	return nil
}

// WaitForCompanion blocks until companionPath exists (an externally produced
// low-res encode landing in the cache directory) or ctx is cancelled. The
// Low/Cached Manager should call this once before its first reconcile pass
// rather than poll, since the companion can take a while to appear on a
// cold cache.
func WaitForCompanion(ctx context.Context, companionPath string) error {
	if _, err := os.Stat(companionPath); err == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(companionPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	// The file may have appeared between the initial Stat and Add.
	if _, err := os.Stat(companionPath); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name == companionPath && (ev.Op&(fsnotify.Create|fsnotify.Write) != 0) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// RemoveLowResFrames evicts low-res frames from idx.Slots[s:e], downgrading
// Type where the slot was LowRes.
func RemoveLowResFrames(idx *frameindex.Index, s, e int) {
	if s < 0 {
		s = 0
	}
	if e >= len(idx.Slots) {
		e = len(idx.Slots) - 1
	}
	for i := s; i <= e; i++ {
		idx.Slots[i].ClearLowRes()
	}
}
