// Package selector picks, each render tick, the best available frame for the
// current slot, damping flicker with a one-tick transition threshold at
// normal speed and searching neighboring slots for scrub coverage at high
// speed.
package selector

import (
	"tapescrub/internal/avdecode"
	"tapescrub/internal/frameindex"
)

// hysteresisRateThreshold is the |rate| boundary between the sticky,
// highest-tier-preferred strategy and the scrub-coverage search strategy.
const hysteresisRateThreshold = 1.1

// neighborSearchDepth is how many slots the high-speed strategy searches in
// the direction of playback before giving up.
const neighborSearchDepth = 15

// transitionThreshold is the number of consecutive ticks a better tier must
// be available before the selector switches to it, at normal speed.
const transitionThreshold = 1

// Selector holds the small amount of state hysteresis needs: which tier is
// currently displayed and how many consecutive ticks a better tier has been
// available.
type Selector struct {
	displayedTier       frameindex.Tier
	haveDisplayed       bool
	wantsChangeStreak   int
}

// New returns a Selector with no prior displayed tier.
func New() *Selector {
	return &Selector{}
}

// Result is one render tick's selection: the cloned frame (nil if no slot
// that was read holds a frame; neighbors are searched only while
// scrubbing), the tier it came from, and the slot
// index it was actually read from (may differ from the requested index at
// high speed, when a neighbor slot served the frame).
type Result struct {
	Frame     *avdecode.FrameRef
	Tier      frameindex.Tier
	SlotIndex int
}

// Select picks a frame for currentFrameIndex given rate and forceUpdate (set
// by the caller after a seek, to bypass the transition threshold).
func (sel *Selector) Select(idx *frameindex.Index, currentFrameIndex int, rate float64, reverse bool, forceUpdate bool) Result {
	if currentFrameIndex < 0 || currentFrameIndex >= len(idx.Slots) {
		return Result{}
	}

	r := rate
	if r < 0 {
		r = -r
	}

	if r <= hysteresisRateThreshold {
		return sel.selectSticky(idx, currentFrameIndex, forceUpdate)
	}
	return sel.selectScrub(idx, currentFrameIndex, reverse)
}

// selectSticky prefers the highest tier present at the current slot, but
// keeps showing the previously displayed tier until a better one has been
// available for transitionThreshold consecutive ticks (or forceUpdate is
// set), so a flickering decoder write doesn't cause visible tier churn.
func (sel *Selector) selectSticky(idx *frameindex.Index, frame int, forceUpdate bool) Result {
	slot := idx.Slots[frame]
	best, bestTier := slot.Best()

	if !sel.haveDisplayed || forceUpdate {
		sel.commit(bestTier)
		return Result{Frame: best, Tier: bestTier, SlotIndex: frame}
	}

	if bestTier == sel.displayedTier || bestTier < sel.displayedTier {
		// No improvement available, or the previously displayed tier was
		// evicted and we must downgrade immediately (no hysteresis on
		// downgrade, only on upgrade).
		if bestTier != sel.displayedTier {
			sel.commit(bestTier)
		} else {
			sel.wantsChangeStreak = 0
		}
		return Result{Frame: best, Tier: bestTier, SlotIndex: frame}
	}

	// bestTier > displayedTier: a strictly better tier is available.
	sel.wantsChangeStreak++
	if sel.wantsChangeStreak > transitionThreshold {
		sel.commit(bestTier)
		return Result{Frame: best, Tier: bestTier, SlotIndex: frame}
	}

	// Keep showing the previously displayed tier for one more tick.
	if displayed, ok := slot.At(sel.displayedTier); ok {
		best.Release()
		return Result{Frame: displayed, Tier: sel.displayedTier, SlotIndex: frame}
	}
	// Displayed tier vanished unexpectedly; fall through to best available.
	sel.commit(bestTier)
	return Result{Frame: best, Tier: bestTier, SlotIndex: frame}
}

// selectScrub prefers LowRes then Cached at the current slot; if neither is
// present it searches up to neighborSearchDepth slots in the direction of
// playback.
func (sel *Selector) selectScrub(idx *frameindex.Index, frame int, reverse bool) Result {
	if f, ok := idx.Slots[frame].At(frameindex.LowRes); ok {
		sel.commit(frameindex.LowRes)
		return Result{Frame: f, Tier: frameindex.LowRes, SlotIndex: frame}
	}
	if f, ok := idx.Slots[frame].At(frameindex.Cached); ok {
		sel.commit(frameindex.Cached)
		return Result{Frame: f, Tier: frameindex.Cached, SlotIndex: frame}
	}

	step := 1
	if reverse {
		step = -1
	}
	for n := 1; n <= neighborSearchDepth; n++ {
		i := frame + n*step
		if i < 0 || i >= len(idx.Slots) {
			break
		}
		if f, ok := idx.Slots[i].At(frameindex.LowRes); ok {
			sel.commit(frameindex.LowRes)
			return Result{Frame: f, Tier: frameindex.LowRes, SlotIndex: i}
		}
		if f, ok := idx.Slots[i].At(frameindex.Cached); ok {
			sel.commit(frameindex.Cached)
			return Result{Frame: f, Tier: frameindex.Cached, SlotIndex: i}
		}
	}

	sel.commit(frameindex.Empty)
	return Result{Tier: frameindex.Empty, SlotIndex: frame}
}

func (sel *Selector) commit(tier frameindex.Tier) {
	sel.displayedTier = tier
	sel.haveDisplayed = true
	sel.wantsChangeStreak = 0
}
