package frameindex

import (
	"sort"

	"tapescrub/internal/avdecode"
	"tapescrub/internal/logging"
)

// Index is the ordered sequence of frame slots, sorted by TimeMs ascending.
// Its length is fixed after Build; slots have stable addresses (the slice
// backing array is never reallocated once returned) so per-slot mutexes stay
// valid for the lifetime of the file.
type Index struct {
	Slots  []*Slot
	Stream avdecode.StreamInfo
}

// Len implements sort.Interface's companion for binary search helpers.
func (idx *Index) Len() int { return len(idx.Slots) }

// Build opens path, rejects HEVC, and walks every video packet to construct
// the frame sequence. B-frame decode-order packets are corrected into
// presentation order by the final sort. Residual PTS inconsistencies (e.g. a
// stream with genuinely non-monotonic authoring) are tolerated: such frames
// are reordered, not discarded. Packets without a valid PTS are dropped.
func Build(path string) (*Index, error) {
	log := logging.For("frameindex")

	packets, stream, err := avdecode.ScanPackets(path)
	if err != nil {
		return nil, err
	}

	slots := make([]*Slot, 0, len(packets))
	skipped := 0
	for _, pkt := range packets {
		if pkt.PTS == avdecode.NoPTS {
			skipped++
			continue
		}
		slots = append(slots, &Slot{
			PTS:      pkt.PTS,
			TimeBase: stream.TimeBase,
			TimeMs:   avdecode.RescaleMillis(pkt.PTS, stream.TimeBase),
		})
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].TimeMs < slots[j].TimeMs
	})

	if skipped > 0 {
		log.Warn().Int("skipped_no_pts", skipped).Msg("frames without a valid PTS were dropped from the index")
	}
	log.Info().
		Int("slots", len(slots)).
		Float64("fps", stream.FrameRate).
		Int("width", stream.Width).
		Int("height", stream.Height).
		Msg("frame index built")

	return &Index{Slots: slots, Stream: stream}, nil
}

// IndexOf returns the index of the slot whose TimeMs is the closest to
// timeMs on either side (a lower_bound, with a neighbor comparison so a
// slot just past timeMs that is closer wins over the one just before; a tie
// goes to the earlier slot).
func (idx *Index) IndexOf(timeMs float64) int {
	n := len(idx.Slots)
	if n == 0 {
		return -1
	}
	i := sort.Search(n, func(i int) bool { return idx.Slots[i].TimeMs >= timeMs })
	if i == 0 {
		return 0
	}
	if i == n {
		return n - 1
	}
	// Neighbor comparison: prefer whichever of i-1, i is numerically closer.
	before := idx.Slots[i-1].TimeMs
	after := idx.Slots[i].TimeMs
	if timeMs-before <= after-timeMs {
		return i - 1
	}
	return i
}

// Nearest finds the slot index closest to targetMs via binary search with
// neighbor comparison, used by the Cached Decoder to place anchor frames
// without an exact PTS match.
func (idx *Index) Nearest(targetMs float64) int {
	return idx.IndexOf(targetMs)
}
