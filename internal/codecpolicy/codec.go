// Package codecpolicy classifies the source codec and decides whether the
// Full-Res Decoder should attempt hardware acceleration for it, grounded on
// the teacher's pkg/video/codec_recommendations.go codec-detection table.
package codecpolicy

import "strings"

// CodecType names the coarse codec family, independent of the specific
// decoder name libavcodec reports.
type CodecType int

const (
	CodecUnknown CodecType = iota
	CodecH264
	CodecHEVC
	CodecMPEG2
	CodecMPEG4
	CodecVP8
	CodecVP9
	CodecAV1
)

// Detect maps a libavcodec codec name (as returned by avcodec_get_name) to a
// CodecType.
func Detect(codecName string) CodecType {
	lower := strings.ToLower(codecName)
	switch {
	case strings.Contains(lower, "hevc"), strings.Contains(lower, "h265"):
		return CodecHEVC
	case strings.Contains(lower, "h264"), strings.Contains(lower, "avc"):
		return CodecH264
	case strings.Contains(lower, "mpeg2"):
		return CodecMPEG2
	case strings.Contains(lower, "mpeg4"):
		return CodecMPEG4
	case strings.Contains(lower, "vp8"):
		return CodecVP8
	case strings.Contains(lower, "vp9"):
		return CodecVP9
	case strings.Contains(lower, "av1"):
		return CodecAV1
	default:
		return CodecUnknown
	}
}

// Rejected reports whether this codec must never be opened. HEVC is excluded
// by design: decode cost on the target hardware is too high to keep up at
// scrub speeds, so the file is refused outright rather than degrading.
func (c CodecType) Rejected() bool {
	return c == CodecHEVC
}

// PreferHardware reports whether the Full-Res Decoder should attempt a
// hardware-accelerated open for this codec before falling back to software.
// Only H.264 has a VideoToolbox path wired; everything else goes straight to
// software (cheaper than probing a path that will only fail).
func (c CodecType) PreferHardware() bool {
	return c == CodecH264
}

func (c CodecType) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	case CodecMPEG2:
		return "mpeg2"
	case CodecMPEG4:
		return "mpeg4"
	case CodecVP8:
		return "vp8"
	case CodecVP9:
		return "vp9"
	case CodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}
