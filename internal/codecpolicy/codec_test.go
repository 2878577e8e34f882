package codecpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectRecognizesCommonCodecNames(t *testing.T) {
	cases := map[string]CodecType{
		"h264":        CodecH264,
		"H.264 / AVC": CodecH264,
		"hevc":        CodecHEVC,
		"H265":        CodecHEVC,
		"mpeg2video":  CodecMPEG2,
		"mpeg4":       CodecMPEG4,
		"vp8":         CodecVP8,
		"vp9":         CodecVP9,
		"av1":         CodecAV1,
		"prores":      CodecUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, Detect(name), "Detect(%q)", name)
	}
}

func TestHEVCIsRejected(t *testing.T) {
	assert.True(t, CodecHEVC.Rejected())
	assert.False(t, CodecH264.Rejected())
	assert.False(t, CodecUnknown.Rejected())
}

func TestOnlyH264PrefersHardware(t *testing.T) {
	assert.True(t, CodecH264.PreferHardware())
	assert.False(t, CodecMPEG2.PreferHardware())
	assert.False(t, CodecVP9.PreferHardware())
	assert.False(t, CodecUnknown.PreferHardware())
}

func TestStringNames(t *testing.T) {
	assert.Equal(t, "h264", CodecH264.String())
	assert.Equal(t, "hevc", CodecHEVC.String())
	assert.Equal(t, "unknown", CodecUnknown.String())
}
