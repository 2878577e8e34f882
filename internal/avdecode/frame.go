package avdecode

/*
#cgo pkg-config: libavformat libavcodec libavutil libswscale

#include <libavutil/frame.h>
#include <libavcodec/avcodec.h>
*/
import "C"

import (
	"runtime"
	"unsafe"
)

// PixelFormat records the actual storage format of a decoded frame so the
// renderer can branch on format rather than on which tier produced it. HW
// frames carry an opaque surface handle; everything else is planar.
type PixelFormat int

const (
	PixFmtNone PixelFormat = iota
	PixFmtYUV420P
	PixFmtNV12
	PixFmtVideoToolbox // opaque HW surface, macOS
	PixFmtOther
)

// FrameRef is a reference-counted handle around a decoded AVFrame. Ownership
// is shared by cloning: Clone() calls av_frame_clone, which ref-counts the
// underlying pixel buffers (and, for HW frames, the device/frames context)
// without copying pixel data. Release() frees this handle's AVFrame struct;
// the underlying buffer is only freed once every clone has been released.
// There is no cycle risk here: slots own frames, frames never reference
// slots.
type FrameRef struct {
	frame *C.AVFrame
}

func newFrameRef(f *C.AVFrame) *FrameRef {
	fr := &FrameRef{frame: f}
	runtime.SetFinalizer(fr, func(fr *FrameRef) { fr.Release() })
	return fr
}

// Clone returns a new handle sharing the same underlying buffers.
func (f *FrameRef) Clone() *FrameRef {
	if f == nil || f.frame == nil {
		return nil
	}
	clone := C.av_frame_clone(f.frame)
	return newFrameRef(clone)
}

// Release frees this handle. Safe to call more than once.
func (f *FrameRef) Release() {
	if f == nil || f.frame == nil {
		return
	}
	runtime.SetFinalizer(f, nil)
	C.av_frame_free(&f.frame)
	f.frame = nil
}

// Planes exposes the planar YUV buffers for software frames. It returns
// ok=false for HW-surface frames (PixFmtVideoToolbox); callers must check
// format before calling Planes.
func (f *FrameRef) Planes() (y, u, v []byte, strideY, strideU, strideV int, ok bool) {
	if f == nil || f.frame == nil {
		return nil, nil, nil, 0, 0, 0, false
	}
	w := int(f.frame.width)
	h := int(f.frame.height)
	if w <= 0 || h <= 0 {
		return nil, nil, nil, 0, 0, 0, false
	}
	strideY = int(f.frame.linesize[0])
	strideU = int(f.frame.linesize[1])
	strideV = int(f.frame.linesize[2])
	if f.frame.data[0] == nil || strideY <= 0 {
		return nil, nil, nil, 0, 0, 0, false
	}
	y = C.GoBytes(unsafe.Pointer(f.frame.data[0]), C.int(strideY*h))
	if f.frame.data[1] != nil && strideU > 0 {
		u = C.GoBytes(unsafe.Pointer(f.frame.data[1]), C.int(strideU*(h/2)))
	}
	if f.frame.data[2] != nil && strideV > 0 {
		v = C.GoBytes(unsafe.Pointer(f.frame.data[2]), C.int(strideV*(h/2)))
	}
	return y, u, v, strideY, strideU, strideV, true
}

// Dimensions returns the frame's pixel width and height, needed by the
// renderer since low-res/cached tiers come from a companion file whose
// geometry can differ from the full-res source.
func (f *FrameRef) Dimensions() (w, h int) {
	if f == nil || f.frame == nil {
		return 0, 0
	}
	return int(f.frame.width), int(f.frame.height)
}

// Sane reports whether the frame's planar pointers and linesizes look valid,
// matching the cached decoder's corruption sanity check before a clone is
// committed to a slot.
func (f *FrameRef) Sane() bool {
	if f == nil || f.frame == nil {
		return false
	}
	if f.frame.data[0] == nil {
		return false
	}
	if f.frame.linesize[0] <= 0 {
		return false
	}
	if f.frame.format == C.int(C.AV_PIX_FMT_YUV420P) {
		for i := 1; i < 3; i++ {
			if f.frame.data[i] == nil || f.frame.linesize[i] <= 0 {
				return false
			}
		}
	}
	return true
}
