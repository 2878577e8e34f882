// Package playererr defines the error taxonomy the core engine surfaces to
// its loader and, separately, the silent-degradation errors that never leave
// a decode thread.
package playererr

import "errors"

// Load-time kinds. These are the only errors that should ever reach the UI.
var (
	ErrOpen              = errors.New("playererr: could not open container")
	ErrNoStream          = errors.New("playererr: no usable stream found")
	ErrNoVideo           = errors.New("playererr: no video stream found")
	ErrUnsupportedCodec  = errors.New("playererr: unsupported codec")
	ErrAudioDevice       = errors.New("playererr: audio device open/start failed")
	ErrMmap              = errors.New("playererr: memory-map failure")
	ErrFile              = errors.New("playererr: file i/o failure")
)

// Mid-stream kinds. These are absorbed locally by decoders/managers and never
// propagate to the render tick or audio callback; they exist so call sites can
// log and classify with errors.Is instead of string matching.
var (
	ErrDecode = errors.New("playererr: mid-stream decode failure")
	ErrSeek   = errors.New("playererr: seek failed")
)

// ErrInvariant marks a condition that should be structurally impossible (a
// poisoned slot mutex, an out-of-range segment). It is always a bug, never a
// condition a caller can recover from, and callers should log it as fatal for
// the current file load.
var ErrInvariant = errors.New("playererr: invariant violated")

// Wrap attaches kind as the sentinel a caller can recover with errors.Is,
// keeping the original error text for logs.
func Wrap(kind error, detail error) error {
	if detail == nil {
		return kind
	}
	return &wrapped{kind: kind, detail: detail}
}

type wrapped struct {
	kind   error
	detail error
}

func (w *wrapped) Error() string {
	return w.kind.Error() + ": " + w.detail.Error()
}

func (w *wrapped) Unwrap() error {
	return w.kind
}
