// Package audio implements the decode-once, mmap-backed variable-rate audio
// engine: one pass decodes the whole stream into an int16 stereo buffer, and
// a realtime callback reads it at an arbitrary fractional rate with
// Catmull-Rom interpolation.
package audio

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"tapescrub/internal/playererr"
)

const (
	bytesPerSample = 2 // int16
	channels       = 2
	marginFraction = 0.10 // 10% overallocation margin
)

// Buffer is a file-backed memory map sized to cover the whole stream as
// interleaved stereo int16 at decodeSampleRate, plus a 10% margin. The
// decode thread writes forward through its own writable mapping; the
// realtime callback reads through a second, read-only mapping of the same
// file. DecodedSamples is the only coordination between them.
type Buffer struct {
	tempPath       string
	file           *os.File
	data           []byte // writable mapping (decode thread)
	readerData     []byte // read-only mapping (callback's process view)
	totalPairs     int64  // total stereo-pair capacity
	DecodedPairs   atomic.Int64
	SampleRate     int
}

// NewBuffer estimates total samples from duration*sampleRate*channels*margin,
// creates a uniquely-named temp file, truncates it to that size, and maps it
// both writable (for the decode thread) and read-only (for the callback).
func NewBuffer(durationS float64, sampleRate int) (*Buffer, error) {
	totalPairs := int64(durationS*float64(sampleRate)*(1+marginFraction)) + 1
	sizeBytes := totalPairs * channels * bytesPerSample

	tempPath := fmt.Sprintf("%s/tapescrub-audio-%s.raw", os.TempDir(), uuid.NewString())
	f, err := os.OpenFile(tempPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, playererr.Wrap(playererr.ErrFile, err)
	}
	if err := f.Truncate(sizeBytes); err != nil {
		f.Close()
		os.Remove(tempPath)
		return nil, playererr.Wrap(playererr.ErrFile, err)
	}

	writable, err := unix.Mmap(int(f.Fd()), 0, int(sizeBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return nil, playererr.Wrap(playererr.ErrMmap, err)
	}

	readOnly, err := unix.Mmap(int(f.Fd()), 0, int(sizeBytes), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Munmap(writable)
		f.Close()
		os.Remove(tempPath)
		return nil, playererr.Wrap(playererr.ErrMmap, err)
	}

	b := &Buffer{
		tempPath:   tempPath,
		file:       f,
		data:       writable,
		readerData: readOnly,
		totalPairs: totalPairs,
		SampleRate: sampleRate,
	}
	return b, nil
}

// TotalPairs is the mapping's stereo-pair capacity (not the true decoded
// length; see DecodedPairs for that).
func (b *Buffer) TotalPairs() int64 { return b.totalPairs }

// WritePair writes one interleaved stereo int16 pair at pairIndex into the
// writable mapping and advances DecodedPairs with release ordering, so the
// callback's acquire-load never observes bytes not yet flushed. Returns
// false if pairIndex is beyond the mapping's capacity (the 10% margin was
// insufficient); callers should stop decoding gracefully on false rather
// than attempt to resize the mapping mid-decode.
func (b *Buffer) WritePair(pairIndex int64, left, right int16) bool {
	if pairIndex < 0 || pairIndex >= b.totalPairs {
		return false
	}
	off := pairIndex * channels * bytesPerSample
	b.data[off] = byte(left)
	b.data[off+1] = byte(left >> 8)
	b.data[off+2] = byte(right)
	b.data[off+3] = byte(right >> 8)
	b.DecodedPairs.Store(pairIndex + 1) // release semantics: atomic store
	return true
}

// ReadPair reads one interleaved stereo int16 pair through the read-only
// mapping. The caller must have already checked pairIndex against an
// acquire-load of DecodedPairs.
func (b *Buffer) ReadPair(pairIndex int64) (left, right int16) {
	off := pairIndex * channels * bytesPerSample
	left = int16(b.readerData[off]) | int16(b.readerData[off+1])<<8
	right = int16(b.readerData[off+2]) | int16(b.readerData[off+3])<<8
	return left, right
}

// Close unmaps both views, closes the file descriptor, and unlinks the temp
// file.
func (b *Buffer) Close() error {
	var firstErr error
	if b.readerData != nil {
		if err := unix.Munmap(b.readerData); err != nil && firstErr == nil {
			firstErr = err
		}
		b.readerData = nil
	}
	if b.data != nil {
		if err := unix.Munmap(b.data); err != nil && firstErr == nil {
			firstErr = err
		}
		b.data = nil
	}
	if b.file != nil {
		b.file.Close()
	}
	os.Remove(b.tempPath)
	return firstErr
}
