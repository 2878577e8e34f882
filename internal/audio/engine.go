package audio

import (
	"sync"
	"time"

	"tapescrub/internal/avdecode"
	"tapescrub/internal/logging"
	"tapescrub/internal/playhead"
)

// Engine owns the mmap Buffer, the one-shot decode thread that fills it, and
// the DSP state the realtime callback consumes. The callback itself never
// blocks: it only does atomic loads and direct memory reads.
type Engine struct {
	buf   *Buffer
	state *playhead.State

	cb *Callback

	decodeDone chan struct{}
	closeOnce  sync.Once
}

// NewEngine opens path's audio stream, estimates the mmap size from
// durationS, and starts the one-shot decode thread. It returns once the
// mmap is ready, not once decoding finishes; WaitReady mirrors the original's
// "reader waits up to ~2s on file creation" suspension point for a caller
// that wants to block until at least some audio is decoded.
func NewEngine(path string, durationS float64, state *playhead.State) (*Engine, error) {
	probe, err := avdecode.OpenAudio(path)
	if err != nil {
		return nil, err
	}
	sampleRate := probe.SampleRate
	probe.Close()

	buf, err := NewBuffer(durationS, sampleRate)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		buf:        buf,
		state:      state,
		decodeDone: make(chan struct{}),
	}
	e.cb = NewCallback(buf, state, durationS)

	go e.decodeLoop(path)

	return e, nil
}

func (e *Engine) decodeLoop(path string) {
	log := logging.For("audio-engine")
	defer close(e.decodeDone)

	dec, err := avdecode.OpenAudio(path)
	if err != nil {
		log.Error().Err(err).Msg("decode-thread open failed")
		return
	}
	defer dec.Close()

	var pairIndex int64
	for {
		pairs, err := dec.Next()
		if err != nil {
			log.Debug().Err(err).Msg("audio frame decode error, skipped")
			continue
		}
		if pairs == nil {
			log.Info().Int64("total_pairs", pairIndex).Msg("audio decode complete")
			return
		}
		for i := 0; i < len(pairs); i += 2 {
			if !e.buf.WritePair(pairIndex, pairs[i], pairs[i+1]) {
				log.Warn().Int64("pairs_decoded", pairIndex).Msg("mmap margin exceeded, stopping decode gracefully")
				return
			}
			pairIndex++
		}
	}
}

// SampleRate returns the decoder's native sample rate.
func (e *Engine) SampleRate() int { return e.buf.SampleRate }

// WaitReady blocks up to timeout for at least one decoded sample pair to
// appear, matching the original reader's ~2s startup wait.
func (e *Engine) WaitReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.buf.DecodedPairs.Load() > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// Callback returns the realtime pull-model callback state. Pass its Render
// method to whatever audio backend's realtime callback hook is in use.
func (e *Engine) Callback() *Callback { return e.cb }

// Seek publishes a seek request for targetTimeS. No buffer work is needed
// thanks to the mmap: on its next invocation the callback sets its position
// to targetTimeS * sampleRate and keeps it within the decoded samples.
func (e *Engine) Seek(targetTimeS float64) {
	e.state.RequestSeek(targetTimeS)
}

// CurrentTimeS returns the callback's last-published authoritative clock.
func (e *Engine) CurrentTimeS() float64 { return e.state.CurrentTimeS() }

// Close tears the engine down: silences volume, lets in-flight callbacks
// drain, then unmaps and unlinks the temp file.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.state.SetVolume(0)
		time.Sleep(20 * time.Millisecond)
		_ = e.buf.Close()
	})
}
