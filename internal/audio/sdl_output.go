package audio

import (
	"encoding/binary"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"tapescrub/internal/logging"
)

// outputSamples is the number of stereo frames pulled from the Callback per
// queue top-up. Small enough to keep latency low, large enough that the
// 10ms top-up ticker isn't fighting the device's own consumption rate.
const outputSamples = 2048

// SDLOutput drives an SDL2 audio device in push (QueueAudio) mode, pulling
// fixed-size blocks from a Callback on its own ticker rather than
// registering a C callback, so the hot render path stays in Go.
type SDLOutput struct {
	deviceID sdl.AudioDeviceID
	cb       *Callback

	stopCh chan struct{}
	done   chan struct{}
}

// NewSDLOutput opens a default playback device at sampleRate, stereo S16.
func NewSDLOutput(sampleRate int, cb *Callback) (*SDLOutput, error) {
	spec := &sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_S16SYS,
		Channels: 2,
		Samples:  outputSamples,
	}
	deviceID, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		return nil, err
	}
	return &SDLOutput{deviceID: deviceID, cb: cb, stopCh: make(chan struct{}), done: make(chan struct{})}, nil
}

// Run top-ups the device's queue until Stop is called. Blocks; call in its
// own goroutine.
func (o *SDLOutput) Run() {
	defer close(o.done)
	log := logging.For("audio-output")

	sdl.PauseAudioDevice(o.deviceID, false)

	out := make([]int16, outputSamples*2)
	buf := make([]byte, len(out)*2)
	// Keep roughly two buffers queued: enough to absorb scheduling jitter
	// without adding more than ~80ms of output latency.
	targetQueued := uint32(len(buf) * 2)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			sdl.PauseAudioDevice(o.deviceID, true)
			sdl.CloseAudioDevice(o.deviceID)
			return
		case <-ticker.C:
		}

		if sdl.GetQueuedAudioSize(o.deviceID) > targetQueued {
			continue
		}

		o.cb.Render(out)
		for i, s := range out {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
		}
		if err := sdl.QueueAudio(o.deviceID, buf); err != nil {
			log.Warn().Err(err).Msg("queue audio failed")
		}
	}
}

// Stop pauses and closes the device without playing out queued audio, and
// blocks until the output goroutine has exited.
func (o *SDLOutput) Stop() {
	close(o.stopCh)
	<-o.done
}
