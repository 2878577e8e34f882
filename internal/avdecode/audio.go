package avdecode

/*
#cgo pkg-config: libavformat libavcodec libavutil libswresample

#include <stdlib.h>
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libswresample/swresample.h>

typedef struct {
    AVFormatContext *fmtCtx;
    AVCodecContext  *codecCtx;
    SwrContext      *swr;
    int             audioStream;
    int             sampleRate;
} AudioDecoder;

static int audio_decoder_open(const char *path, AudioDecoder *d) {
    d->fmtCtx = NULL;
    d->audioStream = -1;

    if (avformat_open_input(&d->fmtCtx, path, NULL, NULL) != 0) return -1;
    if (avformat_find_stream_info(d->fmtCtx, NULL) < 0) { avformat_close_input(&d->fmtCtx); return -2; }

    int best = av_find_best_stream(d->fmtCtx, AVMEDIA_TYPE_AUDIO, -1, -1, NULL, 0);
    if (best >= 0) d->audioStream = best;
    if (d->audioStream == -1) { avformat_close_input(&d->fmtCtx); return -3; }

    AVCodecParameters *params = d->fmtCtx->streams[d->audioStream]->codecpar;
    const AVCodec *codec = avcodec_find_decoder(params->codec_id);
    if (!codec) { avformat_close_input(&d->fmtCtx); return -4; }

    d->codecCtx = avcodec_alloc_context3(codec);
    avcodec_parameters_to_context(d->codecCtx, params);
    if (avcodec_open2(d->codecCtx, codec, NULL) < 0) {
        avformat_close_input(&d->fmtCtx);
        return -5;
    }

    d->sampleRate = d->codecCtx->sample_rate;

    AVChannelLayout outLayout = AV_CHANNEL_LAYOUT_STEREO;
    int ret = swr_alloc_set_opts2(&d->swr,
        &outLayout, AV_SAMPLE_FMT_S16, d->sampleRate,
        &d->codecCtx->ch_layout, d->codecCtx->sample_fmt, d->codecCtx->sample_rate,
        0, NULL);
    if (ret < 0 || !d->swr || swr_init(d->swr) < 0) {
        avcodec_free_context(&d->codecCtx);
        avformat_close_input(&d->fmtCtx);
        return -6;
    }
    return 0;
}

// audio_decoder_next decodes forward and converts the next frame to
// interleaved S16 stereo, writing up to maxPairs stereo pairs into out and
// returning the number of pairs written. Returns 0 at EOF, negative on
// error.
static int audio_decoder_next(AudioDecoder *d, int16_t *out, int maxPairs) {
    AVPacket *pkt = av_packet_alloc();
    AVFrame *frame = av_frame_alloc();
    int ret;
    for (;;) {
        ret = av_read_frame(d->fmtCtx, pkt);
        if (ret < 0) { av_packet_free(&pkt); av_frame_free(&frame); return 0; }
        if (pkt->stream_index != d->audioStream) { av_packet_unref(pkt); continue; }

        ret = avcodec_send_packet(d->codecCtx, pkt);
        av_packet_unref(pkt);
        if (ret < 0 && ret != AVERROR(EAGAIN)) { av_packet_free(&pkt); av_frame_free(&frame); return -1; }

        ret = avcodec_receive_frame(d->codecCtx, frame);
        if (ret == AVERROR(EAGAIN)) continue;
        if (ret == AVERROR_EOF) { av_packet_free(&pkt); av_frame_free(&frame); return 0; }
        if (ret < 0) { av_packet_free(&pkt); av_frame_free(&frame); return -2; }

        int converted = swr_convert(d->swr, (uint8_t**)&out, maxPairs, (const uint8_t**)frame->data, frame->nb_samples);
        av_frame_unref(frame);
        av_packet_free(&pkt);
        av_frame_free(&frame);
        if (converted < 0) return -3;
        return converted;
    }
}

static void audio_decoder_close(AudioDecoder *d) {
    if (!d) return;
    if (d->swr) swr_free(&d->swr);
    if (d->codecCtx) avcodec_free_context(&d->codecCtx);
    if (d->fmtCtx) avformat_close_input(&d->fmtCtx);
}
*/
import "C"

import (
	"unsafe"

	"tapescrub/internal/playererr"
)

// AudioDecoder decodes the best audio stream in a container into interleaved
// S16 stereo pairs at the stream's native sample rate, converting from
// whatever native planar/packed format the codec produces via libswresample
// (which applies saturating rounding on the float/int conversion).
type AudioDecoder struct {
	d          C.AudioDecoder
	SampleRate int
}

// OpenAudio opens path's audio stream.
func OpenAudio(path string) (*AudioDecoder, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	ad := &AudioDecoder{}
	ret := C.audio_decoder_open(cpath, &ad.d)
	switch ret {
	case 0:
	case -1:
		return nil, playererr.ErrOpen
	case -2:
		return nil, playererr.ErrNoStream
	case -3:
		return nil, playererr.ErrNoStream
	default:
		return nil, playererr.ErrOpen
	}
	ad.SampleRate = int(ad.d.sampleRate)
	return ad, nil
}

// audioChunkPairs bounds a single swr_convert call's output; large enough
// that a typical AAC/Opus frame never needs more than one call.
const audioChunkPairs = 8192

// Next decodes and converts the next packet's worth of audio, returning
// interleaved stereo S16 pairs. Returns (nil, nil) at EOF.
func (a *AudioDecoder) Next() ([]int16, error) {
	buf := make([]int16, audioChunkPairs*2)
	n := C.audio_decoder_next(&a.d, (*C.int16_t)(unsafe.Pointer(&buf[0])), C.int(audioChunkPairs))
	if n == 0 {
		return nil, nil
	}
	if n < 0 {
		return nil, playererr.ErrDecode
	}
	return buf[:int(n)*2], nil
}

// Close releases the decoder.
func (a *AudioDecoder) Close() {
	C.audio_decoder_close(&a.d)
}
