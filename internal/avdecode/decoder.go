package avdecode

/*
#cgo pkg-config: libavformat libavcodec libavutil libswscale
#cgo darwin LDFLAGS: -framework VideoToolbox -framework CoreVideo -framework CoreMedia

#include <stdlib.h>
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libavutil/pixdesc.h>
#include <libavutil/hwcontext.h>

typedef struct {
    AVFormatContext *fmtCtx;
    AVCodecContext  *codecCtx;
    int             videoStream;
    int             usingHW;
    enum AVPixelFormat hwPixFmt;
    AVBufferRef     *hwDeviceCtx;
} AVDecoder;

#ifdef __APPLE__
static enum AVPixelFormat g_hwPixFmt = AV_PIX_FMT_VIDEOTOOLBOX;
static enum AVPixelFormat get_hw_format(AVCodecContext *ctx, const enum AVPixelFormat *fmts) {
    for (const enum AVPixelFormat *p = fmts; *p != AV_PIX_FMT_NONE; p++) {
        if (*p == g_hwPixFmt) return *p;
    }
    return fmts[0];
}
#endif

// av_decoder_open opens path, selects the best video stream, and tries a
// hardware-accelerated decode path before falling back to software with
// multi-threading disabled. Returns 0 on success, negative AVDecoder-local
// error codes mirroring the Prober's on failure.
static int av_decoder_open(const char *path, int preferHW, AVDecoder *d) {
    d->fmtCtx = NULL;
    d->videoStream = -1;
    d->usingHW = 0;
    d->hwDeviceCtx = NULL;

    if (avformat_open_input(&d->fmtCtx, path, NULL, NULL) != 0) return -1;
    if (avformat_find_stream_info(d->fmtCtx, NULL) < 0) { avformat_close_input(&d->fmtCtx); return -2; }

    int best = av_find_best_stream(d->fmtCtx, AVMEDIA_TYPE_VIDEO, -1, -1, NULL, 0);
    if (best >= 0) d->videoStream = best;
    if (d->videoStream == -1) { avformat_close_input(&d->fmtCtx); return -3; }

    AVCodecParameters *params = d->fmtCtx->streams[d->videoStream]->codecpar;
    const AVCodec *codec = avcodec_find_decoder(params->codec_id);
    if (!codec) { avformat_close_input(&d->fmtCtx); return -4; }

    d->codecCtx = avcodec_alloc_context3(codec);
    avcodec_parameters_to_context(d->codecCtx, params);

#ifdef __APPLE__
    if (preferHW) {
        if (av_hwdevice_ctx_create(&d->hwDeviceCtx, AV_HWDEVICE_TYPE_VIDEOTOOLBOX, NULL, NULL, 0) == 0) {
            d->codecCtx->hw_device_ctx = av_buffer_ref(d->hwDeviceCtx);
            d->codecCtx->get_format = get_hw_format;
            d->usingHW = 1;
        }
    }
#endif

    if (!d->usingHW) {
        // Software fallback policy: single-threaded decode.
        d->codecCtx->thread_count = 1;
        d->codecCtx->thread_type = 0;
    }

    if (avcodec_open2(d->codecCtx, codec, NULL) < 0) {
        // Retry once in pure software if the HW path failed to open.
        if (d->usingHW) {
            avcodec_free_context(&d->codecCtx);
            d->codecCtx = avcodec_alloc_context3(codec);
            avcodec_parameters_to_context(d->codecCtx, params);
            d->codecCtx->thread_count = 1;
            d->codecCtx->thread_type = 0;
            d->usingHW = 0;
            if (avcodec_open2(d->codecCtx, codec, NULL) < 0) {
                avformat_close_input(&d->fmtCtx);
                return -5;
            }
        } else {
            avformat_close_input(&d->fmtCtx);
            return -5;
        }
    }
    return 0;
}

static int64_t av_decoder_stream_start(AVDecoder *d) {
    return d->fmtCtx->streams[d->videoStream]->start_time;
}

static AVRational av_decoder_time_base(AVDecoder *d) {
    return d->fmtCtx->streams[d->videoStream]->time_base;
}

static int av_decoder_seek(AVDecoder *d, int64_t ts) {
    int ret = av_seek_frame(d->fmtCtx, d->videoStream, ts, AVSEEK_FLAG_BACKWARD);
    avcodec_flush_buffers(d->codecCtx);
    return ret;
}

// av_decoder_next decodes forward until the next video frame on the target
// stream is produced. Returns 1 on success (frame written into outFrame),
// 0 on EOF, negative on error. Frames with the AV_FRAME_FLAG_CORRUPT flag are
// skipped rather than surfaced.
static int av_decoder_next(AVDecoder *d, AVFrame *outFrame) {
    AVPacket *pkt = av_packet_alloc();
    int ret;
    for (;;) {
        ret = av_read_frame(d->fmtCtx, pkt);
        if (ret < 0) { av_packet_free(&pkt); return 0; }
        if (pkt->stream_index != d->videoStream) { av_packet_unref(pkt); continue; }

        ret = avcodec_send_packet(d->codecCtx, pkt);
        av_packet_unref(pkt);
        if (ret < 0 && ret != AVERROR(EAGAIN)) { av_packet_free(&pkt); return -1; }

        ret = avcodec_receive_frame(d->codecCtx, outFrame);
        if (ret == AVERROR(EAGAIN)) continue;
        if (ret == AVERROR_EOF) { av_packet_free(&pkt); return 0; }
        if (ret < 0) { av_packet_free(&pkt); return -2; }

        if (outFrame->flags & AV_FRAME_FLAG_CORRUPT) {
            av_frame_unref(outFrame);
            continue;
        }
        av_packet_free(&pkt);
        return 1;
    }
}

static void av_decoder_close(AVDecoder *d) {
    if (!d) return;
    if (d->codecCtx) avcodec_free_context(&d->codecCtx);
    if (d->hwDeviceCtx) av_buffer_unref(&d->hwDeviceCtx);
    if (d->fmtCtx) avformat_close_input(&d->fmtCtx);
}
*/
import "C"

import (
	"unsafe"

	"tapescrub/internal/playererr"
)

// Decoder wraps one independent format+codec context, matching the original
// design's "each worker opens its own format context on the same file, no
// shared state" rule: callers that need concurrent sub-ranges open one
// Decoder per worker.
type Decoder struct {
	d        C.AVDecoder
	TimeBase Rational
	UsingHW  bool
	Width    int
	Height   int
}

// OpenOptions configures how a Decoder is opened.
type OpenOptions struct {
	// PreferHW requests the hardware-acceleration path (VideoToolbox on
	// Apple); ignored on platforms without a compiled-in HW path. On any
	// failure the Decoder silently falls back to software, single-threaded.
	PreferHW bool
}

// Open opens path for decoding. Never returns EUnsupportedCodec; codec
// rejection (HEVC) is frameindex's job at the probe stage, before any
// Decoder is opened.
func Open(path string, opts OpenOptions) (*Decoder, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	preferHW := C.int(0)
	if opts.PreferHW {
		preferHW = 1
	}

	dec := &Decoder{}
	ret := C.av_decoder_open(cpath, preferHW, &dec.d)
	switch ret {
	case 0:
		// ok
	case -1:
		return nil, playererr.ErrOpen
	case -2:
		return nil, playererr.ErrNoStream
	case -3:
		return nil, playererr.ErrNoVideo
	default:
		return nil, playererr.ErrOpen
	}

	tb := C.av_decoder_time_base(&dec.d)
	dec.TimeBase = Rational{Num: int64(tb.num), Den: int64(tb.den)}
	dec.UsingHW = dec.d.usingHW != 0
	dec.Width = int(dec.d.codecCtx.width)
	dec.Height = int(dec.d.codecCtx.height)
	return dec, nil
}

// SeekMs seeks to timeMs (clamped to >=0 by the caller beforehand) and
// flushes decoder buffers. Errors are non-fatal: callers log and continue
// decoding linearly from wherever the stream landed.
func (d *Decoder) SeekMs(timeMs float64) error {
	ts := C.int64_t(timeMs / 1000.0 * float64(d.TimeBase.Den) / float64(d.TimeBase.Num))
	if C.av_decoder_seek(&d.d, ts) < 0 {
		return playererr.ErrSeek
	}
	return nil
}

// DecodedFrame is one frame produced by Next, still wrapped in a FrameRef so
// the caller can clone it into a slot without an extra copy.
type DecodedFrame struct {
	Ref    *FrameRef
	PTS    int64
	TimeMs float64
	Format PixelFormat
}

// Next decodes the next frame on the video stream. Returns (nil, nil) at
// EOF.
func (d *Decoder) Next() (*DecodedFrame, error) {
	f := C.av_frame_alloc()
	ret := C.av_decoder_next(&d.d, f)
	if ret == 0 {
		C.av_frame_free(&f)
		return nil, nil
	}
	if ret < 0 {
		C.av_frame_free(&f)
		return nil, playererr.ErrDecode
	}

	pts := int64(f.pts)
	if pts == NoPTS {
		pts = int64(f.best_effort_timestamp)
	}
	timeMs := RescaleMillis(pts, d.TimeBase)

	format := PixFmtOther
	if d.UsingHW {
		format = PixFmtVideoToolbox
	} else {
		switch int32(f.format) {
		case 0: // AV_PIX_FMT_YUV420P
			format = PixFmtYUV420P
		case 23: // AV_PIX_FMT_NV12
			format = PixFmtNV12
		}
	}

	return &DecodedFrame{
		Ref:    newFrameRef(f),
		PTS:    pts,
		TimeMs: timeMs,
		Format: format,
	}, nil
}

// Close releases the underlying format/codec contexts.
func (d *Decoder) Close() {
	C.av_decoder_close(&d.d)
}
