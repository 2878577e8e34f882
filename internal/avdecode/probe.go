package avdecode

/*
#cgo pkg-config: libavformat libavcodec libavutil

#include <stdlib.h>
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>

typedef struct {
    AVFormatContext *fmtCtx;
    int videoStream;
    enum AVCodecID codecID;
    int width;
    int height;
    AVRational timeBase;
    AVRational frameRate;
} Prober;

static int prober_open(const char *path, Prober *p) {
    p->fmtCtx = NULL;
    p->videoStream = -1;

    if (avformat_open_input(&p->fmtCtx, path, NULL, NULL) != 0) {
        return -1; // EOpen
    }
    if (avformat_find_stream_info(p->fmtCtx, NULL) < 0) {
        avformat_close_input(&p->fmtCtx);
        return -2; // ENoStream
    }
    int best = av_find_best_stream(p->fmtCtx, AVMEDIA_TYPE_VIDEO, -1, -1, NULL, 0);
    if (best >= 0) {
        p->videoStream = best;
        p->codecID = p->fmtCtx->streams[best]->codecpar->codec_id;
        p->width = p->fmtCtx->streams[best]->codecpar->width;
        p->height = p->fmtCtx->streams[best]->codecpar->height;
        p->timeBase = p->fmtCtx->streams[best]->time_base;
        p->frameRate = av_guess_frame_rate(p->fmtCtx, p->fmtCtx->streams[best], NULL);
    }
    if (p->videoStream == -1) {
        avformat_close_input(&p->fmtCtx);
        return -3; // ENoVideo
    }
    return 0;
}

// prober_next reads the next packet belonging to the video stream and returns
// its pts via out_pts. Returns 1 on success, 0 on EOF, negative on error.
// The non-matching packets are discarded without decoding.
static int prober_next(Prober *p, int64_t *out_pts) {
    AVPacket pkt;
    int ret;
    while ((ret = av_read_frame(p->fmtCtx, &pkt)) >= 0) {
        if (pkt.stream_index == p->videoStream) {
            *out_pts = pkt.pts;
            av_packet_unref(&pkt);
            return 1;
        }
        av_packet_unref(&pkt);
    }
    return 0;
}

static void prober_close(Prober *p) {
    if (p->fmtCtx) {
        avformat_close_input(&p->fmtCtx);
    }
}
*/
import "C"

import (
	"unsafe"

	"tapescrub/internal/playererr"
)

// StreamInfo describes the selected video stream's geometry and timing, as
// discovered by a demux-only pass over the container.
type StreamInfo struct {
	Width     int
	Height    int
	TimeBase  Rational
	FrameRate float64
	CodecName string
}

// PacketPTS is one video packet's raw timestamp, in the stream's time base,
// in the order the demuxer produced it (decode order, not display order).
type PacketPTS struct {
	PTS int64 // C.AV_NOPTS_VALUE (math.MinInt64) sentinel means "no pts"
}

const NoPTS = int64(-9223372036854775808) // AV_NOPTS_VALUE

// IsHEVC reports whether the probed codec is H.265/HEVC, the one codec the
// system refuses to load (decode cost on the target hardware).
func (s StreamInfo) IsHEVC() bool {
	return s.CodecName == "hevc"
}

// ScanPackets opens path, locates the best video stream, and walks every
// packet on that stream without invoking the decoder, returning each
// packet's raw PTS in arrival (decode) order together with the stream's
// geometry/timing. It never touches the codec, making index construction
// cheap even for long files.
func ScanPackets(path string) ([]PacketPTS, StreamInfo, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var prober C.Prober
	ret := C.prober_open(cpath, &prober)
	switch ret {
	case 0:
		// ok
	case -1:
		return nil, StreamInfo{}, playererr.ErrOpen
	case -2:
		return nil, StreamInfo{}, playererr.ErrNoStream
	case -3:
		return nil, StreamInfo{}, playererr.ErrNoVideo
	default:
		return nil, StreamInfo{}, playererr.ErrOpen
	}
	defer C.prober_close(&prober)

	info := StreamInfo{
		Width:     int(prober.width),
		Height:    int(prober.height),
		TimeBase:  Rational{Num: int64(prober.timeBase.num), Den: int64(prober.timeBase.den)},
		CodecName: codecIDName(prober.codecID),
	}
	if prober.frameRate.den != 0 {
		info.FrameRate = float64(prober.frameRate.num) / float64(prober.frameRate.den)
	}

	if info.IsHEVC() {
		return nil, info, playererr.ErrUnsupportedCodec
	}

	var packets []PacketPTS
	var pts C.int64_t
	for {
		r := C.prober_next(&prober, &pts)
		if r == 0 {
			break
		}
		if r < 0 {
			break
		}
		packets = append(packets, PacketPTS{PTS: int64(pts)})
	}
	return packets, info, nil
}

func codecIDName(id C.enum_AVCodecID) string {
	name := C.GoString(C.avcodec_get_name(id))
	return name
}
