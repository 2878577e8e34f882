package render

import (
	"github.com/veandco/go-sdl2/sdl"

	"tapescrub/internal/frameindex"
	"tapescrub/internal/logging"
	"tapescrub/internal/selector"
)

// SDLSink draws selector.Result frames to an SDL2 renderer via a streaming
// YUV420P texture, letterboxed to the window. It recreates the texture when
// the incoming frame's dimensions change, since the low-res/cached tiers
// come from a companion file whose geometry need not match the full-res
// source.
type SDLSink struct {
	renderer *sdl.Renderer
	texture  *sdl.Texture
	texW     int
	texH     int

	screenW int32
	screenH int32

	warnedFormat bool
}

func NewSDLSink(renderer *sdl.Renderer, screenW, screenH int32) *SDLSink {
	return &SDLSink{renderer: renderer, screenW: screenW, screenH: screenH}
}

func (s *SDLSink) Render(res selector.Result) {
	if res.Tier == frameindex.Empty || res.Frame == nil {
		s.renderer.SetDrawColor(0, 0, 0, 255)
		s.renderer.Clear()
		s.renderer.Present()
		return
	}
	defer res.Frame.Release()

	y, u, v, strideY, strideU, strideV, ok := res.Frame.Planes()
	if !ok {
		if !s.warnedFormat {
			logging.For("render-sink").Warn().Msg("frame format has no accessible planes (hw surface), skipping until a software frame arrives")
			s.warnedFormat = true
		}
		return
	}

	w, h := res.Frame.Dimensions()
	if w <= 0 || h <= 0 {
		return
	}
	if err := s.ensureTexture(w, h); err != nil {
		logging.For("render-sink").Error().Err(err).Msg("failed to (re)create video texture")
		return
	}

	if err := s.texture.UpdateYUV(nil, y, strideY, u, strideU, v, strideV); err != nil {
		logging.For("render-sink").Warn().Err(err).Msg("texture update failed")
		return
	}

	s.renderer.SetDrawColor(0, 0, 0, 255)
	s.renderer.Clear()
	dst := letterbox(w, h, s.screenW, s.screenH)
	_ = s.renderer.Copy(s.texture, nil, &dst)
	s.renderer.Present()
}

func (s *SDLSink) ensureTexture(w, h int) error {
	if s.texture != nil && w == s.texW && h == s.texH {
		return nil
	}
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
	tex, err := s.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_IYUV), sdl.TEXTUREACCESS_STREAMING, int32(w), int32(h))
	if err != nil {
		return err
	}
	s.texture = tex
	s.texW, s.texH = w, h
	return nil
}

func (s *SDLSink) Resize(screenW, screenH int32) {
	s.screenW, s.screenH = screenW, screenH
}

func (s *SDLSink) Close() {
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
}

func letterbox(frameW, frameH int, screenW, screenH int32) sdl.Rect {
	scaleW := float64(screenW) / float64(frameW)
	scaleH := float64(screenH) / float64(frameH)
	scale := scaleW
	if scaleH < scaleW {
		scale = scaleH
	}
	renderW := int32(float64(frameW) * scale)
	renderH := int32(float64(frameH) * scale)
	return sdl.Rect{
		X: (screenW - renderW) / 2,
		Y: (screenH - renderH) / 2,
		W: renderW,
		H: renderH,
	}
}
