package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/veandco/go-sdl2/sdl"

	"tapescrub/internal/audio"
	"tapescrub/internal/codecpolicy"
	"tapescrub/internal/config"
	"tapescrub/internal/decode"
	"tapescrub/internal/frameindex"
	"tapescrub/internal/input"
	"tapescrub/internal/logging"
	"tapescrub/internal/manager"
	"tapescrub/internal/playererr"
	"tapescrub/internal/playhead"
	"tapescrub/internal/render"
	"tapescrub/internal/speed"
	"tapescrub/internal/telemetry"
)

const (
	targetFPS      = 60
	fallbackWidth  = 1920
	fallbackHeight = 1080
	windowTitle    = "TapeXPlayer"

	// audioDeviceMaxRetries and audioDeviceRetryBackoff implement the
	// EAudioDevice load-time contract: up to three retries with a 1s
	// backoff before the load is aborted.
	audioDeviceMaxRetries   = 3
	audioDeviceRetryBackoff = 1 * time.Second
)

func main() {
	// CRITICAL: Lock OS thread immediately before any other operations
	runtime.LockOSThread()

	setupARMMemoryManagement()

	logging.Init(os.Getenv("TAPESCRUB_VERBOSE") != "")
	log := logging.For("main")

	config.LoadEnv()

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: tapescrub <video-file>")
	}
	sourcePath := os.Args[1]

	if err := initializeSDL2(); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize SDL2")
	}
	defer func() {
		log.Info().Msg("shutting down SDL2")
		sdl.Quit()
		runtime.GC()
	}()

	settings := config.Load()
	screenWidth, screenHeight := resolveWindowSize(settings)
	log.Info().Str("file", sourcePath).Int32("width", screenWidth).Int32("height", screenHeight).Msg("starting player")
	logDisplayInfo()

	window, err := createWindow(windowTitle, screenWidth, screenHeight, settings.Fullscreen)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create window")
	}
	defer window.Destroy()
	defer persistWindowGeometry(window, settings.Fullscreen)

	renderer, err := createRenderer(window)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create renderer")
	}
	defer renderer.Destroy()

	idx, err := frameindex.Build(sourcePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build frame index")
	}
	codec := codecpolicy.Detect(idx.Stream.CodecName)
	if codec.Rejected() {
		log.Fatal().Str("codec", idx.Stream.CodecName).Msg("codec rejected by policy")
	}
	fps := idx.Stream.FrameRate
	if fps <= 0 {
		fps = 24
	}
	durationS := 0.0
	if n := len(idx.Slots); n > 0 {
		durationS = idx.Slots[n-1].TimeMs/1000.0 + 1.0
	}

	companionPath, err := config.CompanionPath(sourcePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve low-res cache dir")
	}

	state := playhead.New()

	lowResDec := decode.NewLowRes(companionPath)
	cachedDec := decode.NewCached(companionPath, fps)
	fullResDec := decode.NewFullRes(sourcePath, codec)

	lowCachedMgr := manager.NewLowCached(idx, lowResDec, state, manager.LowCachedSegmentSize)
	cachedMgr := manager.NewCached(idx, cachedDec, state, manager.CachedSegmentSize)
	fullResMgr := manager.NewFullRes(idx, fullResDec, state, manager.WindowSize(fps))

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 30*time.Second)
	if err := decode.WaitForCompanion(waitCtx, companionPath); err != nil {
		log.Warn().Err(err).Msg("low-res companion did not appear in time, starting without it")
	}
	cancelWait()

	lowCachedMgr.Run()
	cachedMgr.Run()
	fullResMgr.Run()
	defer lowCachedMgr.Stop()
	defer cachedMgr.Stop()
	defer fullResMgr.Stop()

	engine, err := audio.NewEngine(sourcePath, durationS, state)
	if err != nil {
		log.Warn().Err(err).Msg("audio engine failed to start, continuing video-only")
	}
	var audioOut *audio.SDLOutput
	if engine != nil {
		defer engine.Close()
		engine.WaitReady(2 * time.Second)
		audioOut, err = openAudioDeviceWithRetry(engine.SampleRate(), engine.Callback())
		if err != nil {
			log.Fatal().Err(err).Msg("audio device open/start failed persistently, aborting load")
		}
		go audioOut.Run()
		defer audioOut.Stop()
	}

	speedCtl := speed.New(state)
	go speedCtl.Run()
	defer speedCtl.Stop()

	cmds := input.New(state, fps)

	sink := render.NewSDLSink(renderer, screenWidth, screenHeight)
	defer sink.Close()

	driver := render.New(idx, state, sink, lowCachedMgr, cachedMgr, fullResMgr)
	go driver.Run()
	defer driver.Stop()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	telemetryAddr := os.Getenv("TELEMETRY_ADDR")
	if telemetryAddr == "" {
		telemetryAddr = "127.0.0.1:9090"
	}
	telemetryServer := telemetry.NewServer(telemetryAddr, reg)
	telemetryCtx, cancelTelemetry := context.WithCancel(context.Background())
	go telemetryServer.Run(telemetryCtx)
	defer cancelTelemetry()

	lowCachedMgr.SetMetrics(metrics, "low_cached")
	cachedMgr.SetMetrics(metrics, "cached")
	fullResMgr.SetMetrics(metrics, "full_res")
	if engine != nil {
		engine.Callback().SetMetrics(metrics)
	}
	go runMemoryMonitor(telemetryCtx, metrics)

	runGameLoop(state, cmds, metrics, durationS)

	log.Info().Msg("tapescrub shutting down")
}

// openAudioDeviceWithRetry implements the EAudioDevice policy: the initial
// attempt plus up to audioDeviceMaxRetries retries, each separated by
// audioDeviceRetryBackoff, before giving up. The returned error wraps
// playererr.ErrAudioDevice so callers can abort the load with errors.Is.
func openAudioDeviceWithRetry(sampleRate int, cb *audio.Callback) (*audio.SDLOutput, error) {
	log := logging.For("audio-device")
	var lastErr error
	for attempt := 0; attempt <= audioDeviceMaxRetries; attempt++ {
		out, err := audio.NewSDLOutput(sampleRate, cb)
		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("audio device open/start failed")
		if attempt < audioDeviceMaxRetries {
			time.Sleep(audioDeviceRetryBackoff)
		}
	}
	return nil, playererr.Wrap(playererr.ErrAudioDevice, lastErr)
}

// resolveWindowSize picks the saved window size if non-fullscreen, otherwise
// falls back to the display's native resolution.
func resolveWindowSize(s config.Settings) (int32, int32) {
	if s.Fullscreen {
		return getDisplayDimensions()
	}
	return int32(s.WindowWidth), int32(s.WindowHeight)
}

func persistWindowGeometry(window *sdl.Window, fullscreen bool) {
	w, h := window.GetSize()
	x, y := window.GetPosition()
	_ = config.Save(config.Settings{
		WindowWidth:  int(w),
		WindowHeight: int(h),
		WindowX:      int(x),
		WindowY:      int(y),
		Fullscreen:   fullscreen,
	})
}

// runMemoryMonitor periodically snapshots system/Go memory and surfaces it
// both as a log line and as Prometheus gauges, mirroring the teacher's
// videoPlayer screen's periodic LogMemorySnapshot/GetMemoryPressure polling.
func runMemoryMonitor(ctx context.Context, metrics *telemetry.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			telemetry.LogMemorySnapshot()
			telemetry.ObserveMemory(metrics)
		}
	}
}

// setupARMMemoryManagement configures ARM64-specific memory settings and CGO environment
func setupARMMemoryManagement() {
	os.Setenv("GODEBUG", "madvdontneed=1")
	os.Setenv("GOMAXPROCS", "1")
	os.Setenv("GOGC", "25")
	os.Setenv("GOMEMLIMIT", "256MiB")

	os.Setenv("CGO_CFLAGS", "-O1 -g -fPIC")
	os.Setenv("CGO_LDFLAGS", "-Wl,--no-as-needed -fPIC")

	debug.SetGCPercent(25)
	debug.SetMemoryLimit(256 << 20)

	for i := 0; i < 3; i++ {
		runtime.GC()
		time.Sleep(100 * time.Millisecond)
	}
}

// initializeSDL2 initializes SDL2 with fallback video drivers
func initializeSDL2() error {
	runtime.GC()
	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	log := logging.For("sdl-init")

	envDriver := os.Getenv("SDL_VIDEODRIVER")
	var videoDrivers []string

	if envDriver != "" {
		videoDrivers = []string{envDriver, "fbcon", "software", "dummy"}
	} else if runtime.GOOS == "darwin" {
		videoDrivers = []string{"cocoa", "software", "dummy"}
	} else {
		videoDrivers = []string{"kmsdrm", "drm", "fbcon", "wayland", "x11", "software", "dummy"}
	}

	for _, driver := range videoDrivers {
		os.Setenv("SDL_VIDEODRIVER", driver)
		if err := trySDLInitialization(driver); err != nil {
			log.Debug().Err(err).Str("driver", driver).Msg("SDL2 driver failed")
			continue
		}
		log.Info().Str("driver", driver).Msg("SDL2 initialized")
		return nil
	}

	return fmt.Errorf("all SDL2 video drivers failed")
}

// trySDLInitialization attempts to initialize SDL2 with safer error handling
func trySDLInitialization(driver string) error {
	sdl.Quit()
	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	switch driver {
	case "cocoa":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "cocoa")
		sdl.SetHint("SDL_VIDEO_COCOA_ALLOW_SCREENSAVER", "1")
		sdl.SetHint("SDL_RENDER_DRIVER", "opengl")
	case "kmsdrm":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "kmsdrm")
		sdl.SetHint("SDL_KMSDRM_REQUIRE_DRM_MASTER", "1")
		sdl.SetHint("SDL_VIDEO_KMSDRM_DEVINDEX", "0")
		sdl.SetHint("SDL_RENDER_VSYNC", "1")
		sdl.SetHint("SDL_VIDEO_ALLOW_SCREENSAVER", "0")
		sdl.SetHint("SDL_HINT_RENDER_BATCHING", "0")
	case "fbcon":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "fbcon")
		sdl.SetHint("SDL_FBDEV", "/dev/fb0")
	case "drm":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "drm")
	case "wayland":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "wayland")
		sdl.SetHint("SDL_VIDEO_WAYLAND_WMCLASS", "tapescrub")
	case "x11":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "x11")
		sdl.SetHint("SDL_VIDEO_X11_NET_WM_BYPASS_COMPOSITOR", "0")
	case "software":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "software")
		sdl.SetHint("SDL_FRAMEBUFFER_ACCELERATION", "0")
	case "dummy":
		sdl.SetHint(sdl.HINT_VIDEODRIVER, "dummy")
	}

	sdl.SetHint(sdl.HINT_RENDER_BATCHING, "1")
	if driver == "kmsdrm" || driver == "drm" {
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, "opengles2")
	} else if driver == "cocoa" {
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, "opengl")
	} else {
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, "software")
	}
	sdl.SetHint(sdl.HINT_VIDEO_MINIMIZE_ON_FOCUS_LOSS, "0")

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("SDL_INIT_VIDEO failed: %w", err)
	}
	if _, err := sdl.GetCurrentVideoDriver(); err != nil {
		return fmt.Errorf("failed to get video driver: %w", err)
	}
	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		logging.For("sdl-init").Warn().Err(err).Msg("audio subsystem init failed, continuing without it")
	}
	return nil
}

func getDisplayDimensions() (int32, int32) {
	displayMode, err := sdl.GetCurrentDisplayMode(0)
	if err != nil {
		return fallbackWidth, fallbackHeight
	}
	runtime.GC()
	return displayMode.W, displayMode.H
}

func logDisplayInfo() {
	log := logging.For("sdl-init")
	driver, _ := sdl.GetCurrentVideoDriver()
	numDisplays, err := sdl.GetNumVideoDisplays()
	if err != nil {
		log.Warn().Err(err).Msg("failed to get number of displays")
		return
	}
	log.Debug().Str("driver", driver).Int("displays", numDisplays).Msg("display configuration")
}

func createWindow(title string, width, height int32, fullscreen bool) (*sdl.Window, error) {
	var windowFlags uint32 = sdl.WINDOW_SHOWN | sdl.WINDOW_RESIZABLE
	if fullscreen {
		windowFlags |= sdl.WINDOW_FULLSCREEN
	}

	window, err := sdl.CreateWindow(title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED, width, height, windowFlags)
	if err != nil {
		return nil, err
	}
	_ = unsafe.Pointer(window)
	runtime.GC()
	return window, nil
}

func createRenderer(window *sdl.Window) (*sdl.Renderer, error) {
	log := logging.For("sdl-init")
	currentDriver, err := sdl.GetCurrentVideoDriver()
	if err != nil {
		currentDriver = "unknown"
	}

	var renderer *sdl.Renderer

	if currentDriver == "kmsdrm" || currentDriver == "drm" || currentDriver == "cocoa" {
		var rendererFlags uint32 = sdl.RENDERER_ACCELERATED
		if currentDriver != "kmsdrm" {
			rendererFlags |= sdl.RENDERER_PRESENTVSYNC
		}
		renderer, err = sdl.CreateRenderer(window, -1, rendererFlags)
		if err != nil {
			log.Debug().Err(err).Msg("hardware acceleration failed, trying software")
		}
	}

	if renderer == nil {
		renderer, err = sdl.CreateRenderer(window, -1, sdl.RENDERER_SOFTWARE)
		if err != nil {
			return nil, err
		}
	}

	renderer.SetDrawBlendMode(sdl.BLENDMODE_BLEND)
	_ = unsafe.Pointer(renderer)
	runtime.GC()
	return renderer, nil
}

// runGameLoop polls SDL events and the unified input command surface (§6),
// translating key edges into Commands calls. It never touches decode or
// audio state directly: the render driver and speed controller run on
// their own goroutines and read playhead.State independently.
func runGameLoop(state *playhead.State, cmds *input.Commands, metrics *telemetry.Metrics, durationS float64) {
	log := logging.For("game-loop")
	running := true
	frameTime := time.Second / targetFPS
	lastTime := time.Now()
	frameCount := 0

	keys := input.NewKeyPressTracker()

	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch event.(type) {
			case *sdl.QuitEvent:
				running = false
			}
		}

		keyState := sdl.GetKeyboardState()
		handleKeys(keyState, &keys, cmds, state, durationS)

		signedRate := state.Rate()
		if state.Reverse() {
			signedRate = -signedRate
		}
		metrics.PlaybackRate.Set(signedRate)

		frameCount++
		if frameCount%60 == 0 {
			runtime.GC()
		}

		elapsed := time.Since(lastTime)
		if elapsed < frameTime {
			time.Sleep(frameTime - elapsed)
		}
		lastTime = time.Now()

		if state.Quit() {
			running = false
		}
	}
	log.Info().Msg("game loop exited")
}

func handleKeys(keyState []uint8, keys *input.KeyPressTracker, cmds *input.Commands, state *playhead.State, durationS float64) {
	if keys.IsPressed(keyState, sdl.SCANCODE_SPACE) {
		cmds.TogglePlayPause()
	}
	if keys.IsPressed(keyState, sdl.SCANCODE_UP) {
		cmds.StepSpeedUp()
	}
	if keys.IsPressed(keyState, sdl.SCANCODE_DOWN) {
		cmds.StepSpeedDown()
	}
	if keys.IsPressed(keyState, sdl.SCANCODE_R) {
		cmds.ToggleReverse()
	}
	if keys.IsPressed(keyState, sdl.SCANCODE_EQUALS) {
		cmds.VolumeUp()
	}
	if keys.IsPressed(keyState, sdl.SCANCODE_MINUS) {
		cmds.VolumeDown()
	}
	if keys.IsPressed(keyState, sdl.SCANCODE_ESCAPE) {
		state.RequestQuit()
	}

	if keyState[sdl.SCANCODE_LEFT] != 0 {
		cmds.JogBackward()
	} else if keyState[sdl.SCANCODE_RIGHT] != 0 {
		cmds.JogForward()
	} else if state.Jogging() {
		cmds.JogRelease()
	}

	markerScancodes := [5]sdl.Scancode{
		sdl.SCANCODE_1, sdl.SCANCODE_2, sdl.SCANCODE_3, sdl.SCANCODE_4, sdl.SCANCODE_5,
	}
	shiftHeld := keyState[sdl.SCANCODE_LSHIFT] != 0 || keyState[sdl.SCANCODE_RSHIFT] != 0
	for i, sc := range markerScancodes {
		if !keys.IsPressed(keyState, sc) {
			continue
		}
		if shiftHeld {
			_ = cmds.JumpToMarker(i, durationS)
		} else {
			_ = cmds.SetMarker(i)
		}
	}

	cmds.SettleGateIfNeeded()
}
