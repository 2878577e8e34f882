package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tapescrub/internal/logging"
)

// Metrics holds the process's Prometheus collectors. It is diagnostics
// surface only: nothing here carries a video or audio byte.
type Metrics struct {
	DecodeDuration  *prometheus.HistogramVec
	SegmentsLoaded  *prometheus.CounterVec
	SegmentsEvicted *prometheus.CounterVec
	AudioUnderruns  prometheus.Counter
	PlaybackRate    prometheus.Gauge

	MemoryAvailableMB prometheus.Gauge
	MemoryPressure    prometheus.Gauge
}

// NewMetrics registers and returns the collector set against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tapescrub",
			Name:      "decode_duration_seconds",
			Help:      "Time spent in a single decode_range call, by decoder tier.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tier"}),
		SegmentsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapescrub",
			Name:      "segments_loaded_total",
			Help:      "Segments loaded, by manager.",
		}, []string{"manager"}),
		SegmentsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tapescrub",
			Name:      "segments_evicted_total",
			Help:      "Segments evicted, by manager.",
		}, []string{"manager"}),
		AudioUnderruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tapescrub",
			Name:      "audio_underruns_total",
			Help:      "Output frames where read-ahead caught up with the decode thread.",
		}),
		PlaybackRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tapescrub",
			Name:      "playback_rate",
			Help:      "Current playback rate (signed; negative means reverse).",
		}),
		MemoryAvailableMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tapescrub",
			Name:      "memory_available_mb",
			Help:      "System memory available to the process, in megabytes.",
		}),
		MemoryPressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tapescrub",
			Name:      "memory_pressure_level",
			Help:      "Current memory pressure level (0=none, 1=low, 2=medium, 3=high, 4=critical).",
		}),
	}

	reg.MustRegister(m.DecodeDuration, m.SegmentsLoaded, m.SegmentsEvicted, m.AudioUnderruns, m.PlaybackRate,
		m.MemoryAvailableMB, m.MemoryPressure)
	return m
}

// Server is the minimal local-only /metrics + /healthz mux. It is never a
// playback or streaming server: it exists purely so an operator (or a local
// dashboard) can scrape diagnostics.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a chi mux exposing reg's Prometheus registry at /metrics
// and a trivial liveness check at /healthz, bound to addr (e.g. "127.0.0.1:9090").
func NewServer(addr string, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{httpServer: &http.Server{Addr: addr, Handler: r}}
}

// Run starts serving until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	log := logging.For("telemetry-server")
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("telemetry server stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("telemetry server shutdown error")
	}
}
