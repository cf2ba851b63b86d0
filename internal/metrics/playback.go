// Package metrics provides Prometheus metrics for overlaycast.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	playbackModeAdaptive    = "adaptive-segmented"
	playbackModeNativeHLS   = "native-hls"
	playbackModeProgressive = "progressive"
	playbackModeUnknown     = "unknown"

	playbackTriggerLoad    = "load"
	playbackTriggerRetry   = "retry"
	playbackTriggerOptions = "options"

	playbackErrorNetwork = "network"
	playbackErrorMedia   = "media"

	playbackOriginEngine  = "engine"
	playbackOriginSink    = "sink"
	playbackOriginTimeout = "timeout"
	playbackOriginPlay    = "play"
	playbackOriginInit    = "init"
)

var (
	playbackSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_playback_sessions_total",
		Help: "Playback sessions created by strategy and trigger",
	}, []string{"mode", "trigger"})

	playbackReadySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overlaycast_playback_ready_seconds",
		Help:    "Time from session start to the ready signal",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
	}, []string{"mode"})

	playbackErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_playback_errors_total",
		Help: "Fatal playback errors by kind and origin",
	}, []string{"kind", "origin"})

	playbackNonFatalTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_playback_nonfatal_errors_total",
		Help: "Engine errors recovered without failing the session",
	}, []string{"type"})

	playbackStaleEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_playback_stale_events_total",
		Help: "Events dropped because their session was superseded",
	}, []string{"event"})

	playbackEnginesLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "overlaycast_playback_engines_live",
		Help: "Adaptive engine instances currently alive",
	})

	playbackTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_playback_transitions_total",
		Help: "Applied playback state transitions",
	}, []string{"from", "to"})
)

// IncPlaybackSession counts a newly created session.
func IncPlaybackSession(mode, trigger string) {
	playbackSessionsTotal.WithLabelValues(normalizeMode(mode), normalizeTrigger(trigger)).Inc()
}

// ObservePlaybackReady records the time to the ready signal.
func ObservePlaybackReady(mode string, d time.Duration) {
	playbackReadySeconds.WithLabelValues(normalizeMode(mode)).Observe(d.Seconds())
}

// IncPlaybackError counts a fatal playback error.
func IncPlaybackError(kind, origin string) {
	playbackErrorsTotal.WithLabelValues(normalizeErrorKind(kind), normalizeOrigin(origin)).Inc()
}

// IncPlaybackNonFatal counts a recovered engine error.
func IncPlaybackNonFatal(engineType string) {
	t := strings.TrimSpace(engineType)
	switch t {
	case "networkError", "mediaError", "muxError", "otherError":
	default:
		t = "unknown"
	}
	playbackNonFatalTotal.WithLabelValues(t).Inc()
}

// IncPlaybackStaleEvent counts an event dropped by the generation guard.
func IncPlaybackStaleEvent(event string) {
	playbackStaleEventsTotal.WithLabelValues(strings.ToLower(strings.TrimSpace(event))).Inc()
}

// IncPlaybackTransition counts an applied state transition.
func IncPlaybackTransition(from, to string) {
	playbackTransitionsTotal.WithLabelValues(from, to).Inc()
}

// PlaybackEngineStarted and PlaybackEngineStopped track live engines.
func PlaybackEngineStarted() { playbackEnginesLive.Inc() }

func PlaybackEngineStopped() { playbackEnginesLive.Dec() }

func normalizeMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case playbackModeAdaptive, playbackModeNativeHLS, playbackModeProgressive:
		return m
	default:
		return playbackModeUnknown
	}
}

func normalizeTrigger(trigger string) string {
	switch t := strings.ToLower(strings.TrimSpace(trigger)); t {
	case playbackTriggerLoad, playbackTriggerRetry, playbackTriggerOptions:
		return t
	default:
		return "unknown"
	}
}

func normalizeErrorKind(kind string) string {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case playbackErrorNetwork, playbackErrorMedia:
		return k
	default:
		return "unknown"
	}
}

func normalizeOrigin(origin string) string {
	switch o := strings.ToLower(strings.TrimSpace(origin)); o {
	case playbackOriginEngine, playbackOriginSink, playbackOriginTimeout, playbackOriginPlay, playbackOriginInit:
		return o
	default:
		return "unknown"
	}
}
