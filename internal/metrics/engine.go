package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_engine_fetch_total",
		Help: "Adaptive engine HTTP fetches by resource and outcome",
	}, []string{"resource", "outcome"}) // resource=manifest|level|fragment, outcome=success|failure

	engineFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "overlaycast_engine_fetch_seconds",
		Help:    "Adaptive engine fetch latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	engineFetchBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_engine_fetch_bytes_total",
		Help: "Bytes downloaded by adaptive engines",
	}, []string{"resource"})

	engineRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_engine_retries_total",
		Help: "Adaptive engine fetch retries",
	}, []string{"resource"})

	engineSegmentsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlaycast_engine_segments_appended_total",
		Help: "Segments appended to media sinks",
	})
)

func normalizeResource(resource string) string {
	switch resource {
	case "manifest", "level", "fragment":
		return resource
	default:
		return "unknown"
	}
}

// ObserveEngineFetch records one fetch attempt.
func ObserveEngineFetch(resource string, ok bool, bytes int, d time.Duration) {
	resource = normalizeResource(resource)
	outcome := "failure"
	if ok {
		outcome = "success"
		engineFetchBytes.WithLabelValues(resource).Add(float64(bytes))
	}
	engineFetchTotal.WithLabelValues(resource, outcome).Inc()
	engineFetchSeconds.WithLabelValues(resource).Observe(d.Seconds())
}

func IncEngineRetry(resource string) {
	engineRetriesTotal.WithLabelValues(normalizeResource(resource)).Inc()
}

func IncEngineSegmentAppended() { engineSegmentsAppended.Inc() }
