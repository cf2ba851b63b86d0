// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	overlaysTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "overlaycast_overlays_total",
		Help: "Overlays currently stored",
	})

	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_store_operations_total",
		Help: "Record store mutations by entity, operation and outcome",
	}, []string{"entity", "op", "outcome"}) // entity=overlay|settings, op=create|update|delete, outcome=success|invalid|not_found

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_config_reloads_total",
		Help: "Configuration reload attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overlaycast_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	previewSourceChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "overlaycast_preview_source_changes_total",
		Help: "Preview source changes by cause",
	}, []string{"cause"}) // cause=startup|config|api
)

// SetOverlaysTotal records the current overlay count.
func SetOverlaysTotal(n int) {
	overlaysTotal.Set(float64(n))
}

// IncStoreOperation counts a store mutation.
func IncStoreOperation(entity, op, outcome string) {
	switch entity {
	case "overlay", "settings":
	default:
		entity = "unknown"
	}
	switch op {
	case "create", "update", "delete":
	default:
		op = "unknown"
	}
	switch outcome {
	case "success", "invalid", "not_found":
	default:
		outcome = "error"
	}
	storeOperationsTotal.WithLabelValues(entity, op, outcome).Inc()
}

// IncConfigReload counts a reload attempt.
func IncConfigReload(success bool) {
	if success {
		configReloadsTotal.WithLabelValues("success").Inc()
		return
	}
	configReloadsTotal.WithLabelValues("failure").Inc()
}

// IncConfigValidationError counts a rejected configuration.
func IncConfigValidationError() {
	configValidationErrors.Inc()
}

// IncPreviewSourceChange counts a preview source change.
func IncPreviewSourceChange(cause string) {
	switch cause {
	case "startup", "config", "api":
	default:
		cause = "unknown"
	}
	previewSourceChanges.WithLabelValues(cause).Inc()
}
