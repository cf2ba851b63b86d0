// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/overlaycast/internal/validate"
)

var (
	validLogLevels = []string{"trace", "debug", "info", "warn", "error"}
	validExporters = []string{"grpc", "http"}
)

// Validate checks the effective configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("logLevel", cfg.LogLevel, validLogLevels)
	v.MinDuration("shutdownTimeout", cfg.ShutdownTimeout, time.Second)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	if cfg.API.MetricsAddr != "" {
		v.ListenAddr("api.metricsAddr", cfg.API.MetricsAddr)
		if cfg.API.MetricsAddr == cfg.API.ListenAddr {
			v.AddError("api.metricsAddr", "must differ from api.listenAddr", cfg.API.MetricsAddr)
		}
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		v.AddError("api.allowedOrigins", "at least one origin is required", cfg.API.AllowedOrigins)
	}
	v.NonNegative("api.rateLimit", cfg.API.RateLimit)
	if cfg.API.RateLimit > 0 {
		v.MinDuration("api.rateWindow", cfg.API.RateWindow, time.Second)
	}

	v.URL("stream.playlistUrl", cfg.Stream.PlaylistURL, []string{"http", "https"})

	v.MinDuration("player.loadTimeout", cfg.Player.LoadTimeout, 100*time.Millisecond)
	v.MinDuration("player.probeTimeout", cfg.Player.ProbeTimeout, 100*time.Millisecond)

	v.MinDuration("engine.timeout", cfg.Engine.Timeout, 100*time.Millisecond)
	v.Range("engine.maxRetries", cfg.Engine.MaxRetries, 0, 10)
	v.MinDuration("engine.backoff", cfg.Engine.Backoff, time.Millisecond)
	if cfg.Engine.MaxBackoff < cfg.Engine.Backoff {
		v.AddError("engine.maxBackoff", "must not be smaller than engine.backoff", cfg.Engine.MaxBackoff)
	}
	v.FloatRange("engine.rateLimit", cfg.Engine.RateLimit, 0.1, 1000)
	v.Positive("engine.rateBurst", cfg.Engine.RateBurst)
	if cfg.Engine.LiveReload != 0 {
		v.MinDuration("engine.liveReload", cfg.Engine.LiveReload, 100*time.Millisecond)
	}

	if cfg.Telemetry.Enabled {
		v.NotEmpty("telemetry.serviceName", cfg.Telemetry.ServiceName)
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, validExporters)
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
