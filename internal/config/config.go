// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads, validates, persists and hot-reloads the overlaycast
// daemon configuration.
//
// Precedence is ENV > file > defaults. The YAML file is parsed strictly:
// unknown keys and multiple documents are rejected.
package config

import "time"

// DefaultPlaylistURL is served by /api/playlist when nothing else is set.
const DefaultPlaylistURL = "https://test-streams.mux.dev/x36xhzz/x36xhzz.m3u8"

// AppConfig is the effective runtime configuration.
type AppConfig struct {
	Version  string
	LogLevel string

	API       APIConfig
	Stream    StreamConfig
	Player    PlayerConfig
	Engine    EngineConfig
	Telemetry TelemetryConfig

	ShutdownTimeout time.Duration
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	ListenAddr        string
	MetricsAddr       string
	AllowedOrigins    []string
	RateLimit         int
	RateWindow        time.Duration
	ReadHeaderTimeout time.Duration
}

// StreamConfig holds what the playlist and ping endpoints report.
type StreamConfig struct {
	PlaylistURL string
	PingMessage string
}

// PlayerConfig configures the headless preview player.
type PlayerConfig struct {
	Preview        bool
	LoadTimeout    time.Duration
	Autoplay       bool
	Muted          bool
	NativeHLS      bool
	RequireGesture bool
	ProbeTimeout   time.Duration
}

// EngineConfig tunes the adaptive segment engine.
type EngineConfig struct {
	// Enabled offers segmented adaptive playback. When false every source
	// goes through the sink's native or progressive path.
	Enabled    bool
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	RateLimit  float64
	RateBurst  int
	LiveReload time.Duration
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		API: APIConfig{
			ListenAddr:        ":8080",
			MetricsAddr:       ":9090",
			AllowedOrigins:    []string{"*"},
			RateLimit:         120,
			RateWindow:        time.Minute,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Stream: StreamConfig{
			PlaylistURL: DefaultPlaylistURL,
			PingMessage: "ping",
		},
		Player: PlayerConfig{
			Preview:      true,
			LoadTimeout:  10 * time.Second,
			ProbeTimeout: 8 * time.Second,
		},
		Engine: EngineConfig{
			Enabled:    true,
			Timeout:    10 * time.Second,
			MaxRetries: 3,
			Backoff:    250 * time.Millisecond,
			MaxBackoff: 4 * time.Second,
			RateLimit:  20,
			RateBurst:  10,
		},
		Telemetry: TelemetryConfig{
			ServiceName:  "overlaycast",
			Environment:  "production",
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		ShutdownTimeout: 15 * time.Second,
	}
}
