// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"
)

// FileConfig is the on-disk YAML shape. Pointer and empty-string fields mean
// "not set" so the defaults survive a partial file.
type FileConfig struct {
	LogLevel        string              `yaml:"logLevel,omitempty"`
	ShutdownTimeout string              `yaml:"shutdownTimeout,omitempty"`
	API             APIFileConfig       `yaml:"api,omitempty"`
	Stream          StreamFileConfig    `yaml:"stream,omitempty"`
	Player          PlayerFileConfig    `yaml:"player,omitempty"`
	Engine          EngineFileConfig    `yaml:"engine,omitempty"`
	Telemetry       TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type APIFileConfig struct {
	ListenAddr        string   `yaml:"listenAddr,omitempty"`
	MetricsAddr       *string  `yaml:"metricsAddr,omitempty"`
	AllowedOrigins    []string `yaml:"allowedOrigins,omitempty"`
	RateLimit         *int     `yaml:"rateLimit,omitempty"`
	RateWindow        string   `yaml:"rateWindow,omitempty"`
	ReadHeaderTimeout string   `yaml:"readHeaderTimeout,omitempty"`
}

type StreamFileConfig struct {
	PlaylistURL string `yaml:"playlistUrl,omitempty"`
	PingMessage string `yaml:"pingMessage,omitempty"`
}

type PlayerFileConfig struct {
	Preview        *bool  `yaml:"preview,omitempty"`
	LoadTimeout    string `yaml:"loadTimeout,omitempty"`
	Autoplay       *bool  `yaml:"autoplay,omitempty"`
	Muted          *bool  `yaml:"muted,omitempty"`
	NativeHLS      *bool  `yaml:"nativeHls,omitempty"`
	RequireGesture *bool  `yaml:"requireGesture,omitempty"`
	ProbeTimeout   string `yaml:"probeTimeout,omitempty"`
}

type EngineFileConfig struct {
	Enabled    *bool    `yaml:"enabled,omitempty"`
	Timeout    string   `yaml:"timeout,omitempty"`
	MaxRetries *int     `yaml:"maxRetries,omitempty"`
	Backoff    string   `yaml:"backoff,omitempty"`
	MaxBackoff string   `yaml:"maxBackoff,omitempty"`
	RateLimit  *float64 `yaml:"rateLimit,omitempty"`
	RateBurst  *int     `yaml:"rateBurst,omitempty"`
	LiveReload string   `yaml:"liveReload,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	ServiceName  string   `yaml:"serviceName,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}

// mergeFileConfig overlays every field that is set in src onto cfg.
func mergeFileConfig(cfg *AppConfig, src *FileConfig) error {
	setString(&cfg.LogLevel, src.LogLevel)
	if err := setDuration(&cfg.ShutdownTimeout, "shutdownTimeout", src.ShutdownTimeout); err != nil {
		return err
	}

	setString(&cfg.API.ListenAddr, src.API.ListenAddr)
	if src.API.MetricsAddr != nil {
		cfg.API.MetricsAddr = *src.API.MetricsAddr
	}
	if len(src.API.AllowedOrigins) > 0 {
		cfg.API.AllowedOrigins = append([]string(nil), src.API.AllowedOrigins...)
	}
	setInt(&cfg.API.RateLimit, src.API.RateLimit)
	if err := setDuration(&cfg.API.RateWindow, "api.rateWindow", src.API.RateWindow); err != nil {
		return err
	}
	if err := setDuration(&cfg.API.ReadHeaderTimeout, "api.readHeaderTimeout", src.API.ReadHeaderTimeout); err != nil {
		return err
	}

	setString(&cfg.Stream.PlaylistURL, src.Stream.PlaylistURL)
	setString(&cfg.Stream.PingMessage, src.Stream.PingMessage)

	setBool(&cfg.Player.Preview, src.Player.Preview)
	setBool(&cfg.Player.Autoplay, src.Player.Autoplay)
	setBool(&cfg.Player.Muted, src.Player.Muted)
	setBool(&cfg.Player.NativeHLS, src.Player.NativeHLS)
	setBool(&cfg.Player.RequireGesture, src.Player.RequireGesture)
	if err := setDuration(&cfg.Player.LoadTimeout, "player.loadTimeout", src.Player.LoadTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Player.ProbeTimeout, "player.probeTimeout", src.Player.ProbeTimeout); err != nil {
		return err
	}

	setBool(&cfg.Engine.Enabled, src.Engine.Enabled)
	setInt(&cfg.Engine.MaxRetries, src.Engine.MaxRetries)
	setInt(&cfg.Engine.RateBurst, src.Engine.RateBurst)
	if src.Engine.RateLimit != nil {
		cfg.Engine.RateLimit = *src.Engine.RateLimit
	}
	for _, d := range []struct {
		dst  *time.Duration
		name string
		raw  string
	}{
		{&cfg.Engine.Timeout, "engine.timeout", src.Engine.Timeout},
		{&cfg.Engine.Backoff, "engine.backoff", src.Engine.Backoff},
		{&cfg.Engine.MaxBackoff, "engine.maxBackoff", src.Engine.MaxBackoff},
		{&cfg.Engine.LiveReload, "engine.liveReload", src.Engine.LiveReload},
	} {
		if err := setDuration(d.dst, d.name, d.raw); err != nil {
			return err
		}
	}

	setBool(&cfg.Telemetry.Enabled, src.Telemetry.Enabled)
	setString(&cfg.Telemetry.ServiceName, src.Telemetry.ServiceName)
	setString(&cfg.Telemetry.Environment, src.Telemetry.Environment)
	setString(&cfg.Telemetry.Exporter, src.Telemetry.Exporter)
	setString(&cfg.Telemetry.Endpoint, src.Telemetry.Endpoint)
	if src.Telemetry.SamplingRate != nil {
		cfg.Telemetry.SamplingRate = *src.Telemetry.SamplingRate
	}
	return nil
}

// ToFileConfig maps the effective configuration back to its YAML shape.
func ToFileConfig(cfg AppConfig) FileConfig {
	return toFileConfig(cfg)
}

func toFileConfig(cfg AppConfig) FileConfig {
	return FileConfig{
		LogLevel:        cfg.LogLevel,
		ShutdownTimeout: cfg.ShutdownTimeout.String(),
		API: APIFileConfig{
			ListenAddr:        cfg.API.ListenAddr,
			MetricsAddr:       ptr(cfg.API.MetricsAddr),
			AllowedOrigins:    cfg.API.AllowedOrigins,
			RateLimit:         ptr(cfg.API.RateLimit),
			RateWindow:        cfg.API.RateWindow.String(),
			ReadHeaderTimeout: cfg.API.ReadHeaderTimeout.String(),
		},
		Stream: StreamFileConfig{
			PlaylistURL: cfg.Stream.PlaylistURL,
			PingMessage: cfg.Stream.PingMessage,
		},
		Player: PlayerFileConfig{
			Preview:        ptr(cfg.Player.Preview),
			LoadTimeout:    cfg.Player.LoadTimeout.String(),
			Autoplay:       ptr(cfg.Player.Autoplay),
			Muted:          ptr(cfg.Player.Muted),
			NativeHLS:      ptr(cfg.Player.NativeHLS),
			RequireGesture: ptr(cfg.Player.RequireGesture),
			ProbeTimeout:   cfg.Player.ProbeTimeout.String(),
		},
		Engine: EngineFileConfig{
			Enabled:    ptr(cfg.Engine.Enabled),
			Timeout:    cfg.Engine.Timeout.String(),
			MaxRetries: ptr(cfg.Engine.MaxRetries),
			Backoff:    cfg.Engine.Backoff.String(),
			MaxBackoff: cfg.Engine.MaxBackoff.String(),
			RateLimit:  ptr(cfg.Engine.RateLimit),
			RateBurst:  ptr(cfg.Engine.RateBurst),
			LiveReload: durationOrEmpty(cfg.Engine.LiveReload),
		},
		Telemetry: TelemetryFileConfig{
			Enabled:      ptr(cfg.Telemetry.Enabled),
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			Exporter:     cfg.Telemetry.Exporter,
			Endpoint:     cfg.Telemetry.Endpoint,
			SamplingRate: ptr(cfg.Telemetry.SamplingRate),
		},
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, name, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", name, raw, err)
	}
	*dst = d
	return nil
}

func durationOrEmpty(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func ptr[T any](v T) *T { return &v }
