// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/overlaycast/internal/metrics"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath means ENV and defaults only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configured file path.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load resolves defaults, then the file, then the environment, and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := LoadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		metrics.IncConfigValidationError()
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.ShutdownTimeout)

	cfg.API.ListenAddr = l.envString(EnvListenAddr, cfg.API.ListenAddr)
	cfg.API.MetricsAddr = l.envString(EnvMetricsAddr, cfg.API.MetricsAddr)
	cfg.API.AllowedOrigins = l.envList(EnvAllowedOrigins, cfg.API.AllowedOrigins)
	cfg.API.RateLimit = l.envInt(EnvRateLimit, cfg.API.RateLimit)
	cfg.API.RateWindow = l.envDuration(EnvRateWindow, cfg.API.RateWindow)

	cfg.Stream.PlaylistURL = l.envString(EnvPlaylist, cfg.Stream.PlaylistURL)
	// an explicitly empty PING_MESSAGE is honoured
	l.ConsumedEnvKeys[EnvPingMessage] = struct{}{}
	if v, ok := os.LookupEnv(EnvPingMessage); ok {
		cfg.Stream.PingMessage = v
	}

	cfg.Player.Preview = l.envBool(EnvPreview, cfg.Player.Preview)
	cfg.Player.LoadTimeout = l.envDuration(EnvLoadTimeout, cfg.Player.LoadTimeout)
	cfg.Player.Autoplay = l.envBool(EnvAutoplay, cfg.Player.Autoplay)
	cfg.Player.Muted = l.envBool(EnvMuted, cfg.Player.Muted)
	cfg.Player.NativeHLS = l.envBool(EnvNativeHLS, cfg.Player.NativeHLS)
	cfg.Player.RequireGesture = l.envBool(EnvRequireGesture, cfg.Player.RequireGesture)
	cfg.Player.ProbeTimeout = l.envDuration(EnvProbeTimeout, cfg.Player.ProbeTimeout)

	cfg.Engine.Enabled = l.envBool(EnvEngineEnabled, cfg.Engine.Enabled)
	cfg.Engine.Timeout = l.envDuration(EnvEngineTimeout, cfg.Engine.Timeout)
	cfg.Engine.MaxRetries = l.envInt(EnvEngineRetries, cfg.Engine.MaxRetries)
	cfg.Engine.Backoff = l.envDuration(EnvEngineBackoff, cfg.Engine.Backoff)
	cfg.Engine.RateLimit = l.envFloat(EnvEngineRate, cfg.Engine.RateLimit)
	cfg.Engine.RateBurst = l.envInt(EnvEngineBurst, cfg.Engine.RateBurst)
	cfg.Engine.LiveReload = l.envDuration(EnvLiveReload, cfg.Engine.LiveReload)

	cfg.Telemetry.Enabled = l.envBool(EnvTraceEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTraceExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTraceEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTraceSampling, cfg.Telemetry.SamplingRate)
}

// LoadFile parses a YAML file strictly: unknown keys and trailing
// documents are errors.
func LoadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}
