// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/overlaycast/internal/log"
)

// Environment keys. HLS_PLAYLIST, PING_MESSAGE and LOG_LEVEL keep their
// historic unprefixed names.
const (
	EnvPlaylist        = "HLS_PLAYLIST"
	EnvPingMessage     = "PING_MESSAGE"
	EnvLogLevel        = "LOG_LEVEL"
	EnvListenAddr      = "OVERLAYCAST_LISTEN"
	EnvMetricsAddr     = "OVERLAYCAST_METRICS_LISTEN"
	EnvAllowedOrigins  = "OVERLAYCAST_CORS_ORIGINS"
	EnvRateLimit       = "OVERLAYCAST_RATE_LIMIT"
	EnvRateWindow      = "OVERLAYCAST_RATE_WINDOW"
	EnvShutdownTimeout = "OVERLAYCAST_SHUTDOWN_TIMEOUT"
	EnvPreview         = "OVERLAYCAST_PREVIEW"
	EnvLoadTimeout     = "OVERLAYCAST_LOAD_TIMEOUT"
	EnvAutoplay        = "OVERLAYCAST_AUTOPLAY"
	EnvMuted           = "OVERLAYCAST_MUTED"
	EnvNativeHLS       = "OVERLAYCAST_NATIVE_HLS"
	EnvRequireGesture  = "OVERLAYCAST_REQUIRE_GESTURE"
	EnvProbeTimeout    = "OVERLAYCAST_PROBE_TIMEOUT"
	EnvEngineEnabled   = "OVERLAYCAST_ENGINE_ENABLED"
	EnvEngineTimeout   = "OVERLAYCAST_ENGINE_TIMEOUT"
	EnvEngineRetries   = "OVERLAYCAST_ENGINE_RETRIES"
	EnvEngineBackoff   = "OVERLAYCAST_ENGINE_BACKOFF"
	EnvEngineRate      = "OVERLAYCAST_ENGINE_RATE_LIMIT"
	EnvEngineBurst     = "OVERLAYCAST_ENGINE_RATE_BURST"
	EnvLiveReload      = "OVERLAYCAST_LIVE_RELOAD"
	EnvTraceEnabled    = "OVERLAYCAST_TRACING_ENABLED"
	EnvTraceExporter   = "OVERLAYCAST_TRACING_EXPORTER"
	EnvTraceEndpoint   = "OVERLAYCAST_TRACING_ENDPOINT"
	EnvTraceSampling   = "OVERLAYCAST_TRACING_SAMPLING_RATE"
)

// ParseString reads a string from the environment or returns defaultValue.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(v string) (string, error) { return v, nil })
}

// ParseInt reads an integer; invalid values fall back to defaultValue with a warning.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

// ParseDuration reads a Go duration such as "5s".
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

// ParseFloat reads a float64.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

// ParseBool accepts true/false, 1/0 and yes/no (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(v string) (bool, error) {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean %q", v)
	})
}

// ParseList reads a comma separated list, trimming blanks.
func ParseList(key string, defaultValue []string) []string {
	return parseEnv(key, defaultValue, func(v string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		return out, nil
	})
}

func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	return parseEnvWithLogger(log.WithComponent("config"), key, defaultValue, parse)
}

func parseEnvWithLogger[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}
