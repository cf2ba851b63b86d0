// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/log"
)

// PerformStartupChecks validates the runtime environment before the servers
// start. configPath may be empty when the daemon runs from environment only.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig, configPath string) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkConfigDir(logger, configPath); err != nil {
		return fmt.Errorf("config directory check failed: %w", err)
	}
	if err := checkListenAddr(logger, "api", cfg.API.ListenAddr); err != nil {
		return err
	}
	if err := checkListenAddr(logger, "metrics", cfg.API.MetricsAddr); err != nil {
		return err
	}
	if cfg.API.ListenAddr != "" && cfg.API.ListenAddr == cfg.API.MetricsAddr {
		return fmt.Errorf("api and metrics listen on the same address %q", cfg.API.ListenAddr)
	}
	if err := checkPlaylistURL(logger, cfg.Stream.PlaylistURL); err != nil {
		return err
	}

	for _, origin := range cfg.API.AllowedOrigins {
		if origin == "*" {
			logger.Warn().Msg("CORS allows any origin; restrict api.allowedOrigins outside development")
			break
		}
	}
	if !cfg.Player.Preview {
		logger.Info().Msg("preview player disabled; /api/player answers 503")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkConfigDir(logger zerolog.Logger, path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", dir)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}
	logger.Info().Str(log.FieldPath, dir).Msg("config directory present")
	return nil
}

// checkListenAddr accepts an empty address as "disabled".
func checkListenAddr(logger zerolog.Logger, name, addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s listen address %q: %w", name, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s listen port %q in %q", name, port, addr)
	}
	logger.Info().Str("addr", addr).Msgf("%s listen address is valid", name)
	return nil
}

func checkPlaylistURL(logger zerolog.Logger, raw string) error {
	if raw == "" {
		logger.Warn().Msg("no playlist URL configured; preview stays detached")
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid playlist URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("playlist URL scheme must be http or https, got: %s", u.Scheme)
	}
	logger.Info().Str(log.FieldSourceURL, raw).Msg("playlist URL is valid")
	return nil
}
