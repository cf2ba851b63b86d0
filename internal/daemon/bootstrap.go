// SPDX-License-Identifier: MIT

// Package daemon provides the core daemon bootstrapping and lifecycle management.
package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/overlaycast/internal/api"
	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/health"
	"github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/preview"
	"github.com/ManuGH/overlaycast/internal/store"
	"github.com/ManuGH/overlaycast/internal/telemetry"
)

// ServiceName tags every log line and the trace resource.
const ServiceName = "overlaycast"

// Options selects where the daemon reads its configuration from.
type Options struct {
	// Version is the build version
	Version string

	// ConfigPath is the path to the YAML config file; empty means ENV only
	ConfigPath string

	// LogOutput defaults to os.Stdout
	LogOutput io.Writer
}

// Runtime is a fully wired daemon, ready to Run.
type Runtime struct {
	App      *App
	Config   *config.ConfigHolder
	Overlays *store.OverlayStore
	Settings *store.SettingsStore
	Preview  *preview.Service
	Health   *health.Manager
}

// Bootstrap loads configuration, configures logging and tracing, and wires
// stores, the preview player, the API and the servers. Everything started
// here is released by the manager's shutdown hooks.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	loader := config.NewLoader(opts.ConfigPath, opts.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	log.Reconfigure(log.Config{
		Level:   cfg.LogLevel,
		Output:  out,
		Service: ServiceName,
		Version: opts.Version,
	})
	logger := log.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg, opts.ConfigPath); err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.FromAppConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}
	if tp.Enabled() {
		logger.Info().
			Str("endpoint", cfg.Telemetry.Endpoint).
			Float64("sampling_rate", cfg.Telemetry.SamplingRate).
			Msg("telemetry initialized")
	}

	holder := config.NewConfigHolder(cfg, loader)
	rt := &Runtime{
		Config:   holder,
		Overlays: store.NewOverlayStore(time.Now),
		Settings: store.NewSettingsStore(time.Now),
		Health:   health.NewManager(opts.Version),
	}
	rt.Health.RegisterChecker(health.NewConfigFileChecker(opts.ConfigPath))

	apiDeps := api.Deps{
		Config:   holder,
		Overlays: rt.Overlays,
		Settings: rt.Settings,
		Health:   rt.Health,
	}
	if cfg.Player.Preview {
		svc, err := preview.New(preview.Deps{Config: holder, Settings: rt.Settings})
		if err != nil {
			_ = tp.Shutdown(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("preview init failed: %w", err)
		}
		if err := svc.Start(ctx); err != nil {
			_ = svc.Close(context.WithoutCancel(ctx))
			_ = tp.Shutdown(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("preview start failed: %w", err)
		}
		rt.Preview = svc
		apiDeps.Player = svc
		rt.Health.RegisterChecker(health.NewPlayerChecker(svc.Snapshot))
	}

	srv, err := api.New(apiDeps)
	if err != nil {
		rt.closeEarly(ctx, tp)
		return nil, err
	}

	mgr, err := NewManager(ServerConfigFrom(cfg), Deps{
		Logger:         logger,
		APIHandler:     srv.Handler(),
		MetricsHandler: promhttp.Handler(),
	})
	if err != nil {
		rt.closeEarly(ctx, tp)
		return nil, err
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("config_watcher", func(context.Context) error {
		holder.Stop()
		return nil
	})
	if rt.Preview != nil {
		mgr.RegisterShutdownHook("preview", rt.Preview.Close)
	}

	rt.App = NewApp(logger, mgr, holder)
	return rt, nil
}

func (rt *Runtime) closeEarly(ctx context.Context, tp *telemetry.Provider) {
	if rt.Preview != nil {
		_ = rt.Preview.Close(context.WithoutCancel(ctx))
	}
	_ = tp.Shutdown(context.WithoutCancel(ctx))
}
