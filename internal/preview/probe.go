// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package preview

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/player"
)

const probePollInterval = 50 * time.Millisecond

// ProbeDeps overrides the headless collaborators used by Probe.
type ProbeDeps struct {
	Sink    player.Sink
	Engines player.EngineFactory
	Clock   player.Clock
	Logger  *zerolog.Logger
}

// Probe runs one playback session for url and returns the snapshot once the
// session left Loading or the player load timeout fired. Autoplay is forced
// so a ready stream is also asked to play.
func Probe(ctx context.Context, cfg config.AppConfig, url string, deps ProbeDeps) (player.Snapshot, error) {
	sink, engines := deps.Sink, deps.Engines
	if sink == nil {
		headless := NewHeadlessSink(cfg, deps.Logger)
		defer headless.Close()
		sink = headless
		if engines == nil && cfg.Engine.Enabled {
			engines = NewEngineFactory(cfg, deps.Logger)
		}
	}

	ctrl, err := player.New(player.Config{
		Sink:        sink,
		Engines:     engines,
		Clock:       deps.Clock,
		LoadTimeout: cfg.Player.LoadTimeout,
		Options:     player.Options{Autoplay: true, Muted: true},
		Logger:      deps.Logger,
	})
	if err != nil {
		return player.Snapshot{}, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ctrl.Close(closeCtx)
	}()

	if err := ctrl.Load(ctx, url); err != nil {
		return player.Snapshot{}, err
	}

	ticker := time.NewTicker(probePollInterval)
	defer ticker.Stop()
	for {
		snap, err := ctrl.Snapshot(ctx)
		if err != nil {
			return player.Snapshot{}, err
		}
		if snap.State != player.StateLoading || snap.Source == "" {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}
