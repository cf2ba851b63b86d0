// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package preview runs the daemon's headless preview player. It keeps one
// player.Controller pointed at the configured playlist and mirrors the
// latest stream settings into the player options.
package preview

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/overlaycast/internal/config"
	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/metrics"
	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/player/hlsengine"
	"github.com/ManuGH/overlaycast/internal/player/media"
	"github.com/ManuGH/overlaycast/internal/store"
)

// Source change causes, used as metric labels.
const (
	CauseStartup = "startup"
	CauseConfig  = "config"
	CauseAPI     = "api"
)

// ConfigSource is the hot-reloadable configuration.
type ConfigSource interface {
	Get() config.AppConfig
	RegisterListener(ch chan<- config.AppConfig)
}

// SettingsSource is the stream settings repository.
type SettingsSource interface {
	Latest() (store.Settings, error)
	Subscribe(fn store.SettingsListener) (unsubscribe func())
}

// Deps wires a Service. Sink, Engines and Clock default to the headless
// implementations; the default engine factory is only built when
// engine.enabled is set.
type Deps struct {
	Config   ConfigSource
	Settings SettingsSource
	Logger   *zerolog.Logger

	Sink    player.Sink
	Engines player.EngineFactory
	Clock   player.Clock
}

// Service owns the preview controller.
type Service struct {
	cfg      ConfigSource
	settings SettingsSource
	logger   zerolog.Logger

	ctrl     *player.Controller
	headless *media.HeadlessSink

	updates chan config.AppConfig
	options chan player.Options
	optMu   sync.Mutex

	mu          sync.Mutex
	configURL   string
	started     bool
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
	closeErr    error
}

// New builds the player stack. Nothing is loaded until Start.
func New(deps Deps) (*Service, error) {
	if deps.Config == nil {
		return nil, errors.New("preview: config source is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("preview: settings source is required")
	}
	s := &Service{
		cfg:      deps.Config,
		settings: deps.Settings,
		updates:  make(chan config.AppConfig, 1),
		options:  make(chan player.Options, 1),
	}
	if deps.Logger != nil {
		s.logger = deps.Logger.With().Str(xglog.FieldComponent, "preview").Logger()
	} else {
		s.logger = xglog.WithComponent("preview")
	}

	cfg := deps.Config.Get()
	sink, engines := deps.Sink, deps.Engines
	if sink == nil {
		s.headless = NewHeadlessSink(cfg, deps.Logger)
		sink = s.headless
		if engines == nil && cfg.Engine.Enabled {
			engines = NewEngineFactory(cfg, deps.Logger)
		}
	}

	ctrl, err := player.New(player.Config{
		Sink:        sink,
		Engines:     engines,
		Clock:       deps.Clock,
		LoadTimeout: cfg.Player.LoadTimeout,
		Options:     s.currentOptions(cfg),
		Logger:      deps.Logger,
	})
	if err != nil {
		if s.headless != nil {
			s.headless.Close()
		}
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// NewHeadlessSink builds the server-side sink from configuration.
func NewHeadlessSink(cfg config.AppConfig, logger *zerolog.Logger) *media.HeadlessSink {
	return media.NewHeadlessSink(media.Config{
		NativeHLS:      cfg.Player.NativeHLS,
		RequireGesture: cfg.Player.RequireGesture,
		ProbeTimeout:   cfg.Player.ProbeTimeout,
		Logger:         logger,
	})
}

// NewEngineFactory builds the adaptive engine factory from configuration.
func NewEngineFactory(cfg config.AppConfig, logger *zerolog.Logger) *hlsengine.Factory {
	return hlsengine.NewFactory(hlsengine.Config{
		Client: &http.Client{
			Timeout:   cfg.Engine.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		MaxRetries: cfg.Engine.MaxRetries,
		Backoff:    cfg.Engine.Backoff,
		MaxBackoff: cfg.Engine.MaxBackoff,
		RateLimit:  rate.Limit(cfg.Engine.RateLimit),
		RateBurst:  cfg.Engine.RateBurst,
		LiveReload: cfg.Engine.LiveReload,
		Logger:     logger,
	})
}

// Start loads the configured playlist and begins following settings and
// configuration changes. It must be called at most once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("preview: already started")
	}
	s.started = true
	cfg := s.cfg.Get()
	s.configURL = cfg.Stream.PlaylistURL
	s.mu.Unlock()

	if err := s.ctrl.SetOptions(ctx, s.currentOptions(cfg)); err != nil {
		return err
	}
	if err := s.load(ctx, cfg.Stream.PlaylistURL, CauseStartup); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.unsubscribe = s.settings.Subscribe(s.onSettings)
	s.mu.Unlock()
	s.cfg.RegisterListener(s.updates)

	s.wg.Add(1)
	go s.run(loopCtx)

	s.logger.Info().
		Str(xglog.FieldEvent, "preview.started").
		Str(xglog.FieldSourceURL, cfg.Stream.PlaylistURL).
		Msg("preview player started")
	return nil
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-s.updates:
			s.applyConfig(ctx, cfg)
		case opts := <-s.options:
			if err := s.ctrl.SetOptions(ctx, opts); err != nil {
				s.logger.Warn().Err(err).Str(xglog.FieldEvent, "preview.options_failed").Msg("failed to apply settings")
			}
		}
	}
}

func (s *Service) applyConfig(ctx context.Context, cfg config.AppConfig) {
	s.mu.Lock()
	changed := cfg.Stream.PlaylistURL != s.configURL
	s.configURL = cfg.Stream.PlaylistURL
	s.mu.Unlock()
	if !changed {
		return
	}
	if err := s.load(ctx, cfg.Stream.PlaylistURL, CauseConfig); err != nil {
		s.logger.Warn().Err(err).Str(xglog.FieldEvent, "preview.reload_failed").Msg("failed to load reloaded playlist")
	}
}

// onSettings runs on the store's mutating goroutine and only hands the new
// options to the loop. Older pending options are replaced.
func (s *Service) onSettings(latest store.Settings, ok bool) {
	opts := s.fallbackOptions()
	if ok {
		opts = player.Options{Autoplay: latest.Autoplay, Muted: latest.Muted}
	}
	s.optMu.Lock()
	defer s.optMu.Unlock()
	select {
	case <-s.options:
	default:
	}
	s.options <- opts
}

func (s *Service) currentOptions(cfg config.AppConfig) player.Options {
	if st, err := s.settings.Latest(); err == nil {
		return player.Options{Autoplay: st.Autoplay, Muted: st.Muted}
	}
	return player.Options{Autoplay: cfg.Player.Autoplay, Muted: cfg.Player.Muted}
}

func (s *Service) fallbackOptions() player.Options {
	cfg := s.cfg.Get()
	return player.Options{Autoplay: cfg.Player.Autoplay, Muted: cfg.Player.Muted}
}

func (s *Service) load(ctx context.Context, url, cause string) error {
	if err := s.ctrl.Load(ctx, url); err != nil {
		return err
	}
	metrics.IncPreviewSourceChange(cause)
	return nil
}

// Load switches the preview to url on behalf of an API caller.
func (s *Service) Load(ctx context.Context, url string) error {
	return s.load(ctx, url, CauseAPI)
}

func (s *Service) Snapshot(ctx context.Context) (player.Snapshot, error) {
	return s.ctrl.Snapshot(ctx)
}

func (s *Service) Retry(ctx context.Context) error {
	return s.ctrl.Retry(ctx)
}

func (s *Service) TogglePlay(ctx context.Context) error {
	return s.ctrl.TogglePlay(ctx)
}

func (s *Service) ToggleMute(ctx context.Context) error {
	return s.ctrl.ToggleMute(ctx)
}

func (s *Service) SetVolume(ctx context.Context, level float64) error {
	return s.ctrl.SetVolume(ctx, level)
}

// SinkStatus reports the headless sink counters; ok is false when a custom
// sink was injected.
func (s *Service) SinkStatus() (media.Status, bool) {
	if s.headless == nil {
		return media.Status{}, false
	}
	return s.headless.Status(), true
}

// Close stops following changes and disposes of the player. It is safe to
// call more than once.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel, unsubscribe := s.cancel, s.unsubscribe
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()

		s.closeErr = s.ctrl.Close(ctx)
		if s.headless != nil {
			s.headless.Close()
		}
		s.logger.Info().Str(xglog.FieldEvent, "preview.stopped").Msg("preview player stopped")
	})
	return s.closeErr
}
