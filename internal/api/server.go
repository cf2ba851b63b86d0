// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the overlay, settings and player control REST API.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/overlaycast/internal/api/middleware"
	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/store"
)

const maxBodyBytes = 1 << 20

// ConfigSource yields the current configuration. *config.ConfigHolder
// satisfies it, so reloads are visible to the next request.
type ConfigSource interface {
	Get() config.AppConfig
}

// Player is the control surface exposed over HTTP. *player.Controller
// satisfies it.
type Player interface {
	Snapshot(ctx context.Context) (player.Snapshot, error)
	Load(ctx context.Context, url string) error
	Retry(ctx context.Context) error
	TogglePlay(ctx context.Context) error
	ToggleMute(ctx context.Context) error
	SetVolume(ctx context.Context, level float64) error
}

// HealthProbe answers /healthz and /readyz.
type HealthProbe interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Deps carries the collaborators of a Server. Player and Health are
// optional.
type Deps struct {
	Config   ConfigSource
	Overlays *store.OverlayStore
	Settings *store.SettingsStore
	Player   Player
	Health   HealthProbe
}

// Server holds the HTTP handlers.
type Server struct {
	cfg      ConfigSource
	overlays *store.OverlayStore
	settings *store.SettingsStore
	player   Player
	health   HealthProbe

	validator func(http.Handler) http.Handler
}

// New validates deps and prepares the request validator.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("api: config source is required")
	}
	if deps.Overlays == nil || deps.Settings == nil {
		return nil, errors.New("api: overlay and settings stores are required")
	}
	doc, err := OpenAPISpec()
	if err != nil {
		return nil, err
	}
	validator, err := requestValidator(doc)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       deps.Config,
		overlays:  deps.Overlays,
		settings:  deps.Settings,
		player:    deps.Player,
		health:    deps.Health,
		validator: validator,
	}, nil
}

// Handler builds the router with the full middleware stack. The stack is
// configured from the configuration current at call time.
func (s *Server) Handler() http.Handler {
	cfg := s.cfg.Get()
	stack := middleware.StackConfig{
		EnableCORS:            true,
		AllowedOrigins:        cfg.API.AllowedOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
		RateLimit:             cfg.API.RateLimit,
		RateWindow:            cfg.API.RateWindow,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = cfg.Telemetry.ServiceName
	}
	r := middleware.NewRouter(stack)
	s.routes(r)
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(s.validator)

		r.Get("/ping", s.handlePing)
		r.Get("/playlist", s.handlePlaylist)

		r.Route("/overlays", func(r chi.Router) {
			r.Get("/", s.handleListOverlays)
			r.Post("/", s.handleCreateOverlay)
			r.Get("/{id}", s.handleGetOverlay)
			r.Put("/{id}", s.handleUpdateOverlay)
			r.Delete("/{id}", s.handleDeleteOverlay)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleLatestSettings)
			r.Post("/", s.handleCreateSettings)
			r.Put("/{id}", s.handleUpdateSettings)
			r.Delete("/{id}", s.handleDeleteSettings)
		})

		r.Route("/player", func(r chi.Router) {
			r.Use(s.requirePlayer)
			r.Get("/", s.handlePlayerSnapshot)
			r.Put("/source", s.handlePlayerSource)
			r.Post("/play", s.handlePlayerTogglePlay)
			r.Post("/mute", s.handlePlayerToggleMute)
			r.Post("/retry", s.handlePlayerRetry)
			r.Put("/volume", s.handlePlayerVolume)
		})
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
