// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"

	"github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/player"
)

// SourceRequest is the body of PUT /api/player/source.
type SourceRequest struct {
	URL string `json:"url"`
}

// VolumeRequest is the body of PUT /api/player/volume.
type VolumeRequest struct {
	Level float64 `json:"level"`
}

func (s *Server) requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.player == nil {
			writeError(w, r, http.StatusServiceUnavailable, "Preview player is not running")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePlayerSnapshot(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r)
}

func (s *Server) handlePlayerSource(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().Str(log.FieldEvent, "player.source_change").Str(log.FieldSourceURL, req.URL).Msg("loading new source")
	s.control(w, r, func(ctx context.Context) error { return s.player.Load(ctx, req.URL) })
}

// handlePlayerTogglePlay runs as a user gesture: an HTTP call is an explicit
// operator action.
func (s *Server) handlePlayerTogglePlay(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, func(ctx context.Context) error {
		return s.player.TogglePlay(player.WithUserGesture(ctx))
	})
}

func (s *Server) handlePlayerToggleMute(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.player.ToggleMute)
}

func (s *Server) handlePlayerRetry(w http.ResponseWriter, r *http.Request) {
	s.control(w, r, s.player.Retry)
}

func (s *Server) handlePlayerVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.control(w, r, func(ctx context.Context) error { return s.player.SetVolume(ctx, req.Level) })
}

func (s *Server) control(w http.ResponseWriter, r *http.Request, op func(context.Context) error) {
	if err := op(r.Context()); err != nil {
		writePlayerError(w, r, err)
		return
	}
	s.respondSnapshot(w, r)
}

func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.player.Snapshot(r.Context())
	if err != nil {
		writePlayerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
