// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import "net/http"

// PingResponse is the body of GET /api/ping.
type PingResponse struct {
	Message string `json:"message"`
}

// PlaylistResponse is the body of GET /api/playlist.
type PlaylistResponse struct {
	PlaylistURL string `json:"playlistUrl"`
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{Message: s.cfg.Get().Stream.PingMessage})
}

func (s *Server) handlePlaylist(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PlaylistResponse{PlaylistURL: s.cfg.Get().Stream.PlaylistURL})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	s.health.ServeHealth(w, r)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ready": true, "status": "healthy"})
		return
	}
	s.health.ServeReady(w, r)
}
