// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/metrics"
	"github.com/ManuGH/overlaycast/internal/store"
)

func (s *Server) handleListOverlays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.overlays.List())
}

func (s *Server) handleCreateOverlay(w http.ResponseWriter, r *http.Request) {
	var in store.OverlayInput
	if !decodeBody(w, r, &in) {
		return
	}
	o, err := s.overlays.Create(in)
	s.recordOverlayOp("create", err)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "overlay.created").
		Str(log.FieldOverlayID, o.ID).
		Msg("overlay created")
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleGetOverlay(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	o, err := s.overlays.Get(id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleUpdateOverlay(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	var in store.OverlayInput
	if !decodeBody(w, r, &in) {
		return
	}
	o, err := s.overlays.Update(id, in)
	s.recordOverlayOp("update", err)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleDeleteOverlay(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	err := s.overlays.Delete(id)
	s.recordOverlayOp("delete", err)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "overlay.deleted").
		Str(log.FieldOverlayID, id).
		Msg("overlay deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordOverlayOp(op string, err error) {
	recordStoreOp("overlay", op, err)
	metrics.SetOverlaysTotal(s.overlays.Len())
}

func bindID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
