// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/store"
)

func (s *Server) handleLatestSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Latest()
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCreateSettings(w http.ResponseWriter, r *http.Request) {
	var in store.SettingsInput
	if !decodeBody(w, r, &in) {
		return
	}
	st, err := s.settings.Create(in)
	recordStoreOp("settings", "create", err)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "settings.created").
		Str(log.FieldSettingsID, st.ID).
		Bool("autoplay", st.Autoplay).
		Bool("muted", st.Muted).
		Msg("settings created")
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	var in store.SettingsInput
	if !decodeBody(w, r, &in) {
		return
	}
	st, err := s.settings.Update(id, in)
	recordStoreOp("settings", "update", err)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := bindID(w, r)
	if !ok {
		return
	}
	err := s.settings.Delete(id)
	recordStoreOp("settings", "delete", err)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
