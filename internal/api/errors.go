// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/metrics"
	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/store"
	"github.com/ManuGH/overlaycast/internal/validate"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Headers are already sent when encoding fails, so the failure is only logged.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().Err(err).Int("status", code).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, ErrorResponse{
		Error:     msg,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeStoreError maps store and validation failures onto 404 and 400.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validate.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeError(w, r, http.StatusBadRequest, verr.Error())
	default:
		internalError(w, r, err)
	}
}

// recordStoreOp counts a store mutation by its outcome.
func recordStoreOp(entity, op string, err error) {
	outcome := "success"
	var verr validate.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		outcome = "not_found"
	case errors.As(err, &verr):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	metrics.IncStoreOperation(entity, op, outcome)
}

// writePlayerError maps control surface failures.
func writePlayerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, player.ErrInvalidVolume):
		writeError(w, r, http.StatusBadRequest, "Invalid volume level")
	case errors.Is(err, player.ErrNotAttached):
		writeError(w, r, http.StatusConflict, "No media attached")
	case errors.Is(err, player.ErrNoSource):
		writeError(w, r, http.StatusConflict, "No stream source loaded")
	case errors.Is(err, player.ErrPlayNotAllowed):
		writeError(w, r, http.StatusConflict, "Playback requires a user gesture")
	case errors.Is(err, player.ErrClosed):
		writeError(w, r, http.StatusServiceUnavailable, "Player is shut down")
	default:
		internalError(w, r, err)
	}
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).Error().
		Err(err).
		Str(log.FieldPath, r.URL.Path).
		Msg("request failed")
	writeError(w, r, http.StatusInternalServerError, "Internal server error")
}
