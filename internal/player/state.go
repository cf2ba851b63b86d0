// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"encoding/json"
	"fmt"
)

// State is the externally visible playback state.
type State int

const (
	StateLoading State = iota
	StateReady
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ErrorKind is the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	ErrorNetwork ErrorKind = "network"
	ErrorMedia   ErrorKind = "media"
	ErrorUnknown ErrorKind = "unknown"
)

// PlaybackError describes a fatal playback failure.
type PlaybackError struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

// Error implements error so a PlaybackError can travel through error returns.
func (e PlaybackError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Message is the single user-facing line rendered next to the retry control.
func (e PlaybackError) Message() string {
	if e.Detail == detailLoadTimeout {
		return "Stream loading timeout - please check your connection or try again"
	}
	switch e.Kind {
	case ErrorNetwork:
		return "Network error: " + e.Detail
	case ErrorMedia:
		return "Media error: " + e.Detail
	default:
		return "Stream error: " + e.Detail
	}
}

// Retryable reports whether a manual retry makes sense. Every failure is
// retried by re-creating the session from scratch.
func (e PlaybackError) Retryable() bool { return true }

// VolumeState is owned by the control surface and mirrored onto the sink.
type VolumeState struct {
	Level float64 `json:"level"`
	Muted bool    `json:"muted"`
}

// Options is the player configuration supplied by the caller.
type Options struct {
	Autoplay bool `json:"autoplay"`
	Muted    bool `json:"muted"`
	// ClassName is carried through to the snapshot for the UI and has no
	// behavioral effect.
	ClassName string `json:"className,omitempty"`
}

// Snapshot is a consistent read of the controller state.
type Snapshot struct {
	Source     string         `json:"source"`
	Kind       MediaKind      `json:"kind"`
	Generation uint64         `json:"generation"`
	Attached   bool           `json:"attached"`
	State      State          `json:"state"`
	Error      *PlaybackError `json:"error,omitempty"`
	Message    string         `json:"message,omitempty"`
	Volume     VolumeState    `json:"volume"`
	Options    Options        `json:"options"`
}
