// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "errors"

var (
	// ErrNotAttached is returned by control operations when no session owns
	// the sink.
	ErrNotAttached = errors.New("player: no media attached")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("player: closed")
	// ErrInvalidVolume rejects volume levels that cannot be clamped.
	ErrInvalidVolume = errors.New("player: invalid volume level")
	// ErrNoSource is returned by Retry when no source was ever loaded.
	ErrNoSource = errors.New("player: no source")
	// ErrPlayNotAllowed is returned by a Sink when a play request violates
	// its autoplay policy.
	ErrPlayNotAllowed = errors.New("player: play not allowed")
)
