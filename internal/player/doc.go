// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player implements the stream playback controller.
//
// A Controller owns at most one playback session per stream source. It picks
// a playback strategy by capability probing (adaptive engine, native HLS on
// the sink, or progressive download), drives the session through a small
// state machine, converts engine and sink failures into PlaybackError values
// and exposes a uniform play/pause/mute/volume surface.
//
// All state lives on a single event-loop goroutine. Engine, sink and timer
// callbacks only enqueue events tagged with the session generation they
// belong to; events from a superseded session are dropped.
package player
