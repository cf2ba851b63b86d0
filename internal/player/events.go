// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

// EventKind identifies a state machine input.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvLoad
	EvReady
	EvFatal
	EvTimeout
	EvPlay
	EvPause
)

func (k EventKind) String() string {
	switch k {
	case EvLoad:
		return "load"
	case EvReady:
		return "ready"
	case EvFatal:
		return "fatal"
	case EvTimeout:
		return "timeout"
	case EvPlay:
		return "play"
	case EvPause:
		return "pause"
	default:
		return "unknown"
	}
}

// event is the closed set of inputs delivered to the loop by callbacks.
// Every event carries the generation of the session that produced it.
type event interface {
	kind() EventKind
	generation() uint64
}

type gen uint64

func (g gen) generation() uint64 { return uint64(g) }

type readyEvent struct{ gen }

func (readyEvent) kind() EventKind { return EvReady }

type fatalEvent struct {
	gen
	err    PlaybackError
	origin string
}

func (fatalEvent) kind() EventKind { return EvFatal }

type timeoutEvent struct{ gen }

func (timeoutEvent) kind() EventKind { return EvTimeout }

type playEvent struct{ gen }

func (playEvent) kind() EventKind { return EvPlay }

type pauseEvent struct{ gen }

func (pauseEvent) kind() EventKind { return EvPause }
