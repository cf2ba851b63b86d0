// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/overlaycast/internal/telemetry"
)

const (
	triggerLoad    = "load"
	triggerRetry   = "retry"
	triggerOptions = "options"

	originEngine  = "engine"
	originSink    = "sink"
	originTimeout = "timeout"
	originPlay    = "play"
	originInit    = "init"
)

// session is the resources bound to one source under one strategy.
// Only the loop goroutine touches it.
type session struct {
	gen      uint64
	kind     MediaKind
	started  time.Time
	timer    Timer
	unlisten func()
	engine   Engine
	span     trace.Span
	resolved bool
	// playing mirrors the last play/pause the sink reported, including
	// while still Loading.
	playing  bool
}

// resolve marks the first of ready/error/timeout. It reports false for any
// later outcome. The loading timer is stopped on resolution.
func (s *session) resolve() bool {
	if s.resolved {
		return false
	}
	s.resolved = true
	if s.timer != nil {
		s.timer.Stop()
	}
	return true
}

func (s *session) end(final State, perr *PlaybackError, reason string) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(telemetry.SessionEndAttributes(final.String(), reason)...)
	if perr != nil {
		s.span.SetStatus(codes.Error, perr.Detail)
	}
	s.span.End()
}
