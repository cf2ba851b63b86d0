// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"fmt"
	"time"
)

// Sink is the media output surface. It plays whatever source it is given
// and reports lifecycle events to registered listeners.
//
// Listeners are invoked from arbitrary goroutines and must not block.
type Sink interface {
	// SetSource assigns the source attribute. An empty url releases the
	// current resource.
	SetSource(url string)
	// CanPlayType reports native support for the given MIME type.
	CanPlayType(mime string) bool
	// Play requests playback. ErrPlayNotAllowed signals a policy rejection.
	Play(ctx context.Context) error
	Pause()
	SetVolume(level float64)
	SetMuted(muted bool)
	// Listen registers fn for sink events and returns a function that
	// removes the registration.
	Listen(fn func(SinkEvent)) (unlisten func())
}

// SegmentSink is a Sink that accepts pushed media segments. Its presence is
// the capability an adaptive engine needs.
type SegmentSink interface {
	Sink
	AppendSegment(ctx context.Context, seg Segment) error
	ResetBuffer()
}

// Segment is one chunk of media fed by an engine.
type Segment struct {
	Sequence uint64
	URI      string
	Duration time.Duration
	Data     []byte
}

// SinkEventType enumerates media element events.
type SinkEventType int

const (
	SinkLoadedMetadata SinkEventType = iota + 1
	SinkPlay
	SinkPause
	SinkError
)

func (t SinkEventType) String() string {
	switch t {
	case SinkLoadedMetadata:
		return "loadedmetadata"
	case SinkPlay:
		return "play"
	case SinkPause:
		return "pause"
	case SinkError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaErrorCode mirrors the platform media error codes.
type MediaErrorCode int

const (
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

// MediaError is the error attached to a SinkError event.
type MediaError struct {
	Code    MediaErrorCode
	Message string
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media error %d: %s", e.Code, e.Message)
}

// SinkEvent is delivered to sink listeners.
type SinkEvent struct {
	Type SinkEventType
	Err  *MediaError
}

// EngineErrorType is the engine's failure category.
type EngineErrorType string

const (
	EngineNetworkError EngineErrorType = "networkError"
	EngineMediaError   EngineErrorType = "mediaError"
	EngineMuxError     EngineErrorType = "muxError"
	EngineOtherError   EngineErrorType = "otherError"
)

// EngineError is reported by an engine. Non-fatal errors are recovered by
// the engine itself.
type EngineError struct {
	Type    EngineErrorType
	Details string
	Fatal   bool
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %v", e.Type, e.Details, e.Err)
	}
	return fmt.Sprintf("%s/%s", e.Type, e.Details)
}

func (e *EngineError) Unwrap() error { return e.Err }

// EngineEventType enumerates engine events the controller consumes.
type EngineEventType int

const (
	EngineEventManifestParsed EngineEventType = iota + 1
	EngineEventError
)

// EngineEvent is emitted by an engine instance.
type EngineEvent struct {
	Type  EngineEventType
	Error *EngineError
}

// EngineConfig configures one engine instance.
type EngineConfig struct {
	// EnableWorker moves segment fetching off the main engine goroutine.
	EnableWorker bool
	// Debug enables verbose engine logging.
	Debug bool
}

// Engine is one adaptive decoding engine instance, bound to one source.
type Engine interface {
	LoadSource(url string)
	AttachMedia(sink SegmentSink)
	// Destroy releases every resource held by the engine. It must be safe
	// to call more than once.
	Destroy()
}

// EngineFactory creates engines and reports whether adaptive decoding is
// available for a sink.
type EngineFactory interface {
	// Supported is a pure capability check; it must not perform I/O.
	Supported(sink Sink) bool
	New(cfg EngineConfig, emit func(EngineEvent)) (Engine, error)
}

// Clock abstracts time for the loading timeout.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

type gestureKey struct{}

// WithUserGesture marks ctx as carrying an explicit user action. Sinks that
// enforce a gesture policy use it to tell user play from autoplay.
func WithUserGesture(ctx context.Context) context.Context {
	return context.WithValue(ctx, gestureKey{}, true)
}

// IsUserGesture reports whether ctx was marked by WithUserGesture.
func IsUserGesture(ctx context.Context) bool {
	v, _ := ctx.Value(gestureKey{}).(bool)
	return v
}
