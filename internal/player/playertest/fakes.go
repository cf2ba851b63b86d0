// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playertest provides in-memory sinks, engines and a manual clock
// for exercising the player controller deterministically.
package playertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/overlaycast/internal/player"
)

// Recorder is a shared, ordered call log.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Sink is a scriptable player.Sink. Play emits SinkPlay unless PlayErr is
// set; Pause emits SinkPause.
type Sink struct {
	Rec *Recorder

	mu        sync.Mutex
	NativeHLS bool
	PlayErr   error
	source    string
	volume    float64
	muted     bool
	listeners map[int]func(player.SinkEvent)
	nextID    int
}

// NewSink returns a sink that records into rec (a fresh recorder when nil).
func NewSink(rec *Recorder) *Sink {
	if rec == nil {
		rec = &Recorder{}
	}
	return &Sink{Rec: rec, listeners: map[int]func(player.SinkEvent){}}
}

func (s *Sink) SetSource(url string) {
	s.mu.Lock()
	s.source = url
	s.mu.Unlock()
	s.Rec.Record("sink.source(%s)", url)
}

func (s *Sink) CanPlayType(mime string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NativeHLS && mime == player.HLSMimeType
}

func (s *Sink) Play(context.Context) error {
	s.mu.Lock()
	err := s.PlayErr
	s.mu.Unlock()
	s.Rec.Record("sink.play")
	if err != nil {
		return err
	}
	s.Emit(player.SinkEvent{Type: player.SinkPlay})
	return nil
}

func (s *Sink) Pause() {
	s.Rec.Record("sink.pause")
	s.Emit(player.SinkEvent{Type: player.SinkPause})
}

func (s *Sink) SetVolume(level float64) {
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
	s.Rec.Record("sink.volume(%.2f)", level)
}

func (s *Sink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	s.Rec.Record("sink.muted(%t)", muted)
}

func (s *Sink) Listen(fn func(player.SinkEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	s.Rec.Record("sink.listen")
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
		s.Rec.Record("sink.unlisten")
	}
}

// Emit delivers ev to every registered listener.
func (s *Sink) Emit(ev player.SinkEvent) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(player.SinkEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Sink) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Sink) Volume() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, s.muted
}

func (s *Sink) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

func (s *Sink) SetPlayErr(err error) {
	s.mu.Lock()
	s.PlayErr = err
	s.mu.Unlock()
}

// SegmentSink adds segment intake to Sink, which makes it eligible for
// adaptive engines.
type SegmentSink struct {
	*Sink
	segMu    sync.Mutex
	segments []player.Segment
}

func NewSegmentSink(rec *Recorder) *SegmentSink {
	return &SegmentSink{Sink: NewSink(rec)}
}

func (s *SegmentSink) AppendSegment(_ context.Context, seg player.Segment) error {
	s.segMu.Lock()
	s.segments = append(s.segments, seg)
	s.segMu.Unlock()
	return nil
}

func (s *SegmentSink) ResetBuffer() {
	s.segMu.Lock()
	s.segments = nil
	s.segMu.Unlock()
	s.Rec.Record("sink.reset")
}

func (s *SegmentSink) Segments() []player.Segment {
	s.segMu.Lock()
	defer s.segMu.Unlock()
	return append([]player.Segment(nil), s.segments...)
}

// Engine is a passive player.Engine driven by the test through Emit.
type Engine struct {
	ID             int
	PanicOnDestroy bool
	rec            *Recorder

	mu        sync.Mutex
	emit      func(player.EngineEvent)
	source    string
	destroyed int
}

func (e *Engine) LoadSource(url string) {
	e.mu.Lock()
	e.source = url
	e.mu.Unlock()
	e.rec.Record("engine%d.load(%s)", e.ID, url)
}

func (e *Engine) AttachMedia(player.SegmentSink) {
	e.rec.Record("engine%d.attach", e.ID)
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	e.destroyed++
	p := e.PanicOnDestroy
	e.mu.Unlock()
	e.rec.Record("engine%d.destroy", e.ID)
	if p {
		panic("engine destroy failed")
	}
}

// Emit delivers ev through the controller-supplied callback.
func (e *Engine) Emit(ev player.EngineEvent) {
	e.mu.Lock()
	fn := e.emit
	e.mu.Unlock()
	fn(ev)
}

func (e *Engine) ManifestParsed() {
	e.Emit(player.EngineEvent{Type: player.EngineEventManifestParsed})
}

func (e *Engine) Fail(typ player.EngineErrorType, details string, fatal bool) {
	e.Emit(player.EngineEvent{Type: player.EngineEventError, Error: &player.EngineError{Type: typ, Details: details, Fatal: fatal}})
}

func (e *Engine) Destroyed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// EngineFactory hands out Engines and records every instance.
type EngineFactory struct {
	Rec *Recorder
	// Disabled makes Supported report false.
	Disabled bool
	NewErr   error
	// PanicOnDestroy is copied onto every new engine.
	PanicOnDestroy bool

	mu      sync.Mutex
	engines []*Engine
	configs []player.EngineConfig
}

func NewEngineFactory(rec *Recorder) *EngineFactory {
	if rec == nil {
		rec = &Recorder{}
	}
	return &EngineFactory{Rec: rec}
}

func (f *EngineFactory) Supported(sink player.Sink) bool {
	if f.Disabled {
		return false
	}
	_, ok := sink.(player.SegmentSink)
	return ok
}

func (f *EngineFactory) New(cfg player.EngineConfig, emit func(player.EngineEvent)) (player.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NewErr != nil {
		return nil, f.NewErr
	}
	e := &Engine{ID: len(f.engines) + 1, rec: f.Rec, emit: emit, PanicOnDestroy: f.PanicOnDestroy}
	f.engines = append(f.engines, e)
	f.configs = append(f.configs, cfg)
	f.Rec.Record("engine%d.new", e.ID)
	return e, nil
}

func (f *EngineFactory) Engines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Engine(nil), f.engines...)
}

// Last returns the most recently created engine, or nil.
func (f *EngineFactory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

func (f *EngineFactory) Configs() []player.EngineConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]player.EngineConfig(nil), f.configs...)
}

// Clock is a manual player.Clock. Timers fire only from Advance.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	clock   *Clock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) player.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every timer that became due, in
// deadline order, on the calling goroutine.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*timer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// Pending reports timers that are neither stopped nor fired.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
