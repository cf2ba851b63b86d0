// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/metrics"
	"github.com/ManuGH/overlaycast/internal/telemetry"
)

// DefaultLoadTimeout bounds the time a session may stay in Loading.
const DefaultLoadTimeout = 10 * time.Second

const tracerName = "github.com/ManuGH/overlaycast/internal/player"

// Config wires a Controller to its collaborators.
type Config struct {
	Sink Sink
	// Engines is optional; without it adaptive playback is never selected.
	Engines      EngineFactory
	EngineConfig EngineConfig
	Clock        Clock
	LoadTimeout  time.Duration
	Options      Options
	Logger       *zerolog.Logger
	Tracer       trace.Tracer
}

// Controller is the playback session lifecycle manager and control surface.
// Methods are safe for concurrent use. They must not be called from inside
// Sink or Engine callbacks.
type Controller struct {
	sink    Sink
	engines EngineFactory
	engCfg  EngineConfig
	clock   Clock
	timeout time.Duration
	logger  zerolog.Logger
	tracer  trace.Tracer

	inbox *inbox
	done  chan struct{}

	// owned by the loop goroutine
	opts       Options
	source     string
	generation uint64
	sess       *session
	state      State
	perr       *PlaybackError
	volume     VolumeState
	lastLevel  float64
	closed     bool
}

// New creates a controller and starts its event loop. The sink receives the
// initial volume state immediately.
func New(cfg Config) (*Controller, error) {
	if cfg.Sink == nil {
		return nil, errors.New("player: sink is required")
	}
	c := &Controller{
		sink:      cfg.Sink,
		engines:   cfg.Engines,
		engCfg:    cfg.EngineConfig,
		clock:     cfg.Clock,
		timeout:   cfg.LoadTimeout,
		tracer:    cfg.Tracer,
		inbox:     newInbox(),
		done:      make(chan struct{}),
		opts:      cfg.Options,
		state:     StateLoading,
		volume:    VolumeState{Level: 1, Muted: cfg.Options.Muted},
		lastLevel: 1,
	}
	if c.clock == nil {
		c.clock = RealClock()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultLoadTimeout
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger.With().Str(xglog.FieldComponent, "player").Logger()
	} else {
		c.logger = xglog.WithComponent("player")
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	c.sink.SetVolume(c.volume.Level)
	c.sink.SetMuted(c.volume.Muted)

	go c.run()
	return c, nil
}

func (c *Controller) run() {
	defer close(c.done)
	for range c.inbox.signal {
		tasks, closed := c.inbox.drain()
		for _, task := range tasks {
			task()
		}
		if closed {
			return
		}
	}
}

// do runs fn on the loop and waits for its result.
func (c *Controller) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	ok := c.inbox.put(func() {
		if c.closed {
			reply <- ErrClosed
			return
		}
		reply <- fn()
	})
	if !ok {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func query[T any](ctx context.Context, c *Controller, fn func() T) (T, error) {
	var zero T
	out := make(chan T, 1)
	if err := c.do(ctx, func() error {
		out <- fn()
		return nil
	}); err != nil {
		return zero, err
	}
	return <-out, nil
}

func (c *Controller) post(ev event) {
	c.inbox.put(func() { c.apply(ev) })
}

// Load binds the controller to url. Any previous session is torn down first.
// An empty url leaves the controller idle with no session.
func (c *Controller) Load(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	return c.do(ctx, func() error {
		c.source = url
		if url == "" {
			c.teardown("source cleared")
			c.state = StateLoading
			c.perr = nil
			return nil
		}
		c.startSession(ctx, triggerLoad)
		return nil
	})
}

// Retry discards the current session and starts a fresh one for the same
// source. It is accepted in every state.
func (c *Controller) Retry(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.source == "" {
			return ErrNoSource
		}
		c.logger.Info().Str(xglog.FieldEvent, "player.retry").Uint64(xglog.FieldGeneration, c.generation).Msg("manual retry")
		c.startSession(ctx, triggerRetry)
		return nil
	})
}

// TogglePlay pauses when playing and requests playback otherwise. A policy
// rejection is returned as ErrPlayNotAllowed and leaves the state untouched.
// Any other play failure moves the session to Error; when the session is
// already in Error the failure is returned instead.
func (c *Controller) TogglePlay(ctx context.Context) error {
	return c.do(ctx, func() error {
		s := c.sess
		if s == nil {
			return ErrNotAttached
		}
		if c.state == StatePlaying {
			c.sink.Pause()
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.sink.Play(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrPlayNotAllowed):
			c.logger.Info().Err(err).Str(xglog.FieldEvent, "player.play.rejected").Msg("play request rejected")
			return err
		default:
			s.resolve()
			if !c.fail(EvFatal, PlaybackError{Kind: ErrorUnknown, Detail: "play failed: " + err.Error()}, originPlay) {
				return fmt.Errorf("play failed: %w", err)
			}
			return nil
		}
	})
}

// ToggleMute flips the muted flag. Unmuting at level zero restores the last
// nonzero level.
func (c *Controller) ToggleMute(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.sess == nil {
			return ErrNotAttached
		}
		if c.volume.Muted {
			c.volume.Muted = false
			if c.volume.Level == 0 {
				c.volume.Level = c.lastLevel
				c.sink.SetVolume(c.volume.Level)
			}
		} else {
			c.volume.Muted = true
		}
		c.sink.SetMuted(c.volume.Muted)
		return nil
	})
}

// SetVolume clamps level into [0, 1] and applies it. Zero mutes; a nonzero
// level unmutes.
func (c *Controller) SetVolume(ctx context.Context, level float64) error {
	if math.IsNaN(level) {
		return ErrInvalidVolume
	}
	level = math.Max(0, math.Min(1, level))
	return c.do(ctx, func() error {
		if c.sess == nil {
			return ErrNotAttached
		}
		c.volume.Level = level
		c.sink.SetVolume(level)
		if level == 0 {
			if !c.volume.Muted {
				c.volume.Muted = true
				c.sink.SetMuted(true)
			}
			return nil
		}
		c.lastLevel = level
		if c.volume.Muted {
			c.volume.Muted = false
			c.sink.SetMuted(false)
		}
		return nil
	})
}

// SetOptions replaces the caller options. Changing Autoplay re-creates the
// session for the current source. Muted takes effect on the next session.
func (c *Controller) SetOptions(ctx context.Context, opts Options) error {
	return c.do(ctx, func() error {
		prev := c.opts
		c.opts = opts
		if prev.Autoplay != opts.Autoplay && c.source != "" {
			c.startSession(ctx, triggerOptions)
		}
		return nil
	})
}

// Snapshot returns a consistent view of the controller.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	return query(ctx, c, c.snapshot)
}

// State returns the current playback state.
func (c *Controller) State(ctx context.Context) (State, error) {
	return query(ctx, c, func() State { return c.state })
}

// Error returns the current playback error, if any.
func (c *Controller) Error(ctx context.Context) (*PlaybackError, error) {
	return query(ctx, c, func() *PlaybackError {
		if c.perr == nil {
			return nil
		}
		e := *c.perr
		return &e
	})
}

// Volume returns the current volume state.
func (c *Controller) Volume(ctx context.Context) (VolumeState, error) {
	return query(ctx, c, func() VolumeState { return c.volume })
}

// Close tears down the active session and stops the loop.
func (c *Controller) Close(ctx context.Context) error {
	err := c.do(ctx, func() error {
		c.teardown("closed")
		c.closed = true
		c.inbox.close()
		return nil
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the event loop has exited.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		Source:     c.source,
		Generation: c.generation,
		State:      c.state,
		Volume:     c.volume,
		Options:    c.opts,
	}
	if c.sess != nil {
		snap.Attached = true
		snap.Kind = c.sess.kind
	}
	if c.perr != nil {
		e := *c.perr
		snap.Error = &e
		snap.Message = e.Message()
	}
	return snap
}

// startSession tears down the previous session before any resource of the
// new one is created.
func (c *Controller) startSession(ctx context.Context, trigger string) {
	c.teardown("superseded")

	c.generation++
	g := c.generation
	kind := SelectKind(c.sink, c.engines)

	c.perr = nil
	c.transition(EvLoad)
	c.seedVolume(trigger)

	_, span := c.tracer.Start(context.Background(), "player.session",
		trace.WithLinks(trace.LinkFromContext(ctx)),
		trace.WithAttributes(telemetry.SessionAttributes(kind.String(), g, trigger)...),
	)
	s := &session{gen: g, kind: kind, started: c.clock.Now(), span: span}
	c.sess = s
	metrics.IncPlaybackSession(kind.String(), trigger)

	s.timer = c.clock.AfterFunc(c.timeout, func() { c.post(timeoutEvent{gen(g)}) })
	s.unlisten = c.sink.Listen(func(ev SinkEvent) { c.onSinkEvent(g, kind, ev) })

	c.logger.Info().
		Str(xglog.FieldEvent, "player.session.start").
		Uint64(xglog.FieldGeneration, g).
		Str(xglog.FieldMediaKind, kind.String()).
		Str(xglog.FieldSourceURL, c.source).
		Str("trigger", trigger).
		Msg("playback session started")

	if kind != KindAdaptive {
		c.sink.SetSource(c.source)
		return
	}
	if err := c.startEngine(s); err != nil {
		s.resolve()
		c.fail(EvFatal, PlaybackError{Kind: ErrorUnknown, Detail: "engine init failed: " + err.Error()}, originInit)
	}
}

// seedVolume applies the muted option to a new session. Retry and option
// changes start over from full volume like a freshly mounted player.
func (c *Controller) seedVolume(trigger string) {
	if trigger != triggerLoad {
		c.volume.Level = 1
		c.lastLevel = 1
		c.sink.SetVolume(1)
	}
	c.volume.Muted = c.opts.Muted
	c.sink.SetMuted(c.volume.Muted)
}

func (c *Controller) startEngine(s *session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	seg, ok := c.sink.(SegmentSink)
	if !ok {
		return errors.New("sink does not accept segments")
	}
	g := s.gen
	eng, err := c.engines.New(c.engCfg, func(ev EngineEvent) { c.onEngineEvent(g, ev) })
	if err != nil {
		return err
	}
	s.engine = eng
	metrics.PlaybackEngineStarted()
	eng.LoadSource(c.source)
	eng.AttachMedia(seg)
	return nil
}

// teardown releases the current session exactly once.
func (c *Controller) teardown(reason string) {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	s.resolve()
	if s.unlisten != nil {
		s.unlisten()
	}
	if s.engine != nil {
		c.destroyEngine(s.engine)
		metrics.PlaybackEngineStopped()
	}
	c.sink.SetSource("")
	s.end(c.state, c.perr, reason)

	c.logger.Debug().
		Str(xglog.FieldEvent, "player.session.teardown").
		Uint64(xglog.FieldGeneration, s.gen).
		Str("reason", reason).
		Msg("playback session released")
}

func (c *Controller) destroyEngine(e Engine) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn().Interface("panic", r).Msg("engine destroy panicked")
		}
	}()
	e.Destroy()
}

// onEngineEvent runs on engine goroutines and only enqueues.
func (c *Controller) onEngineEvent(g uint64, ev EngineEvent) {
	switch ev.Type {
	case EngineEventManifestParsed:
		c.post(readyEvent{gen(g)})
	case EngineEventError:
		if ev.Error == nil {
			return
		}
		perr, fatal := ClassifyEngineError(*ev.Error)
		if !fatal {
			metrics.IncPlaybackNonFatal(string(ev.Error.Type))
			c.logger.Debug().
				Uint64(xglog.FieldGeneration, g).
				Str("type", string(ev.Error.Type)).
				Str(xglog.FieldDetail, ev.Error.Details).
				Msg("recoverable engine error")
			return
		}
		c.post(fatalEvent{gen: gen(g), err: perr, origin: originEngine})
	}
}

// onSinkEvent runs on sink goroutines and only enqueues.
func (c *Controller) onSinkEvent(g uint64, kind MediaKind, ev SinkEvent) {
	switch ev.Type {
	case SinkLoadedMetadata:
		// adaptive sessions are ready on manifest parse
		if kind == KindAdaptive {
			return
		}
		c.post(readyEvent{gen(g)})
	case SinkPlay:
		c.post(playEvent{gen(g)})
	case SinkPause:
		c.post(pauseEvent{gen(g)})
	case SinkError:
		c.post(fatalEvent{gen: gen(g), err: ClassifySinkError(kind, ev.Err), origin: originSink})
	}
}

func (c *Controller) apply(ev event) {
	s := c.sess
	if c.closed || s == nil || ev.generation() != s.gen {
		metrics.IncPlaybackStaleEvent(ev.kind().String())
		c.logger.Debug().
			Str(xglog.FieldEvent, "player.event.stale").
			Str("input", ev.kind().String()).
			Uint64(xglog.FieldGeneration, ev.generation()).
			Msg("dropped event from superseded session")
		return
	}

	switch e := ev.(type) {
	case readyEvent:
		if !s.resolve() {
			return
		}
		if !c.transition(EvReady) {
			return
		}
		metrics.ObservePlaybackReady(s.kind.String(), c.clock.Now().Sub(s.started))
		s.span.AddEvent("ready")
		switch {
		case s.playing:
			// the sink started while loading
			c.transition(EvPlay)
		case c.opts.Autoplay:
			c.autoplay()
		}
	case fatalEvent:
		s.resolve()
		c.fail(EvFatal, e.err, e.origin)
	case timeoutEvent:
		if !s.resolve() {
			return
		}
		c.fail(EvTimeout, TimeoutError(), originTimeout)
	case playEvent:
		s.playing = true
		c.transition(EvPlay)
	case pauseEvent:
		s.playing = false
		c.transition(EvPause)
	}
}

// autoplay failures are expected under gesture policies and never surface.
func (c *Controller) autoplay() {
	if err := c.sink.Play(context.Background()); err != nil {
		c.logger.Debug().Err(err).Str(xglog.FieldEvent, "player.autoplay.rejected").Msg("autoplay did not start")
	}
}

// fail records perr when ev moves the session to Error. It reports false
// when the transition was not taken.
func (c *Controller) fail(ev EventKind, perr PlaybackError, origin string) bool {
	if !c.transition(ev) {
		return false
	}
	c.perr = &perr
	metrics.IncPlaybackError(string(perr.Kind), origin)
	if c.sess != nil {
		c.sess.span.RecordError(perr, trace.WithAttributes(telemetry.PlaybackErrorAttributes(string(perr.Kind), perr.Detail)...))
	}
	c.logger.Warn().
		Str(xglog.FieldEvent, "player.error").
		Uint64(xglog.FieldGeneration, c.generation).
		Str(xglog.FieldErrorKind, string(perr.Kind)).
		Str(xglog.FieldDetail, perr.Detail).
		Str("origin", origin).
		Msg("playback failed")
	return true
}

func (c *Controller) transition(ev EventKind) bool {
	from := c.state
	to, ok := TransitionFor(from, ev)
	if !ok {
		c.logger.Debug().
			Str(xglog.FieldOldState, from.String()).
			Str("input", ev.String()).
			Msg("transition ignored")
		return false
	}
	c.state = to
	metrics.IncPlaybackTransition(from.String(), to.String())
	c.logger.Debug().
		Str(xglog.FieldOldState, from.String()).
		Str(xglog.FieldNewState, to.String()).
		Str("input", ev.String()).
		Msg("state transition")
	return true
}
