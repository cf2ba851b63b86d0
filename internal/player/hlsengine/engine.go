// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hlsengine is the adaptive segmented engine: it downloads HLS
// playlists and segments over HTTP and pushes them into a segment sink.
package hlsengine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/player"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetries    = 3
	defaultBackoff    = 250 * time.Millisecond
	defaultMaxBackoff = 4 * time.Second
	defaultRateLimit  = 20
	defaultRateBurst  = 10
	workerQueue       = 3
	maxBodyBytes      = 64 << 20
)

// Error details reported through player.EngineError.Details.
const (
	DetailsManifestLoad    = "manifestLoadError"
	DetailsManifestParsing = "manifestParsingError"
	DetailsLevelLoad       = "levelLoadError"
	DetailsLevelParsing    = "levelParsingError"
	DetailsFragLoad        = "fragLoadError"
	DetailsBufferAppend    = "bufferAppendError"
)

// Config tunes every engine created by a Factory.
type Config struct {
	Client *http.Client
	// MaxRetries is the number of extra attempts per resource.
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// RateLimit caps requests per second across one engine.
	RateLimit rate.Limit
	RateBurst int
	// LiveReload overrides the playlist reload interval for live streams.
	// Zero uses the target duration.
	LiveReload time.Duration
	Logger     *zerolog.Logger
}

func normalize(cfg Config) Config {
	if cfg.Client == nil {
		cfg.Client = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	return cfg
}

// Factory implements player.EngineFactory.
type Factory struct {
	cfg Config
}

// NewFactory returns a factory; zero fields in cfg get defaults.
func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: normalize(cfg)}
}

// Supported reports whether sink can take pushed segments.
func (f *Factory) Supported(sink player.Sink) bool {
	_, ok := sink.(player.SegmentSink)
	return ok
}

// New creates an idle engine. It starts working once it has both a source
// and an attached sink.
func (f *Factory) New(ecfg player.EngineConfig, emit func(player.EngineEvent)) (player.Engine, error) {
	var logger zerolog.Logger
	if f.cfg.Logger != nil {
		logger = f.cfg.Logger.With().Str(xglog.FieldComponent, "hlsengine").Logger()
	} else {
		logger = xglog.WithComponent("hlsengine")
	}
	if ecfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     f.cfg,
		ecfg:    ecfg,
		emit:    emit,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(f.cfg.RateLimit, f.cfg.RateBurst),
	}
	return e, nil
}

// Engine implements player.Engine for one source.
type Engine struct {
	cfg     Config
	ecfg    player.EngineConfig
	emit    func(player.EngineEvent)
	logger  zerolog.Logger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	source    string
	sink      player.SegmentSink
	started   bool
	destroyed bool
	once      sync.Once
}

// LoadSource binds the engine to a playlist URL.
func (e *Engine) LoadSource(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.started {
		return
	}
	e.source = url
	e.maybeStartLocked()
}

// AttachMedia binds the engine to the sink that receives segments. The
// sink buffer is reset so it starts out empty and bound to this engine.
func (e *Engine) AttachMedia(sink player.SegmentSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.started {
		return
	}
	sink.ResetBuffer()
	e.sink = sink
	e.maybeStartLocked()
}

func (e *Engine) maybeStartLocked() {
	if e.source == "" || e.sink == nil {
		return
	}
	e.started = true
	source, sink := e.source, e.sink
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(e.ctx, source, sink)
	}()
}

// Destroy stops every goroutine and releases the sink buffer. It blocks
// until in-flight work has returned.
func (e *Engine) Destroy() {
	e.once.Do(func() {
		e.mu.Lock()
		e.destroyed = true
		sink := e.sink
		e.mu.Unlock()

		e.cancel()
		e.wg.Wait()
		if sink != nil {
			sink.ResetBuffer()
		}
		e.logger.Debug().Str(xglog.FieldEvent, "engine.destroyed").Msg("engine destroyed")
	})
}

func (e *Engine) emitEvent(ctx context.Context, ev player.EngineEvent) {
	if ctx.Err() != nil {
		return
	}
	e.emit(ev)
}

func (e *Engine) reportError(ctx context.Context, typ player.EngineErrorType, details string, fatal bool, err error) {
	if ctx.Err() != nil {
		return
	}
	ev := e.logger.Debug()
	if fatal {
		ev = e.logger.Warn()
	}
	ev.Err(err).Str("type", string(typ)).Str(xglog.FieldDetail, details).Bool("fatal", fatal).Msg("engine error")
	e.emit(player.EngineEvent{
		Type:  player.EngineEventError,
		Error: &player.EngineError{Type: typ, Details: details, Fatal: fatal, Err: err},
	})
}
