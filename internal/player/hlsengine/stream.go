// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hlsengine

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/ManuGH/overlaycast/internal/hls"
	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/metrics"
	"github.com/ManuGH/overlaycast/internal/player"
)

const minLiveReload = 500 * time.Millisecond

func (e *Engine) run(ctx context.Context, source string, sink player.SegmentSink) {
	levelURL, media, ok := e.loadManifest(ctx, source)
	if !ok {
		return
	}
	e.emitEvent(ctx, player.EngineEvent{Type: player.EngineEventManifestParsed})

	if media == nil {
		if media, ok = e.loadLevel(ctx, levelURL); !ok {
			return
		}
	}

	if !e.ecfg.EnableWorker {
		e.produce(ctx, levelURL, media, func(seg player.Segment) bool {
			return e.appendSegment(ctx, sink, seg)
		})
		return
	}

	// worker mode: fetching runs ahead of appends on its own goroutine
	wctx, wcancel := context.WithCancel(ctx)
	defer wcancel()
	fetched := make(chan player.Segment, workerQueue)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(fetched)
		e.produce(wctx, levelURL, media, func(seg player.Segment) bool {
			select {
			case fetched <- seg:
				return true
			case <-wctx.Done():
				return false
			}
		})
	}()

	for seg := range fetched {
		if !e.appendSegment(ctx, sink, seg) {
			wcancel()
			for range fetched {
			}
			return
		}
	}
}

// loadManifest returns the media playlist URL and, when the source already
// is a media playlist, the parsed playlist itself.
func (e *Engine) loadManifest(ctx context.Context, source string) (string, *hls.Playlist, bool) {
	body, err := e.fetch(ctx, source, "manifest", DetailsManifestLoad)
	if err != nil {
		e.reportError(ctx, player.EngineNetworkError, DetailsManifestLoad, true, err)
		return "", nil, false
	}
	base, err := url.Parse(source)
	if err != nil {
		e.reportError(ctx, player.EngineNetworkError, DetailsManifestParsing, true, err)
		return "", nil, false
	}
	pl, err := hls.Parse(bytes.NewReader(body), base)
	if err != nil {
		e.reportError(ctx, player.EngineNetworkError, DetailsManifestParsing, true, err)
		return "", nil, false
	}
	if !pl.Master {
		e.logger.Debug().Int("segments", len(pl.Segments)).Msg("media playlist loaded")
		return source, pl, true
	}
	variant, ok := pl.BestVariant()
	if !ok {
		e.reportError(ctx, player.EngineNetworkError, DetailsManifestParsing, true, errors.New("master playlist has no variants"))
		return "", nil, false
	}
	e.logger.Debug().
		Int("variants", len(pl.Variants)).
		Int("bandwidth", variant.Bandwidth).
		Str(xglog.FieldSourceURL, variant.URI).
		Msg("variant selected")
	return variant.URI, nil, true
}

func (e *Engine) loadLevel(ctx context.Context, levelURL string) (*hls.Playlist, bool) {
	body, err := e.fetch(ctx, levelURL, "level", DetailsLevelLoad)
	if err != nil {
		e.reportError(ctx, player.EngineNetworkError, DetailsLevelLoad, true, err)
		return nil, false
	}
	base, err := url.Parse(levelURL)
	if err != nil {
		e.reportError(ctx, player.EngineNetworkError, DetailsLevelParsing, true, err)
		return nil, false
	}
	pl, err := hls.Parse(bytes.NewReader(body), base)
	if err == nil && pl.Master {
		err = errors.New("nested master playlist")
	}
	if err != nil {
		e.reportError(ctx, player.EngineNetworkError, DetailsLevelParsing, true, err)
		return nil, false
	}
	return pl, true
}

// produce fetches segments in sequence order and hands them to deliver.
// Live playlists are reloaded until they end or ctx is cancelled.
func (e *Engine) produce(ctx context.Context, levelURL string, pl *hls.Playlist, deliver func(player.Segment) bool) {
	var next uint64
	for {
		for _, s := range pl.Segments {
			if s.Sequence < next {
				continue
			}
			data, err := e.fetch(ctx, s.URI, "fragment", DetailsFragLoad)
			if err != nil {
				e.reportError(ctx, player.EngineNetworkError, DetailsFragLoad, true, err)
				return
			}
			if !deliver(player.Segment{Sequence: s.Sequence, URI: s.URI, Duration: s.Duration, Data: data}) {
				return
			}
			next = s.Sequence + 1
		}
		if pl.Ended {
			e.logger.Debug().Uint64("last_sequence", next).Msg("playlist ended")
			return
		}
		if err := sleepWithContext(ctx, e.reloadInterval(pl)); err != nil {
			return
		}
		reloaded, ok := e.loadLevel(ctx, levelURL)
		if !ok {
			return
		}
		pl = reloaded
	}
}

func (e *Engine) reloadInterval(pl *hls.Playlist) time.Duration {
	if e.cfg.LiveReload > 0 {
		return e.cfg.LiveReload
	}
	if pl.TargetDuration < minLiveReload {
		return minLiveReload
	}
	return pl.TargetDuration
}

func (e *Engine) appendSegment(ctx context.Context, sink player.SegmentSink, seg player.Segment) bool {
	if err := sink.AppendSegment(ctx, seg); err != nil {
		if ctx.Err() == nil {
			e.reportError(ctx, player.EngineMediaError, DetailsBufferAppend, true, err)
		}
		return false
	}
	metrics.IncEngineSegmentAppended()
	return true
}
