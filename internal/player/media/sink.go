// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media provides HeadlessSink, a server-side media element. It
// accepts segments from an adaptive engine, or probes a source URL itself
// for native HLS and progressive playback.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/overlaycast/internal/hls"
	xglog "github.com/ManuGH/overlaycast/internal/log"
	"github.com/ManuGH/overlaycast/internal/player"
)

const (
	defaultProbeTimeout = 8 * time.Second
	defaultMaxBuffered  = 16
	probeBytes          = 64 << 10
)

// Config configures a HeadlessSink.
type Config struct {
	Client *http.Client
	// NativeHLS makes the sink advertise and play HLS playlists itself.
	NativeHLS bool
	// RequireGesture rejects Play calls whose context is not marked with
	// player.WithUserGesture.
	RequireGesture bool
	ProbeTimeout   time.Duration
	// MaxBuffered bounds the number of retained segments.
	MaxBuffered int
	Logger      *zerolog.Logger
}

// Status is a point-in-time view of the sink.
type Status struct {
	Source        string  `json:"source"`
	Playing       bool    `json:"playing"`
	Volume        float64 `json:"volume"`
	Muted         bool    `json:"muted"`
	ContentType   string  `json:"contentType,omitempty"`
	Buffered      int     `json:"bufferedSegments"`
	BufferedBytes int64   `json:"bufferedBytes"`
	Attached      bool    `json:"attached"`
}

// HeadlessSink implements player.SegmentSink.
type HeadlessSink struct {
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	source      string
	contentType string
	playing     bool
	volume      float64
	muted       bool
	segments    []player.Segment
	bytes       int64
	metadata    bool
	// attached is set while an engine owns the buffer, from ResetBuffer
	// until the next SetSource.
	attached    bool
	listeners   map[int]func(player.SinkEvent)
	nextID      int
	probeGen    uint64
	probeCancel context.CancelFunc
	closed      bool

	wg sync.WaitGroup
}

var _ player.SegmentSink = (*HeadlessSink)(nil)

// NewHeadlessSink returns an idle sink.
func NewHeadlessSink(cfg Config) *HeadlessSink {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = defaultMaxBuffered
	}
	s := &HeadlessSink{
		cfg:       cfg,
		volume:    1,
		listeners: map[int]func(player.SinkEvent){},
	}
	if cfg.Logger != nil {
		s.logger = cfg.Logger.With().Str(xglog.FieldComponent, "sink").Logger()
	} else {
		s.logger = xglog.WithComponent("sink")
	}
	return s
}

// CanPlayType reports native support for mime.
func (s *HeadlessSink) CanPlayType(mimeType string) bool {
	if isHLSType(mimeType) {
		return s.cfg.NativeHLS
	}
	return isProgressiveType(mimeType)
}

// SetSource cancels any running probe and, for a non-empty url, starts a new
// one. The probe reports loadedmetadata or error to listeners.
func (s *HeadlessSink) SetSource(rawURL string) {
	s.mu.Lock()
	if s.probeCancel != nil {
		s.probeCancel()
		s.probeCancel = nil
	}
	s.probeGen++
	s.source = rawURL
	s.contentType = ""
	s.playing = false
	s.metadata = false
	s.attached = false
	s.segments = nil
	s.bytes = 0
	if rawURL == "" || s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProbeTimeout)
	s.probeCancel = cancel
	gen := s.probeGen
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		s.probe(ctx, gen, rawURL)
	}()
}

func (s *HeadlessSink) probe(ctx context.Context, gen uint64, rawURL string) {
	contentType, err := s.fetchHead(ctx, rawURL)
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return
	}
	if err != nil {
		s.emitIfCurrent(gen, player.SinkEvent{Type: player.SinkError, Err: err})
		return
	}
	s.mu.Lock()
	if gen == s.probeGen {
		s.contentType = contentType
		s.metadata = true
	}
	s.mu.Unlock()
	s.logger.Debug().Str(xglog.FieldSourceURL, rawURL).Str("content_type", contentType).Msg("source probed")
	s.emitIfCurrent(gen, player.SinkEvent{Type: player.SinkLoadedMetadata})
}

// fetchHead downloads the head of the resource and classifies it.
func (s *HeadlessSink) fetchHead(ctx context.Context, rawURL string) (string, *player.MediaError) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", &player.MediaError{Code: player.MediaErrSrcNotSupported, Message: "unsupported source url"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &player.MediaError{Code: player.MediaErrSrcNotSupported, Message: err.Error()}
	}
	req.Header.Set("Range", "bytes=0-")
	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		return "", &player.MediaError{Code: player.MediaErrNetwork, Message: networkMessage(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", &player.MediaError{Code: player.MediaErrNetwork, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	head, err := io.ReadAll(io.LimitReader(resp.Body, probeBytes))
	if err != nil {
		return "", &player.MediaError{Code: player.MediaErrNetwork, Message: networkMessage(err)}
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" || contentType == "text/plain" {
		contentType = sniff(u, head)
	}

	switch {
	case isHLSType(contentType):
		if !s.cfg.NativeHLS {
			return "", &player.MediaError{Code: player.MediaErrSrcNotSupported}
		}
		if _, err := hls.Parse(bytes.NewReader(head), u); err != nil {
			return "", &player.MediaError{Code: player.MediaErrDecode, Message: "invalid playlist: " + err.Error()}
		}
	case isProgressiveType(contentType):
	default:
		return "", &player.MediaError{Code: player.MediaErrSrcNotSupported}
	}
	return contentType, nil
}

// Play starts playback. Without a user gesture it fails with
// player.ErrPlayNotAllowed when the sink requires one. A sink attached to an
// engine accepts Play before the first segment arrives and starts rendering
// once data is buffered.
func (s *HeadlessSink) Play(ctx context.Context) error {
	if s.cfg.RequireGesture && !player.IsUserGesture(ctx) {
		return player.ErrPlayNotAllowed
	}
	s.mu.Lock()
	if s.source == "" && !s.attached && len(s.segments) == 0 {
		s.mu.Unlock()
		return errors.New("no supported source")
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = true
	s.mu.Unlock()
	s.emit(player.SinkEvent{Type: player.SinkPlay})
	return nil
}

func (s *HeadlessSink) Pause() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.mu.Unlock()
	s.emit(player.SinkEvent{Type: player.SinkPause})
}

func (s *HeadlessSink) SetVolume(level float64) {
	s.mu.Lock()
	s.volume = level
	s.mu.Unlock()
}

func (s *HeadlessSink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Listen registers fn. The returned function removes it.
func (s *HeadlessSink) Listen(fn func(player.SinkEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// AppendSegment buffers seg. The first segment after a reset reports
// loadedmetadata.
func (s *HeadlessSink) AppendSegment(ctx context.Context, seg player.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(seg.Data) == 0 {
		return errors.New("empty segment")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("sink closed")
	}
	s.segments = append(s.segments, seg)
	s.bytes += int64(len(seg.Data))
	for len(s.segments) > s.cfg.MaxBuffered {
		s.bytes -= int64(len(s.segments[0].Data))
		s.segments = s.segments[1:]
	}
	first := !s.metadata
	s.metadata = true
	s.mu.Unlock()

	if first {
		s.emit(player.SinkEvent{Type: player.SinkLoadedMetadata})
	}
	return nil
}

// ResetBuffer drops buffered segments and stops playback. The sink stays
// attached to segment intake until the next SetSource.
func (s *HeadlessSink) ResetBuffer() {
	s.mu.Lock()
	s.segments = nil
	s.bytes = 0
	s.metadata = false
	s.playing = false
	s.attached = !s.closed
	s.mu.Unlock()
}

// Status returns the current sink view.
func (s *HeadlessSink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Source:        s.source,
		Playing:       s.playing,
		Volume:        s.volume,
		Muted:         s.muted,
		ContentType:   s.contentType,
		Buffered:      len(s.segments),
		BufferedBytes: s.bytes,
		Attached:      s.attached,
	}
}

// Close cancels any probe and waits for it to finish.
func (s *HeadlessSink) Close() {
	s.mu.Lock()
	s.closed = true
	if s.probeCancel != nil {
		s.probeCancel()
		s.probeCancel = nil
	}
	s.probeGen++
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *HeadlessSink) emitIfCurrent(gen uint64, ev player.SinkEvent) {
	s.mu.Lock()
	current := gen == s.probeGen
	s.mu.Unlock()
	if current {
		s.emit(ev)
	}
}

func (s *HeadlessSink) emit(ev player.SinkEvent) {
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

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.ToLower(mt)
}

func sniff(u *url.URL, head []byte) string {
	if bytes.HasPrefix(bytes.TrimSpace(head), []byte("#EXTM3U")) {
		return player.HLSMimeType
	}
	switch ext := strings.ToLower(pathExt(u.Path)); ext {
	case ".m3u8":
		return player.HLSMimeType
	case ".ts":
		return "video/mp2t"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	}
	return mediaType(http.DetectContentType(head))
}

func pathExt(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 && !strings.Contains(p[i:], "/") {
		return p[i:]
	}
	return ""
}

func isHLSType(mt string) bool {
	switch strings.ToLower(mt) {
	case player.HLSMimeType, "application/x-mpegurl", "audio/mpegurl", "audio/x-mpegurl":
		return true
	}
	return false
}

func isProgressiveType(mt string) bool {
	mt = strings.ToLower(mt)
	return strings.HasPrefix(mt, "video/") || strings.HasPrefix(mt, "audio/")
}

func networkMessage(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return "request timed out"
		}
		return ue.Err.Error()
	}
	return err.Error()
}
