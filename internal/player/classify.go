// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "strings"

const (
	detailLoadTimeout = "loading timeout"

	fallbackNetwork = "failed to load stream"
	fallbackMedia   = "media decode error"
	fallbackUnknown = "unknown error"

	fallbackNativeSink      = "failed to load video stream"
	fallbackProgressiveSink = "unsupported format or network issue"
	fallbackSink            = "video playback error"
)

// ClassifyEngineError maps an engine error onto the PlaybackError taxonomy.
// The second result is false for non-fatal errors, which the engine recovers
// from on its own.
func ClassifyEngineError(e EngineError) (PlaybackError, bool) {
	if !e.Fatal {
		return PlaybackError{}, false
	}
	detail := strings.TrimSpace(e.Details)
	switch e.Type {
	case EngineNetworkError:
		return PlaybackError{Kind: ErrorNetwork, Detail: orDefault(detail, fallbackNetwork)}, true
	case EngineMediaError:
		return PlaybackError{Kind: ErrorMedia, Detail: orDefault(detail, fallbackMedia)}, true
	default:
		return PlaybackError{Kind: ErrorUnknown, Detail: orDefault(detail, fallbackUnknown)}, true
	}
}

// ClassifySinkError maps a media element error. Only decode failures are
// reported as media errors; everything else is unknown.
func ClassifySinkError(kind MediaKind, err *MediaError) PlaybackError {
	out := PlaybackError{Kind: ErrorUnknown}
	var msg string
	if err != nil {
		if err.Code == MediaErrDecode {
			out.Kind = ErrorMedia
		}
		msg = strings.TrimSpace(err.Message)
	}
	switch kind {
	case KindNativeHLS:
		out.Detail = orDefault(msg, fallbackNativeSink)
	case KindProgressive:
		out.Detail = orDefault(msg, fallbackProgressiveSink)
	default:
		out.Detail = orDefault(msg, fallbackSink)
	}
	return out
}

// TimeoutError is the error reported when a session never becomes ready.
func TimeoutError() PlaybackError {
	return PlaybackError{Kind: ErrorNetwork, Detail: detailLoadTimeout}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
