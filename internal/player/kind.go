// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "encoding/json"

// HLSMimeType is the segmented playlist MIME type probed on the sink.
const HLSMimeType = "application/vnd.apple.mpegurl"

// MediaKind is the playback strategy chosen for a source.
type MediaKind int

const (
	KindNone MediaKind = iota
	KindAdaptive
	KindNativeHLS
	KindProgressive
)

func (k MediaKind) String() string {
	switch k {
	case KindAdaptive:
		return "adaptive-segmented"
	case KindNativeHLS:
		return "native-hls"
	case KindProgressive:
		return "progressive"
	default:
		return "none"
	}
}

// MarshalJSON renders the kind by name.
func (k MediaKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// SelectKind picks the playback strategy by probing capabilities:
//  1. an engine factory that supports the sink -> adaptive
//  2. a sink that natively plays the HLS MIME type -> native HLS
//  3. anything else -> progressive
//
// The source URL is deliberately not an input; selection performs no I/O.
func SelectKind(sink Sink, engines EngineFactory) MediaKind {
	if engines != nil && sink != nil && engines.Supported(sink) {
		return KindAdaptive
	}
	if sink != nil && sink.CanPlayType(HLSMimeType) {
		return KindNativeHLS
	}
	return KindProgressive
}
