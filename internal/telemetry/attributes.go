// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across the daemon.
const (
	PlayerMediaKindKey  = "player.media_kind"
	PlayerGenerationKey = "player.generation"
	PlayerTriggerKey    = "player.trigger"
	PlayerFinalStateKey = "player.final_state"
	PlayerEndReasonKey  = "player.end_reason"

	PlaybackErrorKindKey   = "playback.error_kind"
	PlaybackErrorDetailKey = "playback.error_detail"
)

// SessionAttributes describes the start of a playback session.
func SessionAttributes(kind string, generation uint64, trigger string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlayerMediaKindKey, kind),
		attribute.Int64(PlayerGenerationKey, int64(generation)),
		attribute.String(PlayerTriggerKey, trigger),
	}
}

// SessionEndAttributes describes how a session ended.
func SessionEndAttributes(finalState, reason string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlayerFinalStateKey, finalState),
		attribute.String(PlayerEndReasonKey, reason),
	}
}

// PlaybackErrorAttributes describes a classified playback failure.
func PlaybackErrorAttributes(kind, detail string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackErrorKindKey, kind),
		attribute.String(PlaybackErrorDetailKey, detail),
	}
}
