// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldGeneration    = "generation"
	FieldOverlayID     = "overlay_id"
	FieldSettingsID    = "settings_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Media / stream fields
	FieldMediaKind = "media_kind"
	FieldErrorKind = "error_kind"
	FieldDetail    = "detail"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath      = "path"
	FieldSourceURL = "source_url"
)
