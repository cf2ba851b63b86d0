// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import "errors"

// ErrNotFound is wrapped by every lookup miss. The wrapping error's message
// is suitable for API responses.
var ErrNotFound = errors.New("not found")

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }

var (
	errOverlayNotFound  = &notFoundError{msg: "Overlay not found"}
	errSettingsNotFound = &notFoundError{msg: "Settings not found"}
	errNoSettings       = &notFoundError{msg: "No settings found"}
)
