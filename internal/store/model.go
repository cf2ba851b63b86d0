// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store holds the in-memory overlay and settings repositories
// behind the REST API.
package store

import "time"

// TimeLayout is RFC 3339 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// LayerType distinguishes overlay layers.
type LayerType string

const (
	LayerText LayerType = "text"
	LayerLogo LayerType = "logo"
)

// OverlayLayer is one text or logo element of an overlay.
type OverlayLayer struct {
	Type    LayerType `json:"type"`
	Content string    `json:"content,omitempty"`
	URL     string    `json:"url,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type OverlayStyle struct {
	Color    string   `json:"color,omitempty"`
	Opacity  float64  `json:"opacity"`
	FontSize *float64 `json:"fontSize,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// Overlay is a stored overlay record.
type Overlay struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Layers    []OverlayLayer `json:"layers"`
	Position  Position       `json:"position"`
	Size      Size           `json:"size"`
	Style     OverlayStyle   `json:"style"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

// OverlayInput carries create and update payloads. Nil fields are absent:
// Create requires all of them, Update replaces only those present.
type OverlayInput struct {
	Name     *string        `json:"name,omitempty"`
	Layers   []OverlayLayer `json:"layers,omitempty"`
	Position *Position      `json:"position,omitempty"`
	Size     *Size          `json:"size,omitempty"`
	Style    *OverlayStyle  `json:"style,omitempty"`
}

// Settings is a stored stream-settings record.
type Settings struct {
	ID        string `json:"id"`
	RTSPURL   string `json:"rtspUrl"`
	Autoplay  bool   `json:"autoplay"`
	Muted     bool   `json:"muted"`
	UpdatedAt string `json:"updatedAt"`
}

// SettingsInput carries create and update payloads with the same presence
// rules as OverlayInput.
type SettingsInput struct {
	RTSPURL  *string `json:"rtspUrl,omitempty"`
	Autoplay *bool   `json:"autoplay,omitempty"`
	Muted    *bool   `json:"muted,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
