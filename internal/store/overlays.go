// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/overlaycast/internal/validate"
)

// OverlayStore is an in-memory overlay repository safe for concurrent use.
// Records are listed in creation order.
type OverlayStore struct {
	mu     sync.RWMutex
	now    func() time.Time
	nextID uint64
	order  []string
	items  map[string]Overlay
}

// NewOverlayStore creates an empty store. A nil clock uses time.Now.
func NewOverlayStore(now func() time.Time) *OverlayStore {
	if now == nil {
		now = time.Now
	}
	return &OverlayStore{now: now, nextID: 1, items: make(map[string]Overlay)}
}

// List returns a copy of all overlays.
func (s *OverlayStore) List() []Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Overlay, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneOverlay(s.items[id]))
	}
	return out
}

// Get returns one overlay.
func (s *OverlayStore) Get(id string) (Overlay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.items[id]
	if !ok {
		return Overlay{}, errOverlayNotFound
	}
	return cloneOverlay(o), nil
}

// Create validates in and stores a new overlay. Nothing is stored on error.
func (s *OverlayStore) Create(in OverlayInput) (Overlay, error) {
	v := validate.New()
	if in.Name == nil {
		v.AddError("name", "is required", nil)
	}
	if in.Layers == nil {
		v.AddError("layers", "is required", nil)
	}
	if in.Position == nil {
		v.AddError("position", "is required", nil)
	}
	if in.Size == nil {
		v.AddError("size", "is required", nil)
	}
	if in.Style == nil {
		v.AddError("style", "is required", nil)
	}
	if err := v.Err(); err != nil {
		return Overlay{}, err
	}

	o := Overlay{
		Name:     *in.Name,
		Layers:   slices.Clone(in.Layers),
		Position: *in.Position,
		Size:     *in.Size,
		Style:    *in.Style,
	}
	normalizeOverlay(&o)
	if err := validateOverlay(o); err != nil {
		return Overlay{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := formatTime(s.now())
	o.ID = strconv.FormatUint(s.nextID, 10)
	o.CreatedAt = ts
	o.UpdatedAt = ts
	s.nextID++
	s.items[o.ID] = o
	s.order = append(s.order, o.ID)
	return cloneOverlay(o), nil
}

// Update merges the fields present in in over the stored record and bumps
// UpdatedAt. An invalid merge result leaves the record unchanged.
func (s *OverlayStore) Update(id string, in OverlayInput) (Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return Overlay{}, errOverlayNotFound
	}

	merged := cloneOverlay(cur)
	if in.Name != nil {
		merged.Name = *in.Name
	}
	if in.Layers != nil {
		merged.Layers = slices.Clone(in.Layers)
	}
	if in.Position != nil {
		merged.Position = *in.Position
	}
	if in.Size != nil {
		merged.Size = *in.Size
	}
	if in.Style != nil {
		merged.Style = *in.Style
	}
	normalizeOverlay(&merged)
	if err := validateOverlay(merged); err != nil {
		return Overlay{}, err
	}
	merged.UpdatedAt = formatTime(s.now())
	s.items[id] = merged
	return cloneOverlay(merged), nil
}

// Delete removes an overlay.
func (s *OverlayStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return errOverlayNotFound
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	return nil
}

// Len returns the number of stored overlays.
func (s *OverlayStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func normalizeOverlay(o *Overlay) {
	o.Name = norm.NFC.String(strings.TrimSpace(o.Name))
	for i := range o.Layers {
		o.Layers[i].Content = norm.NFC.String(o.Layers[i].Content)
	}
}

func validateOverlay(o Overlay) error {
	v := validate.New()
	v.NotEmpty("name", o.Name)
	for i, l := range o.Layers {
		field := fmt.Sprintf("layers[%d]", i)
		v.OneOf(field+".type", string(l.Type), []string{string(LayerText), string(LayerLogo)})
		if l.Type == LayerLogo && l.URL != "" {
			v.URL(field+".url", l.URL, []string{"http", "https"})
		}
	}
	if o.Size.Width < 0 || o.Size.Height < 0 {
		v.AddError("size", "width and height must not be negative", o.Size)
	}
	v.FloatRange("style.opacity", o.Style.Opacity, 0, 1)
	if o.Style.FontSize != nil && *o.Style.FontSize <= 0 {
		v.AddError("style.fontSize", "must be positive", *o.Style.FontSize)
	}
	return v.Err()
}

func cloneOverlay(o Overlay) Overlay {
	o.Layers = slices.Clone(o.Layers)
	if o.Layers == nil {
		o.Layers = []OverlayLayer{}
	}
	if o.Style.FontSize != nil {
		fs := *o.Style.FontSize
		o.Style.FontSize = &fs
	}
	return o
}
