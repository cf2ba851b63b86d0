// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/overlaycast/internal/validate"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func ptr[T any](v T) *T { return &v }

func validOverlay(name string) OverlayInput {
	return OverlayInput{
		Name:     ptr(name),
		Layers:   []OverlayLayer{{Type: LayerText, Content: "LIVE"}},
		Position: &Position{X: 10, Y: 20},
		Size:     &Size{Width: 200, Height: 50},
		Style:    &OverlayStyle{Color: "#ffffff", Opacity: 0.8},
	}
}

func TestOverlayStore_CreateAssignsIDsAndTimestamps(t *testing.T) {
	clk := newFakeClock()
	s := NewOverlayStore(clk.Now)

	a, err := s.Create(validOverlay("Score"))
	require.NoError(t, err)
	clk.Advance(time.Second)
	b, err := s.Create(validOverlay("Logo"))
	require.NoError(t, err)

	assert.Equal(t, "1", a.ID)
	assert.Equal(t, "2", b.ID)
	assert.Equal(t, "2025-03-01T12:00:00.123Z", a.CreatedAt)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	assert.Equal(t, "2025-03-01T12:00:01.123Z", b.CreatedAt)

	ids := []string{}
	for _, o := range s.List() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestOverlayStore_InvalidCreateStoresNothing(t *testing.T) {
	s := NewOverlayStore(nil)

	tests := []struct {
		name  string
		in    OverlayInput
		field string
	}{
		{name: "missing name", in: func() OverlayInput { in := validOverlay("x"); in.Name = nil; return in }(), field: "name"},
		{name: "blank name", in: validOverlay("   "), field: "name"},
		{name: "missing layers", in: func() OverlayInput { in := validOverlay("x"); in.Layers = nil; return in }(), field: "layers"},
		{name: "bad layer type", in: func() OverlayInput {
			in := validOverlay("x")
			in.Layers = []OverlayLayer{{Type: "video"}}
			return in
		}(), field: "layers[0].type"},
		{name: "opacity out of range", in: func() OverlayInput {
			in := validOverlay("x")
			in.Style = &OverlayStyle{Opacity: 1.5}
			return in
		}(), field: "style.opacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.in)
			var verr validate.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Errors()[0].Field)
		})
	}
	assert.Empty(t, s.List())

	o, err := s.Create(validOverlay("ok"))
	require.NoError(t, err)
	assert.Equal(t, "1", o.ID, "failed creates do not consume ids")
}

func TestOverlayStore_NamesAreNFC(t *testing.T) {
	s := NewOverlayStore(nil)
	o, err := s.Create(validOverlay("Cafe\u0301 "))
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", o.Name)
}

func TestOverlayStore_UpdateMergesPresentFields(t *testing.T) {
	clk := newFakeClock()
	s := NewOverlayStore(clk.Now)
	created, err := s.Create(validOverlay("Score"))
	require.NoError(t, err)

	clk.Advance(time.Minute)
	updated, err := s.Update(created.ID, OverlayInput{Position: &Position{X: 99, Y: 1}})
	require.NoError(t, err)

	want := created
	want.Position = Position{X: 99, Y: 1}
	want.UpdatedAt = "2025-03-01T12:01:00.123Z"
	if diff := cmp.Diff(want, updated); diff != "" {
		t.Errorf("merged overlay mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Update(created.ID, OverlayInput{Name: ptr("")})
	require.Error(t, err)
	got, err := s.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got, "invalid merge leaves the record untouched")
}

func TestOverlayStore_NotFound(t *testing.T) {
	s := NewOverlayStore(nil)
	_, err := s.Create(validOverlay("a"))
	require.NoError(t, err)

	_, err = s.Get("42")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Overlay not found")
	_, err = s.Update("42", OverlayInput{})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("42"), ErrNotFound)
	assert.Equal(t, 1, s.Len(), "store unchanged")
}

func TestOverlayStore_ReturnsCopies(t *testing.T) {
	s := NewOverlayStore(nil)
	in := validOverlay("a")
	in.Style.FontSize = ptr(24.0)
	o, err := s.Create(in)
	require.NoError(t, err)

	o.Layers[0].Content = "mutated"
	*o.Style.FontSize = 1
	got, err := s.Get(o.ID)
	require.NoError(t, err)
	assert.Equal(t, "LIVE", got.Layers[0].Content)
	assert.Equal(t, 24.0, *got.Style.FontSize)
}

func TestOverlayStore_DeleteThenIDsStayMonotonic(t *testing.T) {
	s := NewOverlayStore(nil)
	a, _ := s.Create(validOverlay("a"))
	require.NoError(t, s.Delete(a.ID))
	b, err := s.Create(validOverlay("b"))
	require.NoError(t, err)
	assert.Equal(t, "2", b.ID)
	assert.Len(t, s.List(), 1)
}

func TestSettingsStore_LatestAndNotifications(t *testing.T) {
	s := NewSettingsStore(nil)

	_, err := s.Latest()
	assert.EqualError(t, err, "No settings found")

	type note struct {
		id string
		ok bool
	}
	var got []note
	unsubscribe := s.Subscribe(func(latest Settings, ok bool) {
		got = append(got, note{latest.ID, ok})
	})

	first, err := s.Create(SettingsInput{RTSPURL: ptr("rtsp://cam/1"), Autoplay: ptr(true)})
	require.NoError(t, err)
	second, err := s.Create(SettingsInput{RTSPURL: ptr("rtsp://cam/2"), Muted: ptr(true)})
	require.NoError(t, err)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, second, latest)

	updated, err := s.Update(first.ID, SettingsInput{Muted: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Autoplay)
	assert.True(t, updated.Muted)

	require.NoError(t, s.Delete(second.ID))
	latest, err = s.Latest()
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	require.NoError(t, s.Delete(first.ID))
	unsubscribe()
	unsubscribe()
	_, err = s.Create(SettingsInput{RTSPURL: ptr("rtsp://cam/3")})
	require.NoError(t, err)

	assert.Equal(t, []note{{"1", true}, {"2", true}, {"2", true}, {"1", true}, {"", false}}, got)
}

func TestSettingsStore_Validation(t *testing.T) {
	s := NewSettingsStore(nil)
	_, err := s.Create(SettingsInput{Autoplay: ptr(true)})
	require.Error(t, err)
	_, err = s.Create(SettingsInput{RTSPURL: ptr(" ")})
	require.Error(t, err)

	st, err := s.Create(SettingsInput{RTSPURL: ptr("rtsp://cam")})
	require.NoError(t, err)
	_, err = s.Update(st.ID, SettingsInput{RTSPURL: ptr("")})
	require.Error(t, err)
	_, err = s.Update("9", SettingsInput{})
	assert.EqualError(t, err, "Settings not found")
	assert.ErrorIs(t, s.Delete("9"), ErrNotFound)
}

func TestStores_ConcurrentUse(t *testing.T) {
	overlays := NewOverlayStore(nil)
	settings := NewSettingsStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := overlays.Create(validOverlay("x"))
			assert.NoError(t, err)
			_, _ = overlays.Update(o.ID, OverlayInput{Name: ptr("y")})
			_ = overlays.List()
			_, err = settings.Create(SettingsInput{RTSPURL: ptr("rtsp://cam")})
			assert.NoError(t, err)
			_, _ = settings.Latest()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, overlays.Len())
}
