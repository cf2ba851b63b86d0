// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/overlaycast/internal/validate"
)

// SettingsListener observes the effective settings after every mutation.
// ok is false when no settings remain.
type SettingsListener func(latest Settings, ok bool)

// SettingsStore is an in-memory settings repository. The most recently
// created record that still exists is the effective one.
type SettingsStore struct {
	mu     sync.RWMutex
	now    func() time.Time
	nextID uint64
	order  []string
	items  map[string]Settings

	subMu     sync.Mutex
	nextSubID int
	subs      map[int]SettingsListener
}

// NewSettingsStore creates an empty store. A nil clock uses time.Now.
func NewSettingsStore(now func() time.Time) *SettingsStore {
	if now == nil {
		now = time.Now
	}
	return &SettingsStore{
		now:    now,
		nextID: 1,
		items:  make(map[string]Settings),
		subs:   make(map[int]SettingsListener),
	}
}

// Latest returns the effective settings.
func (s *SettingsStore) Latest() (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if latest, ok := s.latestLocked(); ok {
		return latest, nil
	}
	return Settings{}, errNoSettings
}

// Get returns one record.
func (s *SettingsStore) Get(id string) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.items[id]
	if !ok {
		return Settings{}, errSettingsNotFound
	}
	return st, nil
}

// Create stores a new record; it becomes the effective one.
func (s *SettingsStore) Create(in SettingsInput) (Settings, error) {
	v := validate.New()
	if in.RTSPURL == nil {
		v.AddError("rtspUrl", "is required", nil)
	} else {
		v.NotEmpty("rtspUrl", *in.RTSPURL)
	}
	if err := v.Err(); err != nil {
		return Settings{}, err
	}

	st := Settings{RTSPURL: strings.TrimSpace(*in.RTSPURL)}
	if in.Autoplay != nil {
		st.Autoplay = *in.Autoplay
	}
	if in.Muted != nil {
		st.Muted = *in.Muted
	}

	s.mu.Lock()
	st.ID = strconv.FormatUint(s.nextID, 10)
	st.UpdatedAt = formatTime(s.now())
	s.nextID++
	s.items[st.ID] = st
	s.order = append(s.order, st.ID)
	latest, ok := s.latestLocked()
	s.mu.Unlock()

	s.notify(latest, ok)
	return st, nil
}

// Update merges the present fields into record id.
func (s *SettingsStore) Update(id string, in SettingsInput) (Settings, error) {
	if in.RTSPURL != nil {
		v := validate.New()
		v.NotEmpty("rtspUrl", *in.RTSPURL)
		if err := v.Err(); err != nil {
			return Settings{}, err
		}
	}

	s.mu.Lock()
	st, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return Settings{}, errSettingsNotFound
	}
	if in.RTSPURL != nil {
		st.RTSPURL = strings.TrimSpace(*in.RTSPURL)
	}
	if in.Autoplay != nil {
		st.Autoplay = *in.Autoplay
	}
	if in.Muted != nil {
		st.Muted = *in.Muted
	}
	st.UpdatedAt = formatTime(s.now())
	s.items[id] = st
	latest, lok := s.latestLocked()
	s.mu.Unlock()

	s.notify(latest, lok)
	return st, nil
}

// Delete removes record id; the previous record, if any, becomes effective.
func (s *SettingsStore) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return errSettingsNotFound
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	latest, ok := s.latestLocked()
	s.mu.Unlock()

	s.notify(latest, ok)
	return nil
}

// Subscribe registers fn for change notifications and returns its
// cancellation. fn runs synchronously on the mutating goroutine and must
// not call back into the store's mutators.
func (s *SettingsStore) Subscribe(fn SettingsListener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *SettingsStore) latestLocked() (Settings, bool) {
	if len(s.order) == 0 {
		return Settings{}, false
	}
	return s.items[s.order[len(s.order)-1]], true
}

func (s *SettingsStore) notify(latest Settings, ok bool) {
	s.subMu.Lock()
	fns := make([]SettingsListener, 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(latest, ok)
	}
}
