// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

// Transition is one allowed edge of the playback state machine.
type Transition struct {
	From  State
	Event EventKind
	To    State
}

type transitionKey struct {
	from  State
	event EventKind
}

var transitionsTable = []Transition{
	// a new session (source change, retry, option change) always restarts loading
	{From: StateLoading, Event: EvLoad, To: StateLoading},
	{From: StateReady, Event: EvLoad, To: StateLoading},
	{From: StatePlaying, Event: EvLoad, To: StateLoading},
	{From: StatePaused, Event: EvLoad, To: StateLoading},
	{From: StateError, Event: EvLoad, To: StateLoading},

	{From: StateLoading, Event: EvReady, To: StateReady},

	{From: StateLoading, Event: EvTimeout, To: StateError},

	{From: StateLoading, Event: EvFatal, To: StateError},
	{From: StateReady, Event: EvFatal, To: StateError},
	{From: StatePlaying, Event: EvFatal, To: StateError},
	{From: StatePaused, Event: EvFatal, To: StateError},

	{From: StateReady, Event: EvPlay, To: StatePlaying},
	{From: StatePaused, Event: EvPlay, To: StatePlaying},
	{From: StatePlaying, Event: EvPause, To: StatePaused},
}

var transitionIndex = buildTransitionIndex(transitionsTable)

func buildTransitionIndex(table []Transition) map[transitionKey]State {
	idx := make(map[transitionKey]State, len(table))
	for _, t := range table {
		key := transitionKey{from: t.From, event: t.Event}
		if _, dup := idx[key]; dup {
			panic("player: duplicate transition " + t.From.String() + "/" + t.Event.String())
		}
		idx[key] = t.To
	}
	return idx
}

// TransitionFor returns the target state for (from, ev). Pairs missing from
// the table are ignored by the controller.
func TransitionFor(from State, ev EventKind) (State, bool) {
	to, ok := transitionIndex[transitionKey{from: from, event: ev}]
	return to, ok
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	out := make([]Transition, len(transitionsTable))
	copy(out, transitionsTable)
	return out
}
