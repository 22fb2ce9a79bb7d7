package shared

import (
	"fmt"
	"sort"
)

// Transition is one edge of a state machine: an event moving From to To
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// StateMachine maps (current state, event) to the next state.
// Illegal pairs yield an INVALID_STATE_TRANSITION domain error.
type StateMachine[S ~string, E ~string] struct {
	name  string
	table map[S]map[E]S
}

// NewStateMachine builds a state machine from its transition table.
// Declaring the same (From, Event) twice panics, since the table would be ambiguous.
func NewStateMachine[S ~string, E ~string](name string, transitions ...Transition[S, E]) *StateMachine[S, E] {
	m := &StateMachine[S, E]{
		name:  name,
		table: make(map[S]map[E]S),
	}
	for _, t := range transitions {
		events, ok := m.table[t.From]
		if !ok {
			events = make(map[E]S)
			m.table[t.From] = events
		}
		if _, dup := events[t.Event]; dup {
			panic(fmt.Sprintf("%s: duplicate transition %s --%s-->", name, t.From, t.Event))
		}
		events[t.Event] = t.To
	}
	return m
}

// Next returns the state reached by applying event in state current
func (m *StateMachine[S, E]) Next(current S, event E) (S, error) {
	if next, ok := m.table[current][event]; ok {
		return next, nil
	}
	return current, NewDomainError(CodeInvalidStateTransition,
		fmt.Sprintf("%s: cannot %s in state %s", m.name, event, current))
}

// Can reports whether event is legal in state current
func (m *StateMachine[S, E]) Can(current S, event E) bool {
	_, ok := m.table[current][event]
	return ok
}

// Events lists the legal events in state current, sorted for stable output
func (m *StateMachine[S, E]) Events(current S) []E {
	events := make([]E, 0, len(m.table[current]))
	for e := range m.table[current] {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// Name returns the machine name used in error messages
func (m *StateMachine[S, E]) Name() string {
	return m.name
}
