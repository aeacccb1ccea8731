// Package fsm provides a small generic state-dispatch helper in the shape
// of the teacher's hand-rolled BGP FSM: a current state, an event type,
// and one handler function per state that decides the next state. It has
// no notion of what the states or events mean; callers supply that.
package fsm

// Handler decides the next state for an event observed in a given state.
// Returning ok=false means the event is ignored in this state.
type Handler[S comparable, E any] func(state S, event E) (next S, ok bool)

// Machine is a generic finite state machine: a current state plus one
// Handler per state.
type Machine[S comparable, E any] struct {
	state    S
	handlers map[S]Handler[S, E]
	onEnter  map[S]func()
}

// New creates a Machine starting in the given state.
func New[S comparable, E any](initial S) *Machine[S, E] {
	return &Machine[S, E]{
		state:    initial,
		handlers: make(map[S]Handler[S, E]),
		onEnter:  make(map[S]func()),
	}
}

// On registers the handler invoked when an event arrives while the
// machine is in the given state.
func (m *Machine[S, E]) On(state S, h Handler[S, E]) {
	m.handlers[state] = h
}

// OnEnter registers a callback run every time the machine transitions
// into the given state, including the initial state transition performed
// by Enter.
func (m *Machine[S, E]) OnEnter(state S, f func()) {
	m.onEnter[state] = f
}

// Enter runs the onEnter callback, if any, for the machine's current
// state. Call once after registering callbacks to fire the initial
// state's entry action.
func (m *Machine[S, E]) Enter() {
	if f, ok := m.onEnter[m.state]; ok {
		f()
	}
}

// State returns the current state.
func (m *Machine[S, E]) State() S {
	return m.state
}

// Fire dispatches an event to the current state's handler. It reports
// whether the event caused a transition (including a transition to the
// same state).
func (m *Machine[S, E]) Fire(event E) bool {
	h, ok := m.handlers[m.state]
	if !ok {
		return false
	}
	next, ok := h(m.state, event)
	if !ok {
		return false
	}
	m.state = next
	if f, ok := m.onEnter[next]; ok {
		f()
	}
	return true
}
