package ifmirror

import (
	"time"

	"github.com/golang/glog"
	"golang.org/x/time/rate"

	"github.com/netrib/rib/fsm"
)

// reconnectInterval bounds how often a flapping transport is allowed to
// drive the mirror back into Starting; faster disconnects are dropped
// rather than repeatedly clearing the tree.
const reconnectInterval = time.Second

// State is a mirror's lifecycle state (§4.6): Ready -> Starting ->
// Running -> ShuttingDown -> Shutdown/Failed.
type State int

const (
	Ready State = iota
	Starting
	Running
	ShuttingDown
	Shutdown
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case ShuttingDown:
		return "SHUTTING_DOWN"
	case Shutdown:
		return "SHUTDOWN"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event drives a mirror's state machine.
type Event int

const (
	EvTransportReady Event = iota
	EvRegistered
	EvTreeComplete
	EvDisconnect
	EvShutdownRequested
	EvShutdownComplete
	EvFailure
)

// HintObserver receives the two out-of-band signals a mirror surfaces
// once commands have been applied (§4.6, §4.7). UpdatesMade hands both
// the pre-batch and post-batch snapshot so observers (chiefly vifmgr)
// can diff them without tracking tree state themselves.
type HintObserver interface {
	OnTreeComplete(tree *Tree)
	OnUpdatesMade(old, new *Tree)
}

// Mirror is the receiving side of one producer/mirror pair (§4.6).
type Mirror struct {
	name      string
	tree      *Tree
	prev      *Tree
	machine   *fsm.Machine[State, Event]
	observers []HintObserver
	reconnect *rate.Limiter
}

// NewMirror creates a mirror in the Ready state.
func NewMirror(name string) *Mirror {
	m := &Mirror{
		name:      name,
		tree:      NewTree(),
		prev:      NewTree(),
		reconnect: rate.NewLimiter(rate.Every(reconnectInterval), 1),
	}
	m.machine = fsm.New[State, Event](Ready)
	m.machine.On(Ready, func(s State, e Event) (State, bool) {
		if e == EvTransportReady {
			return Starting, true
		}
		return s, false
	})
	m.machine.On(Starting, func(s State, e Event) (State, bool) {
		switch e {
		case EvTreeComplete:
			return Running, true
		case EvFailure:
			return Failed, true
		case EvDisconnect:
			return Starting, true
		}
		return s, false
	})
	m.machine.On(Running, func(s State, e Event) (State, bool) {
		switch e {
		case EvDisconnect:
			return Starting, true
		case EvShutdownRequested:
			return ShuttingDown, true
		case EvFailure:
			return Failed, true
		}
		return s, false
	})
	m.machine.On(ShuttingDown, func(s State, e Event) (State, bool) {
		switch e {
		case EvShutdownComplete:
			return Shutdown, true
		case EvFailure:
			return Failed, true
		}
		return s, false
	})
	m.machine.OnEnter(Starting, func() { m.tree = NewTree(); m.prev = NewTree() })
	return m
}

// AddObserver registers a hint observer.
func (m *Mirror) AddObserver(o HintObserver) { m.observers = append(m.observers, o) }

// State returns the mirror's current lifecycle state.
func (m *Mirror) State() State { return m.machine.State() }

// Tree returns the current tree, or an empty one if the mirror is not
// Running — "while in Starting or Failed state its tree is considered
// empty regardless of contents; only Running exposes a usable tree"
// (§4.6).
func (m *Mirror) Tree() *Tree {
	if m.machine.State() != Running {
		return NewTree()
	}
	return m.tree
}

// NotifyTransportReady signals the finder/transport became ready,
// triggering registration with the producer.
func (m *Mirror) NotifyTransportReady() { m.machine.Fire(EvTransportReady) }

// NotifyDisconnect clears the tree and returns the mirror to Starting
// (or Failed, via NotifyFailure). A transport that flaps faster than
// reconnectInterval has its extra disconnects dropped rather than
// repeatedly tearing the tree down.
func (m *Mirror) NotifyDisconnect() {
	if !m.reconnect.Allow() {
		glog.Warningf("ifmirror: mirror %s dropping disconnect notification, reconnecting too fast", m.name)
		return
	}
	m.machine.Fire(EvDisconnect)
}

// NotifyFailure transitions the mirror to Failed.
func (m *Mirror) NotifyFailure() { m.machine.Fire(EvFailure) }

// NotifyShutdown begins graceful shutdown.
func (m *Mirror) NotifyShutdown() { m.machine.Fire(EvShutdownRequested) }

// Receive applies one command from the replicator stream, in arrival
// order, and fires hint observers when it is a hint rather than a
// mutation.
func (m *Mirror) Receive(cmd Command) {
	if !cmd.IsHint() {
		cmd.Apply(m.tree)
		return
	}
	switch cmd.Hint {
	case HintTreeComplete:
		if !m.machine.Fire(EvTreeComplete) {
			glog.Warningf("ifmirror: mirror %s received TreeComplete outside Starting (state=%s)", m.name, m.machine.State())
		}
		snap := m.tree.Clone()
		for _, o := range m.observers {
			o.OnTreeComplete(snap)
		}
		m.prev = snap
	case HintUpdatesMade:
		snap := m.tree.Clone()
		for _, o := range m.observers {
			o.OnUpdatesMade(m.prev, snap)
		}
		m.prev = snap
	}
}
