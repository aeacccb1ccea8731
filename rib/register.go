package rib

import (
	"net/netip"

	"github.com/netrib/rib/queue"
)

// EventKind classifies a notification sent to a registered subscriber
// (§4.5).
type EventKind int

const (
	// Changed carries a fresh answer and its new validity range.
	Changed EventKind = iota
	// Invalidate tells the subscriber its previously reported validity
	// range is no longer guaranteed; it must re-register to learn the
	// new one.
	Invalidate
)

func (k EventKind) String() string {
	if k == Changed {
		return "CHANGED"
	}
	return "INVALIDATE"
}

// RegisterEvent is one notification queued for a subscriber.
type RegisterEvent struct {
	Kind     EventKind
	Addr     netip.Addr
	Route    *RouteEntry // nil on a pure Invalidate, or if no route matches
	ValidNet netip.Prefix
}

// RouteRegister is one subscriber's outstanding interest in the answer
// for Addr, valid as long as nothing mutates within ValidNet (§4.1,
// §4.5). Route is the entry that matched at registration time (or at the
// last Changed notification), used to tell an in-place attribute update
// to that same route apart from a mutation that could change which
// route answers for Addr.
type RouteRegister struct {
	Subscriber string
	Addr       netip.Addr
	ValidNet   netip.Prefix
	Route      *RouteEntry
}

// EventDispatcher delivers a queued RegisterEvent to its subscriber over
// whatever transport owns that relationship. A non-nil error means the
// subscriber is temporarily unreachable; the event stays queued and the
// subscriber is quiesced until its next activity (§4.5/§4.6).
type EventDispatcher interface {
	DispatchRegisterEvent(subscriber string, ev RegisterEvent) error
}

// RegisterTable is a pass-through subscriber point like RedistTable,
// plus a notification engine: callers register interest in an address,
// get back the current answer and its validity range, and are notified
// the moment any mutation touches that range (§4.5) — Changed if the
// range is unaffected and a new winner is available, Invalidate
// otherwise.
//
// Each registration is one-shot: once invalidated it is removed, and the
// subscriber must call RegisterInterest again to resume watching,
// mirroring the original register_server.hh contract this is grounded
// on.
type RegisterTable struct {
	tableCore

	parent     TableID
	current    *trie[*RouteEntry]
	dispatcher EventDispatcher

	// registrations indexed by subscriber, then by the address they are
	// watching.
	registrations map[string]map[netip.Addr]*RouteRegister
	queues        map[string]*queue.FIFO[RegisterEvent]
}

// NewRegisterTable creates a registration point. dispatcher may be nil
// during construction and set later via SetDispatcher once the
// transport layer is wired up.
func NewRegisterTable(name string, dispatcher EventDispatcher) *RegisterTable {
	return &RegisterTable{
		tableCore:     newTableCore(name, Register),
		current:       newTrie[*RouteEntry](),
		dispatcher:    dispatcher,
		registrations: make(map[string]map[netip.Addr]*RouteRegister),
		queues:        make(map[string]*queue.FIFO[RegisterEvent]),
	}
}

func (t *RegisterTable) SetDispatcher(d EventDispatcher) { t.dispatcher = d }

func (t *RegisterTable) SetParent(id TableID) { t.parent = id }

func (t *RegisterTable) Parents() []TableID { return []TableID{t.parent} }

func (t *RegisterTable) replaceParent(oldID, newID TableID) {
	if t.parent == oldID {
		t.parent = newID
	}
}

func (t *RegisterTable) queueFor(subscriber string) *queue.FIFO[RegisterEvent] {
	q, ok := t.queues[subscriber]
	if !ok {
		q = queue.New[RegisterEvent]()
		t.queues[subscriber] = q
	}
	return q
}

// RegisterInterest records subscriber's interest in addr and returns the
// current answer plus its validity range. The subscriber is notified the
// first time anything mutates within that range: Changed if the range
// holds and a new winner exists, Invalidate otherwise (§4.5).
func (t *RegisterTable) RegisterInterest(subscriber string, addr netip.Addr) RouteRange {
	r, net, _ := t.current.lookupRange(addr)
	reg := &RouteRegister{Subscriber: subscriber, Addr: addr, ValidNet: net, Route: r}

	set, ok := t.registrations[subscriber]
	if !ok {
		set = make(map[netip.Addr]*RouteRegister)
		t.registrations[subscriber] = set
	}
	set[addr] = reg

	return RouteRange{Matched: r, ValidNet: net}
}

// DeregisterInterest removes a previously registered interest, if any.
func (t *RegisterTable) DeregisterInterest(subscriber string, addr netip.Addr) {
	if set, ok := t.registrations[subscriber]; ok {
		delete(set, addr)
		if len(set) == 0 {
			delete(t.registrations, subscriber)
		}
	}
}

// invalidateTouching notifies every registration whose validity range
// overlaps net of the mutation that just landed in t.current (§4.5). A
// registration gets Changed, and stays registered, only when it already
// had a matched route and this mutation is to that same route's own
// prefix (an in-place attribute update — next hop, metric, admin
// distance, protocol origin — that cannot change which prefix answers
// for the watched address). Anything else that overlaps the range —
// no prior match, the matched route's own prefix disappearing, or a
// different prefix appearing or changing within the range — gets
// Invalidate and is removed (one-shot): the subscriber must call
// RegisterInterest again to learn the new answer and range.
func (t *RegisterTable) invalidateTouching(net netip.Prefix) {
	for subscriber, set := range t.registrations {
		for addr, reg := range set {
			if !reg.ValidNet.Overlaps(net) {
				continue
			}
			if reg.Route != nil && net == reg.Route.Net {
				newRoute, newValidNet, hasMatch := t.current.lookupRange(addr)
				if hasMatch {
					reg.Route = newRoute
					reg.ValidNet = newValidNet
					t.queueFor(subscriber).Push(RegisterEvent{
						Kind:     Changed,
						Addr:     addr,
						Route:    newRoute,
						ValidNet: newValidNet,
					})
					continue
				}
			}
			t.queueFor(subscriber).Push(RegisterEvent{
				Kind:     Invalidate,
				Addr:     addr,
				ValidNet: reg.ValidNet,
			})
			delete(set, addr)
		}
		if len(set) == 0 {
			delete(t.registrations, subscriber)
		}
	}
}

func (t *RegisterTable) AddRoute(r *RouteEntry) Code {
	t.current.insert(r.Net, r)
	t.invalidateTouching(r.Net)
	if next := t.next(); next != nil {
		return next.AddRoute(r)
	}
	return OK
}

func (t *RegisterTable) DeleteRoute(net netip.Prefix) Code {
	t.current.remove(net)
	t.invalidateTouching(net)
	if next := t.next(); next != nil {
		return next.DeleteRoute(net)
	}
	return OK
}

func (t *RegisterTable) ReplaceRoute(old, new *RouteEntry) Code {
	t.current.insert(new.Net, new)
	t.invalidateTouching(new.Net)
	if next := t.next(); next != nil {
		return next.ReplaceRoute(old, new)
	}
	return OK
}

func (t *RegisterTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.current.lookup(addr)
	return r, ok
}

func (t *RegisterTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.current.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

// Flush drains every subscriber's queue as far as the dispatcher allows,
// honoring the at-most-one-in-flight discipline: a dispatch failure
// quiesces that subscriber (the head item is retried, not dropped, on
// the next Flush) rather than blocking every other subscriber (§4.6).
func (t *RegisterTable) Flush() {
	for subscriber, q := range t.queues {
		t.drainSubscriber(subscriber, q)
	}
	if next := t.next(); next != nil {
		next.Flush()
	}
}

func (t *RegisterTable) drainSubscriber(subscriber string, q *queue.FIFO[RegisterEvent]) {
	for {
		ev, ok := q.TryDispatch()
		if !ok {
			return
		}
		if t.dispatcher == nil {
			q.Quiesce()
			return
		}
		if err := t.dispatcher.DispatchRegisterEvent(subscriber, ev); err != nil {
			q.Quiesce()
			return
		}
		q.Ack()
	}
}
