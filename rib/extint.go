package rib

import (
	"net/netip"

	"github.com/golang/glog"
)

// maxNextHopRecursion bounds external next-hop resolution chains so a
// cyclic or dangling redistribution can never hang a lookup (§4.3).
const maxNextHopRecursion = 8

// ExtIntTable binary-merges an IGP and an EGP parent the way
// MergedTable does, but additionally resolves every route's next hop
// against the IGP side before propagating (§4.3): an EGP route whose
// next hop is not yet reachable is held back rather than announced, and
// an IGP route whose next hop is not directly connected is a hard
// error, never merely held.
type ExtIntTable struct {
	tableCore

	parentIGP, parentEGP TableID

	igp, egp *trie[*RouteEntry]
	resolved *trie[*RouteEntry]
	held     map[netip.Prefix]*RouteEntry
}

// NewExtIntTable creates an empty IGP/EGP merge point.
func NewExtIntTable(name string) *ExtIntTable {
	return &ExtIntTable{
		tableCore: newTableCore(name, ExtInt),
		igp:       newTrie[*RouteEntry](),
		egp:       newTrie[*RouteEntry](),
		resolved:  newTrie[*RouteEntry](),
		held:      make(map[netip.Prefix]*RouteEntry),
	}
}

// SetParents records the IGP and EGP upstream table ids.
func (t *ExtIntTable) SetParents(igp, egp TableID) {
	t.parentIGP, t.parentEGP = igp, egp
}

func (t *ExtIntTable) Parents() []TableID { return []TableID{t.parentIGP, t.parentEGP} }

func (t *ExtIntTable) replaceParent(oldID, newID TableID) {
	if t.parentIGP == oldID {
		t.parentIGP = newID
	}
	if t.parentEGP == oldID {
		t.parentEGP = newID
	}
}

type extIntSide struct {
	t    *ExtIntTable
	isIGP bool
}

// IGPInput is the Table the IGP parent should treat as its next table.
func (t *ExtIntTable) IGPInput() Table { return &extIntSide{t: t, isIGP: true} }

// EGPInput is the Table the EGP parent should treat as its next table.
func (t *ExtIntTable) EGPInput() Table { return &extIntSide{t: t, isIGP: false} }

func (s *extIntSide) AddRoute(r *RouteEntry) Code {
	if s.isIGP {
		return s.t.addIGP(r)
	}
	return s.t.addEGP(r)
}
func (s *extIntSide) DeleteRoute(n netip.Prefix) Code {
	if s.isIGP {
		return s.t.deleteIGP(n)
	}
	return s.t.deleteEGP(n)
}
func (s *extIntSide) ReplaceRoute(_, new *RouteEntry) Code { return s.AddRoute(new) }
func (s *extIntSide) LookupRoute(a netip.Addr) (*RouteEntry, bool) { return s.t.LookupRoute(a) }
func (s *extIntSide) LookupRouteRange(a netip.Addr) RouteRange     { return s.t.LookupRouteRange(a) }
func (s *extIntSide) Flush()                                      {}
func (s *extIntSide) TableName() string                           { return s.t.TableName() }
func (s *extIntSide) Type() TableType                              { return s.t.Type() }
func (s *extIntSide) ID() TableID                                  { return s.t.ID() }
func (s *extIntSide) Parents() []TableID                           { return s.t.Parents() }
func (s *extIntSide) NextTable() TableID                           { return s.t.NextTable() }
func (s *extIntSide) SetNext(t Table)                              { s.t.SetNext(t) }
func (s *extIntSide) setID(id TableID)                             { s.t.setID(id) }
func (s *extIntSide) setArena(a *arena)                            { s.t.setArena(a) }
func (s *extIntSide) setNextID(id TableID)                         { s.t.setNextID(id) }

// resolveNextHop walks a chain of external next hops against the IGP
// table until it finds a directly connected (peer) entry, or gives up
// after maxNextHopRecursion hops. It returns the resolving vif and
// whether resolution succeeded.
func (t *ExtIntTable) resolveNextHop(nh *NextHop) (*Vif, bool) {
	addr := nh.Addr
	for depth := 0; depth < maxNextHopRecursion; depth++ {
		r, _, ok := t.igp.lookup(addr)
		if !ok || r == nil {
			return nil, false
		}
		if r.NextHop.Kind == NextHopPeer {
			return r.Vif, true
		}
		if r.NextHop.Kind != NextHopExternal {
			return nil, false
		}
		addr = r.NextHop.Addr
	}
	return nil, false
}

// addIGP installs an IGP-origin route. Its next hop must already be
// directly connected (§4.3: "hard error on an IGP route with no
// directly connected next hop") and, unless it's a connected-interface
// route (whose next hop is its own vif's address by definition, per
// validateRoute), must not resolve to one of its own resolving vif's
// addresses (Open Question 3, ErrSelfNextHop).
func (t *ExtIntTable) addIGP(r *RouteEntry) Code {
	if r.NextHop.Kind != NextHopPeer {
		glog.Warningf("extint %s: %s (%s)", t.name, ErrNoDirectNextHop, r.Net)
		return CommandFailed
	}
	isConnected := r.ProtocolOrigin.Name == "connected"
	if !isConnected && r.Vif != nil && r.Vif.HasAddress(r.NextHop.Addr) {
		glog.Warningf("extint %s: %s (%s)", t.name, ErrSelfNextHop, r.Net)
		return CommandFailed
	}
	t.igp.insert(r.Net, r)
	t.retryHeld()
	t.emit(r.Net)
	return OK
}

func (t *ExtIntTable) deleteIGP(net netip.Prefix) Code {
	t.igp.remove(net)
	t.retryHeld()
	t.emit(net)
	return OK
}

func (t *ExtIntTable) addEGP(r *RouteEntry) Code {
	t.egp.insert(r.Net, r)
	t.emit(r.Net)
	return OK
}

func (t *ExtIntTable) deleteEGP(net netip.Prefix) Code {
	t.egp.remove(net)
	delete(t.held, net)
	t.emit(net)
	return OK
}

// emit recomputes the winner for net and resolves its next hop, holding
// back an EGP announcement whose next hop doesn't resolve yet instead of
// propagating an unusable route.
func (t *ExtIntTable) emit(net netip.Prefix) {
	igpR, _ := t.igp.get(net)
	egpR, _ := t.egp.get(net)
	prev, hadPrev := t.resolved.get(net)

	winner := t.pickWinner(igpR, egpR, prev)
	next := t.next()

	if winner == nil {
		delete(t.held, net)
		if hadPrev {
			t.resolved.remove(net)
			if next != nil {
				next.DeleteRoute(net)
			}
		}
		return
	}

	effective := winner
	if winner.NextHop.Kind == NextHopExternal {
		vif, ok := t.resolveNextHop(winner.NextHop)
		if !ok {
			t.held[net] = winner
			if hadPrev {
				t.resolved.remove(net)
				if next != nil {
					next.DeleteRoute(net)
				}
			}
			return
		}
		effective = winner.Clone()
		effective.Vif = vif
	}
	delete(t.held, net)

	switch {
	case !hadPrev:
		t.resolved.insert(net, effective)
		if next != nil {
			next.AddRoute(effective)
		}
	case !prev.SameAnnouncement(effective):
		t.resolved.insert(net, effective)
		if next != nil {
			next.ReplaceRoute(prev, effective)
		}
	}
}

func (t *ExtIntTable) pickWinner(igp, egp, currentWinner *RouteEntry) *RouteEntry {
	if igp == nil {
		return egp
	}
	if egp == nil {
		return igp
	}
	if better(igp, egp, currentWinner) {
		return igp
	}
	return egp
}

// retryHeld re-attempts resolution for every EGP route held back for
// want of IGP reachability, e.g. after a new IGP route arrives.
func (t *ExtIntTable) retryHeld() {
	if len(t.held) == 0 {
		return
	}
	nets := make([]netip.Prefix, 0, len(t.held))
	for n := range t.held {
		nets = append(nets, n)
	}
	for _, n := range nets {
		t.emit(n)
	}
}

func (t *ExtIntTable) AddRoute(*RouteEntry) Code                  { return CommandFailed }
func (t *ExtIntTable) DeleteRoute(netip.Prefix) Code              { return CommandFailed }
func (t *ExtIntTable) ReplaceRoute(*RouteEntry, *RouteEntry) Code { return CommandFailed }

func (t *ExtIntTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.resolved.lookup(addr)
	return r, ok
}

func (t *ExtIntTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.resolved.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

func (t *ExtIntTable) Flush() {
	if next := t.next(); next != nil {
		next.Flush()
	}
}
