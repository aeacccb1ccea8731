package rib

import "net/netip"

// MergedTable binary-merges the announcements of exactly two parent
// tables, resolving same-prefix conflicts by admin distance, then
// metric, then incumbent stability, and emitting a minimal diff
// (none/add/replace/delete) downstream (§4.2, §4.3).
//
// A MergedTable is never handed routes directly: its two parents each
// see one side of it through a thin Table adapter (LeftInput/
// RightInput) so the merge logic always knows which side originated an
// event.
type MergedTable struct {
	tableCore

	parentLeft, parentRight TableID

	left, right *trie[*RouteEntry]
	winners     *trie[*RouteEntry]
}

// NewMergedTable creates an empty merge point. Call SetParents once both
// upstream tables are constructed.
func NewMergedTable(name string) *MergedTable {
	return &MergedTable{
		tableCore: newTableCore(name, Merged),
		left:      newTrie[*RouteEntry](),
		right:     newTrie[*RouteEntry](),
		winners:   newTrie[*RouteEntry](),
	}
}

// SetParents records the two upstream table ids for Parents()/replumb.
func (t *MergedTable) SetParents(left, right TableID) {
	t.parentLeft, t.parentRight = left, right
}

func (t *MergedTable) Parents() []TableID { return []TableID{t.parentLeft, t.parentRight} }

func (t *MergedTable) replaceParent(oldID, newID TableID) {
	if t.parentLeft == oldID {
		t.parentLeft = newID
	}
	if t.parentRight == oldID {
		t.parentRight = newID
	}
}

// mergedSide is the Table a parent actually holds as its "next table":
// it tags every event with which side of the merge it arrived on before
// delegating to the shared MergedTable state.
type mergedSide struct {
	mt   *MergedTable
	side int // 0 = left, 1 = right
}

// LeftInput is the Table the first parent should treat as its next
// table.
func (t *MergedTable) LeftInput() Table { return &mergedSide{mt: t, side: 0} }

// RightInput is the Table the second parent should treat as its next
// table.
func (t *MergedTable) RightInput() Table { return &mergedSide{mt: t, side: 1} }

func (s *mergedSide) AddRoute(r *RouteEntry) Code          { return s.mt.addFromSide(s.side, r) }
func (s *mergedSide) DeleteRoute(n netip.Prefix) Code      { return s.mt.deleteFromSide(s.side, n) }
func (s *mergedSide) ReplaceRoute(_, new *RouteEntry) Code { return s.mt.addFromSide(s.side, new) }
func (s *mergedSide) LookupRoute(a netip.Addr) (*RouteEntry, bool) { return s.mt.LookupRoute(a) }
func (s *mergedSide) LookupRouteRange(a netip.Addr) RouteRange     { return s.mt.LookupRouteRange(a) }
func (s *mergedSide) Flush()                                      {}
func (s *mergedSide) TableName() string                           { return s.mt.TableName() }
func (s *mergedSide) Type() TableType                              { return s.mt.Type() }
func (s *mergedSide) ID() TableID                                  { return s.mt.ID() }
func (s *mergedSide) Parents() []TableID                           { return s.mt.Parents() }
func (s *mergedSide) NextTable() TableID                           { return s.mt.NextTable() }
func (s *mergedSide) SetNext(t Table)                              { s.mt.SetNext(t) }
func (s *mergedSide) setID(id TableID)                             { s.mt.setID(id) }
func (s *mergedSide) setArena(a *arena)                            { s.mt.setArena(a) }
func (s *mergedSide) setNextID(id TableID)                         { s.mt.setNextID(id) }

func (t *MergedTable) sideTrie(side int) *trie[*RouteEntry] {
	if side == 0 {
		return t.left
	}
	return t.right
}

func (t *MergedTable) addFromSide(side int, r *RouteEntry) Code {
	t.sideTrie(side).insert(r.Net, r)
	t.recompute(r.Net)
	return OK
}

func (t *MergedTable) deleteFromSide(side int, net netip.Prefix) Code {
	t.sideTrie(side).remove(net)
	t.recompute(net)
	return OK
}

// better reports whether candidate should be preferred to incumbent:
// lower admin distance wins, then lower metric, then the currently
// winning entry is kept on an exact tie so equally-good routes don't
// flap (§4.3's stability requirement).
func better(candidate, incumbent, currentWinner *RouteEntry) bool {
	if incumbent == nil {
		return true
	}
	if candidate.AdminDistance != incumbent.AdminDistance {
		return candidate.AdminDistance < incumbent.AdminDistance
	}
	if candidate.Metric != incumbent.Metric {
		return candidate.Metric < incumbent.Metric
	}
	return currentWinner == candidate
}

func (t *MergedTable) pickWinner(a, b, currentWinner *RouteEntry) *RouteEntry {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if better(a, b, currentWinner) {
		return a
	}
	return b
}

func (t *MergedTable) recompute(net netip.Prefix) {
	a, _ := t.left.get(net)
	b, _ := t.right.get(net)
	prev, hadPrev := t.winners.get(net)

	winner := t.pickWinner(a, b, prev)

	next := t.next()
	switch {
	case winner == nil:
		if hadPrev {
			t.winners.remove(net)
			if next != nil {
				next.DeleteRoute(net)
			}
		}
	case !hadPrev:
		t.winners.insert(net, winner)
		if next != nil {
			next.AddRoute(winner)
		}
	case !prev.SameAnnouncement(winner):
		t.winners.insert(net, winner)
		if next != nil {
			next.ReplaceRoute(prev, winner)
		}
	}
}

func (t *MergedTable) AddRoute(*RouteEntry) Code            { return CommandFailed }
func (t *MergedTable) DeleteRoute(netip.Prefix) Code        { return CommandFailed }
func (t *MergedTable) ReplaceRoute(*RouteEntry, *RouteEntry) Code { return CommandFailed }

func (t *MergedTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.winners.lookup(addr)
	return r, ok
}

func (t *MergedTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.winners.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

func (t *MergedTable) Flush() {
	if next := t.next(); next != nil {
		next.Flush()
	}
}
