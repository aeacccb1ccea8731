package rib

import "net/netip"

// RedistTable is a pass-through subscriber point: it forwards whatever
// its single parent sends it unchanged, while keeping a snapshot of the
// current route set so a subscriber attaching after the fact can be
// backfilled with a full dump instead of only future deltas (§4.4).
//
// Conventionally named "Redist:<parent>" for a single protocol's feed or
// "Redist:all" for the table attached to the tail of a chain, per §4.4.
type RedistTable struct {
	tableCore

	parent   TableID
	snapshot *trie[*RouteEntry]
	enabled  bool
}

// NewRedistTable creates a redistribution tap named per §4.4's
// convention. It starts disabled: RedistEnable/RedistDisable toggle
// whether it forwards downstream, independent of whether routes keep
// flowing into its snapshot.
func NewRedistTable(name string) *RedistTable {
	return &RedistTable{
		tableCore: newTableCore(name, Redist),
		snapshot:  newTrie[*RouteEntry](),
	}
}

// SetEnabled toggles whether this tap forwards to its next table. When
// re-enabled, the caller is expected to backfill the new subscriber from
// Snapshot() since no historical deltas were kept while disabled.
func (t *RedistTable) SetEnabled(enabled bool) { t.enabled = enabled }

func (t *RedistTable) Enabled() bool { return t.enabled }

// SetParent records the single upstream table id.
func (t *RedistTable) SetParent(id TableID) { t.parent = id }

func (t *RedistTable) Parents() []TableID { return []TableID{t.parent} }

func (t *RedistTable) replaceParent(oldID, newID TableID) {
	if t.parent == oldID {
		t.parent = newID
	}
}

func (t *RedistTable) AddRoute(r *RouteEntry) Code {
	t.snapshot.insert(r.Net, r)
	if t.enabled {
		if next := t.next(); next != nil {
			return next.AddRoute(r)
		}
	}
	return OK
}

func (t *RedistTable) DeleteRoute(net netip.Prefix) Code {
	t.snapshot.remove(net)
	if t.enabled {
		if next := t.next(); next != nil {
			return next.DeleteRoute(net)
		}
	}
	return OK
}

func (t *RedistTable) ReplaceRoute(old, new *RouteEntry) Code {
	t.snapshot.insert(new.Net, new)
	if t.enabled {
		if next := t.next(); next != nil {
			return next.ReplaceRoute(old, new)
		}
	}
	return OK
}

func (t *RedistTable) LookupRoute(addr netip.Addr) (*RouteEntry, bool) {
	r, _, ok := t.snapshot.lookup(addr)
	return r, ok
}

func (t *RedistTable) LookupRouteRange(addr netip.Addr) RouteRange {
	r, net, _ := t.snapshot.lookupRange(addr)
	return RouteRange{Matched: r, ValidNet: net}
}

// Snapshot returns every route currently known, for backfilling a
// subscriber that attached after routes were already installed.
func (t *RedistTable) Snapshot() []*RouteEntry {
	var out []*RouteEntry
	t.snapshot.all(func(_ netip.Prefix, r *RouteEntry) { out = append(out, r) })
	return out
}

func (t *RedistTable) Flush() {
	if next := t.next(); next != nil {
		next.Flush()
	}
}
